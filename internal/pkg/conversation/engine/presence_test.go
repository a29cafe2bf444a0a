package engine

import (
	"sync"
	"testing"
	"time"

	"go-deskline/internal/pkg/conversation/domain"
	"go-deskline/internal/pkg/conversation/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type typingRecorder struct {
	mu      sync.Mutex
	signals []*domain.TypingSignal
}

func (r *typingRecorder) record(sig *domain.TypingSignal) {
	r.mu.Lock()
	r.signals = append(r.signals, sig)
	r.mu.Unlock()
}

func (r *typingRecorder) last() (*domain.TypingSignal, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.signals) == 0 {
		return nil, 0
	}
	return r.signals[len(r.signals)-1], len(r.signals)
}

func TestTrackerAssignableFilter(t *testing.T) {
	tr := NewTracker("me", 0, nil, nil)
	tr.Seed([]domain.AgentPresenceEntry{
		{UserID: "a1", DisplayName: "Ana", Connected: true, Status: domain.PresenceOnline},
		{UserID: "a2", DisplayName: "Ben", Connected: true, Status: domain.PresenceAway},
		{UserID: "a3", DisplayName: "Cal", Connected: false, Status: domain.PresenceOnline},
	})

	assignable := tr.Assignable()
	require.Len(t, assignable, 1)
	assert.Equal(t, "a1", assignable[0].UserID)
}

func TestTrackerPresenceLifecycle(t *testing.T) {
	var rosters [][]domain.AgentPresenceEntry
	tr := NewTracker("me", 0, nil, func(entries []domain.AgentPresenceEntry) {
		rosters = append(rosters, entries)
	})

	tr.ApplyPresence(event.PresenceChange{UserID: "a1", DisplayName: "Ana", Connected: true, Status: domain.PresenceOnline})
	require.Len(t, tr.Assignable(), 1)

	// Going away removes the agent from the assignable set without dropping
	// the roster entry.
	tr.ApplyPresence(event.PresenceChange{UserID: "a1", Status: domain.PresenceAway})
	assert.Empty(t, tr.Assignable())
	entry, ok := tr.Entry("a1")
	require.True(t, ok)
	assert.Equal(t, "Ana", entry.DisplayName)
	assert.True(t, entry.Connected)

	// Coming back online restores assignability.
	tr.ApplyPresence(event.PresenceChange{UserID: "a1", Status: domain.PresenceOnline})
	assert.Len(t, tr.Assignable(), 1)

	// Disconnecting removes assignability even while status says online.
	tr.ApplyPresence(event.PresenceChange{UserID: "a1", Disconnected: true})
	assert.Empty(t, tr.Assignable())

	// Every transition re-notified the roster callback.
	assert.Len(t, rosters, 4)
}

func TestTrackerAssignableSortedByUserID(t *testing.T) {
	tr := NewTracker("me", 0, nil, nil)
	tr.Seed([]domain.AgentPresenceEntry{
		{UserID: "z9", Connected: true, Status: domain.PresenceOnline},
		{UserID: "a1", Connected: true, Status: domain.PresenceOnline},
		{UserID: "m5", Connected: true, Status: domain.PresenceOnline},
	})

	assignable := tr.Assignable()
	require.Len(t, assignable, 3)
	assert.Equal(t, "a1", assignable[0].UserID)
	assert.Equal(t, "m5", assignable[1].UserID)
	assert.Equal(t, "z9", assignable[2].UserID)
}

func TestTrackerTypingExpires(t *testing.T) {
	rec := &typingRecorder{}
	tr := NewTracker("me", 30*time.Millisecond, rec.record, nil)
	defer tr.Stop()

	tr.ApplyTyping("s1", event.TypingPing{SessionID: "s1", UserID: "u7", DisplayName: "Visitor", Role: domain.SenderUser})

	sig, n := rec.last()
	require.Equal(t, 1, n)
	require.NotNil(t, sig)
	assert.Equal(t, "Visitor", sig.DisplayName)
	require.NotNil(t, tr.Typing())

	assert.Eventually(t, func() bool {
		last, count := rec.last()
		return count == 2 && last == nil
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, tr.Typing())
}

func TestTrackerTypingRefreshSupersedes(t *testing.T) {
	rec := &typingRecorder{}
	tr := NewTracker("me", 40*time.Millisecond, rec.record, nil)
	defer tr.Stop()

	tr.ApplyTyping("s1", event.TypingPing{SessionID: "s1", UserID: "u7", DisplayName: "Visitor", Role: domain.SenderUser})
	time.Sleep(25 * time.Millisecond)
	// Refresh before expiry; the first timer must not clear the new signal.
	tr.ApplyTyping("s1", event.TypingPing{SessionID: "s1", UserID: "u7", DisplayName: "Visitor", Role: domain.SenderUser})
	time.Sleep(25 * time.Millisecond)

	assert.NotNil(t, tr.Typing())
}

func TestTrackerNewestTypingWins(t *testing.T) {
	tr := NewTracker("me", time.Minute, nil, nil)
	defer tr.Stop()

	tr.ApplyTyping("s1", event.TypingPing{SessionID: "s1", UserID: "u7", DisplayName: "Visitor", Role: domain.SenderUser})
	tr.ApplyTyping("s1", event.TypingPing{SessionID: "s1", UserID: "a2", DisplayName: "Ben", Role: domain.SenderAgent})

	sig := tr.Typing()
	require.NotNil(t, sig)
	assert.Equal(t, "Ben", sig.DisplayName)
}

func TestTrackerIgnoresOwnTyping(t *testing.T) {
	rec := &typingRecorder{}
	tr := NewTracker("me", time.Minute, rec.record, nil)
	defer tr.Stop()

	tr.ApplyTyping("s1", event.TypingPing{SessionID: "s1", UserID: "me", DisplayName: "Me", Role: domain.SenderAgent})

	_, n := rec.last()
	assert.Zero(t, n)
	assert.Nil(t, tr.Typing())
}
