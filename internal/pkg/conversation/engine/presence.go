package engine

import (
	"sort"
	"sync"
	"time"

	"go-deskline/internal/pkg/conversation/domain"
	"go-deskline/internal/pkg/conversation/event"
)

// DefaultTypingTTL is how long a typing indicator survives without a refresh.
const DefaultTypingTTL = 5 * time.Second

// Tracker maintains the ephemeral per-view state: the connected-agent roster
// and the single remote typing indicator. Nothing here is persisted or
// retried; a dropped broadcast simply means the indicator never shows.
type Tracker struct {
	typingTTL   time.Duration
	localUserID string
	onTyping    func(*domain.TypingSignal)
	onRoster    func([]domain.AgentPresenceEntry)

	mu     sync.Mutex
	roster map[string]domain.AgentPresenceEntry
	typing *domain.TypingSignal
	timer  *time.Timer
	now    func() time.Time
}

// NewTracker wires the tracker to its view callbacks. localUserID keeps the
// actor's own typing signals from reflecting back.
func NewTracker(localUserID string, typingTTL time.Duration, onTyping func(*domain.TypingSignal), onRoster func([]domain.AgentPresenceEntry)) *Tracker {
	if typingTTL <= 0 {
		typingTTL = DefaultTypingTTL
	}
	return &Tracker{
		typingTTL:   typingTTL,
		localUserID: localUserID,
		onTyping:    onTyping,
		onRoster:    onRoster,
		roster:      make(map[string]domain.AgentPresenceEntry),
		now:         time.Now,
	}
}

// Seed installs the roster from the agent directory before broadcasts start
// arriving.
func (t *Tracker) Seed(entries []domain.AgentPresenceEntry) {
	t.mu.Lock()
	for _, e := range entries {
		t.roster[e.UserID] = e
	}
	assignable := t.assignableLocked()
	t.mu.Unlock()
	t.notifyRoster(assignable)
}

// ApplyPresence folds one broadcast into the roster and re-applies the
// assignable filter; the filtered view is never cached stale.
func (t *Tracker) ApplyPresence(p event.PresenceChange) {
	t.mu.Lock()
	entry, ok := t.roster[p.UserID]
	if !ok {
		entry = domain.AgentPresenceEntry{UserID: p.UserID, Status: domain.PresenceOnline}
	}
	if p.DisplayName != "" {
		entry.DisplayName = p.DisplayName
	}
	switch {
	case p.Connected:
		entry.Connected = true
		entry.Status = p.Status
	case p.Disconnected:
		entry.Connected = false
	default:
		entry.Status = p.Status
	}
	t.roster[p.UserID] = entry
	assignable := t.assignableLocked()
	t.mu.Unlock()
	t.notifyRoster(assignable)
}

// Entry looks one agent up in the roster.
func (t *Tracker) Entry(userID string) (domain.AgentPresenceEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.roster[userID]
	return e, ok
}

// Assignable returns the roster subset eligible for assignment, recomputed
// on call: connected and self-reported online.
func (t *Tracker) Assignable() []domain.AgentPresenceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.assignableLocked()
}

// ApplyTyping registers a remote typing signal. A newer signal supersedes
// any prior one, including one from a different actor (only one indicator is
// shown; the most recent wins). The local actor's own signal is ignored.
func (t *Tracker) ApplyTyping(sessionID string, p event.TypingPing) {
	if p.UserID != "" && p.UserID == t.localUserID {
		return
	}

	t.mu.Lock()
	sig := &domain.TypingSignal{
		SessionID:   sessionID,
		DisplayName: p.DisplayName,
		Role:        p.Role,
		ExpiresAt:   t.now().Add(t.typingTTL),
	}
	t.typing = sig
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.typingTTL, func() { t.expire(sig) })
	t.mu.Unlock()

	if t.onTyping != nil {
		t.onTyping(sig)
	}
}

// Typing returns the currently active signal, or nil.
func (t *Tracker) Typing() *domain.TypingSignal {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.typing != nil && t.now().After(t.typing.ExpiresAt) {
		return nil
	}
	return t.typing
}

// Stop cancels the expiry timer on teardown.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.typing = nil
	t.mu.Unlock()
}

func (t *Tracker) expire(sig *domain.TypingSignal) {
	t.mu.Lock()
	// A newer signal may have replaced the one this timer was armed for.
	if t.typing != sig {
		t.mu.Unlock()
		return
	}
	t.typing = nil
	t.mu.Unlock()

	if t.onTyping != nil {
		t.onTyping(nil)
	}
}

func (t *Tracker) assignableLocked() []domain.AgentPresenceEntry {
	out := make([]domain.AgentPresenceEntry, 0, len(t.roster))
	for _, e := range t.roster {
		if e.Assignable() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (t *Tracker) notifyRoster(entries []domain.AgentPresenceEntry) {
	if t.onRoster != nil {
		t.onRoster(entries)
	}
}
