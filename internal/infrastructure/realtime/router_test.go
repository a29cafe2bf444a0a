package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, p *Pipe) []byte {
	t.Helper()
	select {
	case frame, ok := <-p.Frames():
		require.True(t, ok, "pipe closed")
		return frame
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return nil
	}
}

func TestBroadcastReachesTopicMembers(t *testing.T) {
	r := NewRouter()
	a := r.OpenPipe("a1", "Ana", false)
	b := r.OpenPipe("a2", "Ben", false)
	outsider := r.OpenPipe("a3", "Cal", false)

	r.Join(TopicSession("s1"), a)
	r.Join(TopicSession("s1"), b)
	r.Join(TopicSession("s2"), outsider)

	n := r.Broadcast(TopicSession("s1"), []byte("hello"), "")
	assert.Equal(t, 2, n)

	assert.Equal(t, []byte("hello"), drain(t, a))
	assert.Equal(t, []byte("hello"), drain(t, b))
	select {
	case <-outsider.Frames():
		t.Fatal("outsider received session frame")
	default:
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	r := NewRouter()
	sender := r.OpenPipe("a1", "Ana", false)
	peer := r.OpenPipe("a2", "Ben", false)
	r.Join(TopicSession("s1"), sender)
	r.Join(TopicSession("s1"), peer)

	n := r.Broadcast(TopicSession("s1"), []byte("typing"), "a1")
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte("typing"), drain(t, peer))
	select {
	case <-sender.Frames():
		t.Fatal("typing signal reflected back to sender")
	default:
	}
}

func TestBroadcastEmptyTopic(t *testing.T) {
	r := NewRouter()
	assert.Zero(t, r.Broadcast(TopicSession("ghost"), []byte("x"), ""))
}

func TestLeaveStopsDelivery(t *testing.T) {
	r := NewRouter()
	p := r.OpenPipe("a1", "Ana", false)
	r.Join(TopicSession("s1"), p)
	r.Leave(TopicSession("s1"), p)

	assert.Zero(t, r.Broadcast(TopicSession("s1"), []byte("x"), ""))
}

func TestClosePipeClosesFrames(t *testing.T) {
	r := NewRouter()
	p := r.OpenPipe("a1", "Ana", false)
	r.Join(TopicSession("s1"), p)

	r.ClosePipe(p)

	_, ok := <-p.Frames()
	assert.False(t, ok)
	// Delivery after close is a silent no-op, not a panic.
	assert.NoError(t, p.Deliver([]byte("late")))
	assert.Zero(t, r.Broadcast(TopicSession("s1"), []byte("x"), ""))
}

func TestPipeDropsWhenFull(t *testing.T) {
	r := NewRouter()
	p := r.OpenPipe("a1", "Ana", false)

	for i := 0; i < 300; i++ {
		require.NoError(t, p.Deliver([]byte("frame")))
	}
	// Buffer holds 256; the rest were dropped without blocking.
	assert.Len(t, p.Frames(), 256)
}

func TestDetachRemovesAllMemberships(t *testing.T) {
	r := NewRouter()
	p := r.OpenPipe("a1", "Ana", true)
	r.Join(TopicSession("s1"), p)
	r.Join(TopicPresence, p)

	r.Detach(p)

	assert.Zero(t, r.Broadcast(TopicSession("s1"), []byte("x"), ""))
	assert.Zero(t, r.Broadcast(TopicPresence, []byte("x"), ""))
}

func TestJoinUnknownMemberIgnored(t *testing.T) {
	r := NewRouter()
	p := r.OpenPipe("a1", "Ana", false)
	r.ClosePipe(p)

	// A detached member cannot rejoin with a stale handle.
	r.Join(TopicSession("s1"), p)
	assert.Zero(t, r.Broadcast(TopicSession("s1"), []byte("x"), ""))
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "session:s1", TopicSession("s1"))
	assert.Equal(t, "session:s1:user", TopicSessionUser("s1"))
	assert.NotEqual(t, TopicSession("s1"), TopicSessionUser("s1"))
}
