package engine

import (
	"errors"
	"log"
	"sync"

	"go-deskline/internal/infrastructure/realtime"
	"go-deskline/internal/pkg/conversation/domain"
	"go-deskline/internal/pkg/conversation/event"
)

// ErrNotConnected is returned for sends and assignments attempted while the
// live channel is down. Callers surface it instead of silently proceeding:
// an assignment write that succeeds without the announce step leaves agent
// routing stale until the next full reload.
var ErrNotConnected = errors.New("engine: live channel not connected")

// LiveChannel is the engine's view of the push transport for one open
// conversation. Implementations own the connection lifecycle: subscribe,
// re-join on reconnect, deterministic teardown.
type LiveChannel interface {
	// Subscribe joins the session-scoped topic and, for privileged roles,
	// the admin-wide presence topic.
	Subscribe(sessionID string, privileged bool) error
	// Announce publishes the agent identity on the session topic. Announcing
	// twice is harmless.
	Announce(sessionID, agentID, agentName string) error
	// Typing broadcasts an outbound typing signal. Best-effort: it is never
	// retried and a dropped signal is not an error condition.
	Typing(sessionID, displayName string, role domain.Sender)
	Connected() bool
	// Events delivers normalized events until Close. Malformed frames are
	// logged and skipped here, never surfaced.
	Events() <-chan event.Event
	Close()
}

// RouterChannel adapts the in-process realtime router to the LiveChannel
// contract via a Pipe member.
type RouterChannel struct {
	router      *realtime.Router
	userID      string
	displayName string

	mu     sync.Mutex
	pipe   *realtime.Pipe
	topics []string
	events chan event.Event
	open   bool
}

// NewRouterChannel prepares a channel for the given console identity.
func NewRouterChannel(router *realtime.Router, userID, displayName string) *RouterChannel {
	return &RouterChannel{router: router, userID: userID, displayName: displayName}
}

var _ LiveChannel = (*RouterChannel)(nil)

// Subscribe opens the pipe and joins the topics. Calling it again after a
// drop re-joins the same set.
func (c *RouterChannel) Subscribe(sessionID string, privileged bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.events == nil {
		c.events = make(chan event.Event, 256)
	}
	if c.pipe == nil {
		c.pipe = c.router.OpenPipe(c.userID, c.displayName, privileged)
		go c.pump(c.pipe)
	}

	c.topics = c.topics[:0]
	c.topics = append(c.topics, realtime.TopicSession(sessionID))
	if privileged {
		c.topics = append(c.topics, realtime.TopicPresence)
	}
	for _, topic := range c.topics {
		c.router.Join(topic, c.pipe)
	}
	c.open = true
	return nil
}

// Announce publishes the identity frame on the session topic.
func (c *RouterChannel) Announce(sessionID, agentID, agentName string) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	payload, err := event.EncodeAnnounce(sessionID, agentID, agentName)
	if err != nil {
		return err
	}
	c.router.Broadcast(realtime.TopicSession(sessionID), payload, "")
	return nil
}

// Typing broadcasts outward only; the router excludes the sender so the
// signal is never reflected back to self.
func (c *RouterChannel) Typing(sessionID, displayName string, role domain.Sender) {
	if !c.Connected() {
		return
	}
	payload, err := event.EncodeTyping(sessionID, c.userID, displayName, role)
	if err != nil {
		return
	}
	c.router.Broadcast(realtime.TopicSession(sessionID), payload, c.userID)
	c.router.Broadcast(realtime.TopicSessionUser(sessionID), payload, c.userID)
}

func (c *RouterChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *RouterChannel) Events() <-chan event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events == nil {
		c.events = make(chan event.Event, 256)
	}
	return c.events
}

// Close tears down the pipe and all topic memberships. No events are
// delivered after Close returns the channel drained.
func (c *RouterChannel) Close() {
	c.mu.Lock()
	pipe := c.pipe
	c.pipe = nil
	c.open = false
	c.mu.Unlock()

	if pipe != nil {
		c.router.ClosePipe(pipe)
	}
}

// pump normalizes raw frames off the pipe. Frames from this user's own
// console are fanned out by the router already excluding self where that
// matters (typing); message frames flow through so the merge engine can
// reconcile the echo of our own sends.
func (c *RouterChannel) pump(pipe *realtime.Pipe) {
	for raw := range pipe.Frames() {
		ev, err := event.Normalize(raw)
		if err != nil {
			log.Printf("engine: dropping malformed live event: %v", err)
			continue
		}
		c.mu.Lock()
		out := c.events
		c.mu.Unlock()
		select {
		case out <- ev:
		default:
			log.Printf("engine: event buffer full, dropping %v frame", ev.Kind)
		}
	}
	c.mu.Lock()
	if c.events != nil {
		close(c.events)
		c.events = nil
	}
	c.mu.Unlock()
}
