package engine

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	qport "go-deskline/internal/infrastructure/queue/port"
	"go-deskline/internal/pkg/conversation/domain"
	"go-deskline/internal/pkg/conversation/event"
)

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func storedMsg(i int) domain.Message {
	return domain.Message{
		Sender:    domain.SenderUser,
		Text:      "message " + strconv.Itoa(i),
		Timestamp: testBase.Add(time.Duration(i) * 10 * time.Second),
	}
}

// fakeMessageStore serves pages out of one ascending in-memory transcript,
// with the offset counted back from the newest message.
type fakeMessageStore struct {
	mu    sync.Mutex
	msgs  []domain.Message
	saved []domain.Message
	err   error
	calls int
}

func (s *fakeMessageStore) Messages(_ context.Context, _ string, limit, offset int) ([]domain.Message, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, 0, s.err
	}
	total := len(s.msgs)
	end := total - offset
	if end <= 0 {
		return nil, total, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	page := append([]domain.Message(nil), s.msgs[start:end]...)
	return page, total, nil
}

func (s *fakeMessageStore) SaveMessage(_ context.Context, _ string, m domain.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, m)
	return "id", nil
}

// fakeSessionStore records operation order so tests can check that announces
// happen before store writes.
type fakeSessionStore struct {
	mu       sync.Mutex
	session  domain.Session
	ops      []string
	assigns  int
	failNext error
}

func (s *fakeSessionStore) Sessions(context.Context) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []domain.Session{s.session}, nil
}

func (s *fakeSessionStore) Session(context.Context, string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "read")
	return s.session, nil
}

func (s *fakeSessionStore) Assign(_ context.Context, _, agentID, agentName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "assign")
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.assigns++
	s.session.Status = domain.StatusAssigned
	s.session.AssignedAgentID = agentID
	s.session.AssignedAgentName = agentName
	return nil
}

func (s *fakeSessionStore) Close(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "close")
	s.session.Status = domain.StatusClosed
	return nil
}

func (s *fakeSessionStore) set(sess domain.Session) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
}

func (s *fakeSessionStore) opLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

// fakeChannel is a scriptable LiveChannel.
type fakeChannel struct {
	mu        sync.Mutex
	connected bool
	ops       []string
	announces []event.Announce
	events    chan event.Event
	closed    bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{connected: true, events: make(chan event.Event, 16)}
}

func (c *fakeChannel) Subscribe(string, bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, "subscribe")
	return nil
}

func (c *fakeChannel) Announce(sessionID, agentID, agentName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	c.ops = append(c.ops, "announce")
	c.announces = append(c.announces, event.Announce{SessionID: sessionID, AgentID: agentID, AgentName: agentName})
	return nil
}

func (c *fakeChannel) Typing(string, string, domain.Sender) {
	c.mu.Lock()
	c.ops = append(c.ops, "typing")
	c.mu.Unlock()
}

func (c *fakeChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeChannel) Events() <-chan event.Event { return c.events }

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

func (c *fakeChannel) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *fakeChannel) opLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ops...)
}

// fakeQueue records enqueued tasks.
type fakeQueue struct {
	mu    sync.Mutex
	tasks []qport.Task
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, t qport.Task, _ ...qport.EnqueueOption) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.tasks = append(q.tasks, t)
	return "task-id", nil
}

func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) taskCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

type fakeAgents struct {
	entries []domain.AgentPresenceEntry
}

func (a *fakeAgents) Agents(context.Context) ([]domain.AgentPresenceEntry, error) {
	return a.entries, nil
}

type fakeCanned struct {
	responses []domain.CannedResponse
}

func (c *fakeCanned) Responses(context.Context) ([]domain.CannedResponse, error) {
	return c.responses, nil
}

type fakeAttachments struct {
	mu      sync.Mutex
	uploads []string
	fail    bool
}

func (a *fakeAttachments) Upload(_ context.Context, name string, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return "", errors.New("upload failed")
	}
	a.uploads = append(a.uploads, name)
	return "/attachments/" + name, nil
}

// recordingListener captures every callback for assertions.
type recordingListener struct {
	mu       sync.Mutex
	messages [][]domain.Message
	sessions []domain.Session
	typing   []*domain.TypingSignal
	rosters  [][]domain.AgentPresenceEntry
}

func (l *recordingListener) OnMessagesChanged(msgs []domain.Message) {
	l.mu.Lock()
	l.messages = append(l.messages, msgs)
	l.mu.Unlock()
}

func (l *recordingListener) OnSessionChanged(s domain.Session) {
	l.mu.Lock()
	l.sessions = append(l.sessions, s)
	l.mu.Unlock()
}

func (l *recordingListener) OnTypingChanged(sig *domain.TypingSignal) {
	l.mu.Lock()
	l.typing = append(l.typing, sig)
	l.mu.Unlock()
}

func (l *recordingListener) OnAssignableAgentsChanged(agents []domain.AgentPresenceEntry) {
	l.mu.Lock()
	l.rosters = append(l.rosters, agents)
	l.mu.Unlock()
}

func (l *recordingListener) lastMessages() []domain.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.messages) == 0 {
		return nil
	}
	return l.messages[len(l.messages)-1]
}

func (l *recordingListener) lastSession() (domain.Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.sessions) == 0 {
		return domain.Session{}, false
	}
	return l.sessions[len(l.sessions)-1], true
}
