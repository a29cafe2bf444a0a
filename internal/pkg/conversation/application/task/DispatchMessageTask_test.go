package task

import (
	"context"
	"testing"
	"time"

	"go-deskline/internal/infrastructure/queue/port"
	"go-deskline/internal/infrastructure/realtime"
	"go-deskline/internal/pkg/conversation/domain"
	"go-deskline/internal/pkg/conversation/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubServer captures the registered handler so tests can invoke it directly.
type stubServer struct {
	handlers map[string]port.Handler
}

func (s *stubServer) Register(taskType string, h port.Handler) {
	if s.handlers == nil {
		s.handlers = make(map[string]port.Handler)
	}
	s.handlers[taskType] = h
}

func (s *stubServer) Run(context.Context) error  { return nil }
func (s *stubServer) Stop(context.Context) error { return nil }

type memMessageStore struct {
	saved []domain.Message
}

func (s *memMessageStore) Messages(context.Context, string, int, int) ([]domain.Message, int, error) {
	return nil, 0, nil
}

func (s *memMessageStore) SaveMessage(_ context.Context, _ string, m domain.Message) (string, error) {
	s.saved = append(s.saved, m)
	return "id", nil
}

func readFrame(t *testing.T, p *realtime.Pipe) event.Event {
	t.Helper()
	select {
	case raw, ok := <-p.Frames():
		require.True(t, ok)
		ev, err := event.Normalize(raw)
		require.NoError(t, err)
		return ev
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return event.Event{}
	}
}

func dispatchHarness(t *testing.T) (port.Handler, *memMessageStore, *realtime.Pipe, *realtime.Pipe) {
	t.Helper()

	srv := &stubServer{}
	store := &memMessageStore{}
	router := realtime.NewRouter()
	RegisterDispatchMessageTask(srv, store, router)

	console := router.OpenPipe("agent", "Ana", true)
	router.Join(realtime.TopicSession("s1"), console)
	visitor := router.OpenPipe("visitor", "Visitor", false)
	router.Join(realtime.TopicSessionUser("s1"), visitor)

	h, ok := srv.handlers[DispatchMessageTaskType]
	require.True(t, ok)
	return h, store, console, visitor
}

func TestDispatchPersistsAndFansOut(t *testing.T) {
	h, store, console, visitor := dispatchHarness(t)

	msg := domain.Message{
		Sender:    domain.SenderAgent,
		Text:      "be right with you",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		AgentID:   "agent",
	}
	task, err := NewDispatchTask("s1", msg, "dk1")
	require.NoError(t, err)

	require.NoError(t, h(context.Background(), task))

	require.Len(t, store.saved, 1)
	assert.Equal(t, msg, store.saved[0])

	ev := readFrame(t, console)
	assert.Equal(t, event.KindMessage, ev.Kind)
	assert.Equal(t, msg, ev.Message)

	// Agent replies reach the end-user topic too.
	ev = readFrame(t, visitor)
	assert.Equal(t, msg.Text, ev.Message.Text)
}

func TestDispatchKeepsInternalNotesOffUserTopic(t *testing.T) {
	h, store, console, visitor := dispatchHarness(t)

	note := domain.Message{
		Sender:    domain.SenderInternal,
		Text:      "customer sounded upset",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		AgentID:   "agent",
	}
	task, err := NewDispatchTask("s1", note, "dk2")
	require.NoError(t, err)

	require.NoError(t, h(context.Background(), task))
	require.Len(t, store.saved, 1)

	ev := readFrame(t, console)
	assert.Equal(t, domain.SenderInternal, ev.Message.Sender)

	select {
	case <-visitor.Frames():
		t.Fatal("internal note leaked to the end-user topic")
	default:
	}
}

func TestDispatchRejectsMalformedPayload(t *testing.T) {
	h, store, _, _ := dispatchHarness(t)

	err := h(context.Background(), port.Task{Type: DispatchMessageTaskType, Payload: []byte("{oops")})
	assert.Error(t, err)
	assert.Empty(t, store.saved)
}

func TestDispatchAttachmentRoundTrip(t *testing.T) {
	h, store, console, _ := dispatchHarness(t)

	msg := domain.Message{
		Sender:     domain.SenderUser,
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Attachment: &domain.Attachment{Kind: domain.AttachmentImage, URL: "/attachments/a.png"},
	}
	task, err := NewDispatchTask("s1", msg, "")
	require.NoError(t, err)

	require.NoError(t, h(context.Background(), task))

	require.Len(t, store.saved, 1)
	require.NotNil(t, store.saved[0].Attachment)
	assert.Equal(t, "/attachments/a.png", store.saved[0].Attachment.URL)

	ev := readFrame(t, console)
	require.NotNil(t, ev.Message.Attachment)
	assert.Equal(t, domain.AttachmentImage, ev.Message.Attachment.Kind)
}
