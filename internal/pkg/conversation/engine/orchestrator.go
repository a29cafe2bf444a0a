package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	qport "go-deskline/internal/infrastructure/queue/port"
	"go-deskline/internal/pkg/conversation/application/task"
	"go-deskline/internal/pkg/conversation/domain"
	"go-deskline/internal/pkg/conversation/event"
	"go-deskline/internal/pkg/conversation/persistence/repository/port"
)

// Listener receives the engine's view-facing callbacks. Implementations must
// be cheap; they run on the engine's goroutines.
type Listener interface {
	OnMessagesChanged([]domain.Message)
	OnSessionChanged(domain.Session)
	OnTypingChanged(*domain.TypingSignal)
	OnAssignableAgentsChanged([]domain.AgentPresenceEntry)
}

// Config fixes one conversation view.
type Config struct {
	SessionID string
	Actor     Actor
	PageSize  int
	TypingTTL time.Duration
}

// Deps are the external collaborators the engine composes.
type Deps struct {
	Store       port.MessageStore
	Sessions    port.SessionStore
	Agents      port.AgentDirectory
	Attachments port.AttachmentStore
	Canned      port.CannedDirectory
	Queue       qport.Client
	Channel     LiveChannel
}

// AttachmentUpload is a not-yet-uploaded binary for an outgoing message.
type AttachmentUpload struct {
	Kind domain.AttachmentKind
	Name string
	Data []byte
}

// Orchestrator owns one conversation view for its lifetime: it requests
// initial history, opens the live channel, routes every inbound event
// through the merge engine, and gates outbound operations through the
// assignment state machine. The reconciled transcript is owned exclusively
// here and only ever rebuilt through the merge engine's pure function.
type Orchestrator struct {
	cfg      Config
	deps     Deps
	listener Listener

	paginator  *Paginator
	tracker    *Tracker
	assignment *Assignment
	matcher    *CannedMatcher

	mu         sync.Mutex
	transcript domain.Transcript
	stopped    bool
	stopOnce   sync.Once
}

// New wires an orchestrator; Start brings it live.
func New(cfg Config, deps Deps, l Listener) *Orchestrator {
	o := &Orchestrator{cfg: cfg, deps: deps, listener: l}
	o.paginator = NewPaginator(deps.Store, cfg.SessionID, cfg.PageSize)
	o.tracker = NewTracker(cfg.Actor.AgentID, cfg.TypingTTL, l.OnTypingChanged, l.OnAssignableAgentsChanged)
	return o
}

// Start loads session state, subscribes the live channel, seeds the roster
// and dictionary, fetches the initial history page and begins routing live
// events. Failures before the channel opens leave nothing to tear down.
func (o *Orchestrator) Start(ctx context.Context) error {
	seed, err := o.deps.Sessions.Session(ctx, o.cfg.SessionID)
	if err != nil {
		return fmt.Errorf("orchestrator: load session: %w", err)
	}
	o.assignment = NewAssignment(o.deps.Sessions, o.deps.Channel, o.cfg.Actor, seed)

	privileged := o.cfg.Actor.Role.Privileged()
	if err := o.deps.Channel.Subscribe(o.cfg.SessionID, privileged); err != nil {
		return fmt.Errorf("orchestrator: subscribe: %w", err)
	}
	if seed.AssignedAgentID != "" {
		// Idempotent; a second console for the same session announces the
		// same identity.
		if err := o.deps.Channel.Announce(o.cfg.SessionID, seed.AssignedAgentID, seed.AssignedAgentName); err != nil {
			log.Printf("orchestrator: announce on start: %v", err)
		}
	}

	if privileged {
		if agents, err := o.deps.Agents.Agents(ctx); err != nil {
			log.Printf("orchestrator: agent directory seed: %v", err)
		} else {
			o.tracker.Seed(agents)
		}
	}

	if responses, err := o.deps.Canned.Responses(ctx); err != nil {
		log.Printf("orchestrator: canned responses: %v", err)
		o.matcher = NewCannedMatcher(nil)
	} else {
		o.matcher = NewCannedMatcher(responses)
	}

	items, total, err := o.paginator.LoadInitial(ctx)
	if err != nil {
		return err
	}
	o.apply(items, domain.OriginHistory, total)
	o.listener.OnSessionChanged(seed)

	go o.loop()
	return nil
}

// Stop tears the view down deterministically: the channel and its topic
// memberships go away and any completion of an in-flight fetch or upload
// becomes a no-op rather than a mutation of dead state.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.mu.Lock()
		o.stopped = true
		o.mu.Unlock()
		o.deps.Channel.Close()
		o.tracker.Stop()
	})
}

// SendMessage gates, uploads, dispatches and optimistically applies one
// outbound message. Failures at any step leave the transcript untouched so
// the host can keep the compose buffer and retry.
func (o *Orchestrator) SendMessage(ctx context.Context, text string, upload *AttachmentUpload, private bool) error {
	if o.isStopped() {
		return domain.ErrInvalidState
	}
	session := o.assignment.Session()
	if !o.assignment.CanSend() {
		if session.Status == domain.StatusClosed {
			return domain.ErrSessionClosed
		}
		return domain.ErrUnauthorized
	}
	if !o.deps.Channel.Connected() {
		return ErrNotConnected
	}

	msg := domain.Message{
		Sender:    domain.SenderAgent,
		Text:      text,
		Timestamp: time.Now().UTC(),
		AgentID:   o.cfg.Actor.AgentID,
	}
	if private {
		msg.Sender = domain.SenderInternal
	}

	if upload != nil {
		url, err := o.deps.Attachments.Upload(ctx, upload.Name, upload.Data)
		if err != nil {
			return fmt.Errorf("orchestrator: attachment upload: %w", err)
		}
		msg.Attachment = &domain.Attachment{Kind: upload.Kind, URL: url}
	}
	if !msg.Valid() {
		return domain.ErrInvalidState
	}

	t, err := task.NewDispatchTask(o.cfg.SessionID, msg, uuid.NewString())
	if err != nil {
		return fmt.Errorf("orchestrator: encode dispatch: %w", err)
	}
	if _, err := o.deps.Queue.Enqueue(ctx, t, qport.EnqueueOption{Queue: "conversation"}); err != nil {
		return fmt.Errorf("orchestrator: dispatch: %w", err)
	}

	// Optimistic local echo; the broadcast copy dedups by fingerprint.
	o.apply([]domain.Message{msg}, domain.OriginLive, -1)
	return nil
}

// RequestOlderMessages loads the next older page and merges it in. A stale
// completion after Stop is discarded.
func (o *Orchestrator) RequestOlderMessages(ctx context.Context) error {
	items, total, err := o.paginator.LoadOlder(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	o.apply(items, domain.OriginHistory, total)
	return nil
}

// Assign takes or reassigns the session for agentID, looking the display
// name up in the roster.
func (o *Orchestrator) Assign(ctx context.Context, agentID string) error {
	if o.isStopped() {
		return domain.ErrInvalidState
	}
	name := agentID
	if entry, ok := o.tracker.Entry(agentID); ok && entry.DisplayName != "" {
		name = entry.DisplayName
	}
	session, err := o.assignment.Assign(ctx, agentID, name)
	if err != nil {
		return err
	}
	o.listener.OnSessionChanged(session)
	return nil
}

// CloseSession ends the conversation; terminal.
func (o *Orchestrator) CloseSession(ctx context.Context) error {
	if o.isStopped() {
		return domain.ErrInvalidState
	}
	session, err := o.assignment.Close(ctx)
	if err != nil {
		return err
	}
	// Peers reconcile session state off announce frames; nudge them so the
	// closed state propagates without a reload.
	if err := o.deps.Channel.Announce(o.cfg.SessionID, o.cfg.Actor.AgentID, o.cfg.Actor.DisplayName); err != nil {
		log.Printf("orchestrator: announce after close: %v", err)
	}
	o.listener.OnSessionChanged(session)
	return nil
}

// NotifyTyping broadcasts the local actor's typing state outward. Best
// effort; never reflected back to self.
func (o *Orchestrator) NotifyTyping() {
	o.deps.Channel.Typing(o.cfg.SessionID, o.cfg.Actor.DisplayName, domain.SenderAgent)
}

// Suggestor builds a compose suggestion surface over the loaded dictionary.
func (o *Orchestrator) Suggestor() *Suggestor {
	return NewSuggestor(o.matcher)
}

// Messages returns a snapshot of the reconciled transcript.
func (o *Orchestrator) Messages() []domain.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.Message(nil), o.transcript.Messages...)
}

// Session returns the last confirmed session state.
func (o *Orchestrator) Session() domain.Session { return o.assignment.Session() }

// Remaining is the older-message count for the load-more affordance.
func (o *Orchestrator) Remaining() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transcript.Remaining()
}

// HasMore reports whether the server still signals older pages.
func (o *Orchestrator) HasMore() bool { return o.paginator.HasMore() }

func (o *Orchestrator) loop() {
	for ev := range o.deps.Channel.Events() {
		if o.isStopped() {
			return
		}
		switch ev.Kind {
		case event.KindMessage:
			if ev.SessionID != o.cfg.SessionID {
				continue
			}
			o.apply([]domain.Message{ev.Message}, domain.OriginLive, -1)
		case event.KindTyping:
			if ev.SessionID != o.cfg.SessionID {
				continue
			}
			o.tracker.ApplyTyping(ev.SessionID, ev.Typing)
		case event.KindPresence:
			o.tracker.ApplyPresence(ev.Presence)
		case event.KindAnnounce:
			if ev.SessionID != o.cfg.SessionID {
				continue
			}
			o.reconcileSession()
		}
	}
}

// reconcileSession re-reads the store after another console announced an
// assignment; the store, not the announce, is authoritative.
func (o *Orchestrator) reconcileSession() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fresh, err := o.deps.Sessions.Session(ctx, o.cfg.SessionID)
	if err != nil {
		log.Printf("orchestrator: reconcile after announce: %v", err)
		return
	}
	o.assignment.Observe(fresh)
	if !o.isStopped() {
		o.listener.OnSessionChanged(fresh)
	}
}

// apply merges a batch into the transcript under the view lock and notifies.
// total < 0 means "no fresh server total".
func (o *Orchestrator) apply(batch []domain.Message, origin domain.Origin, total int) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.transcript.Apply(batch, origin)
	if total >= 0 {
		o.transcript.Total = total
		o.transcript.LoadedOlderOffset += len(batch)
	}
	snapshot := append([]domain.Message(nil), o.transcript.Messages...)
	o.mu.Unlock()

	o.listener.OnMessagesChanged(snapshot)
}

func (o *Orchestrator) isStopped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopped
}
