package engine

import (
	"context"
	"fmt"
	"sync"

	"go-deskline/internal/pkg/conversation/domain"
	"go-deskline/internal/pkg/conversation/persistence/repository/port"
)

// Actor is the console identity driving one conversation view.
type Actor struct {
	AgentID     string
	DisplayName string
	Role        domain.Role
}

// Assignment tracks one session's lifecycle and gates which operations are
// legal for the actor. Transitions are announced on the live channel before
// the store write and confirmed by re-reading the store: when two admins
// assign simultaneously the last store write wins, and the view reconciles
// to whatever the store reports, never to its own optimistic guess.
type Assignment struct {
	sessions port.SessionStore
	channel  LiveChannel
	actor    Actor

	mu      sync.Mutex
	session domain.Session
}

// NewAssignment seeds the state machine with the session as last read.
func NewAssignment(sessions port.SessionStore, channel LiveChannel, actor Actor, seed domain.Session) *Assignment {
	return &Assignment{sessions: sessions, channel: channel, actor: actor, session: seed}
}

// Session returns the last confirmed server state.
func (a *Assignment) Session() domain.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// CanSend reports whether the actor's compose surface is writable.
func (a *Assignment) CanSend() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.CanSend(a.actor.Role, a.actor.AgentID)
}

// Assign takes or hands over the session for agentID. Preconditions are
// checked before any network call; the announce step runs before the store
// write and a disconnected channel rejects the whole operation up front.
func (a *Assignment) Assign(ctx context.Context, agentID, agentName string) (domain.Session, error) {
	a.mu.Lock()
	current := a.session
	a.mu.Unlock()

	if err := current.CanAssign(a.actor.Role); err != nil {
		return current, err
	}
	if !a.channel.Connected() {
		return current, ErrNotConnected
	}

	if err := a.channel.Announce(current.SessionID, agentID, agentName); err != nil {
		return current, err
	}
	if err := a.sessions.Assign(ctx, current.SessionID, agentID, agentName); err != nil {
		return current, fmt.Errorf("assignment: store write: %w", err)
	}
	return a.reconcile(ctx, current.SessionID)
}

// Close ends the session. Terminal: afterwards CanSend is false for every
// role.
func (a *Assignment) Close(ctx context.Context) (domain.Session, error) {
	a.mu.Lock()
	current := a.session
	a.mu.Unlock()

	if err := current.CanClose(); err != nil {
		return current, err
	}
	if err := a.sessions.Close(ctx, current.SessionID); err != nil {
		return current, fmt.Errorf("assignment: close: %w", err)
	}
	return a.reconcile(ctx, current.SessionID)
}

// Observe folds in session state learned from elsewhere (an announce event
// from another console, or a fresh read).
func (a *Assignment) Observe(s domain.Session) {
	a.mu.Lock()
	if s.SessionID == a.session.SessionID {
		a.session = s
	}
	a.mu.Unlock()
}

// reconcile re-reads the store after a mutating call. If the read fails the
// write still happened; keep the last confirmed state and surface the error.
func (a *Assignment) reconcile(ctx context.Context, sessionID string) (domain.Session, error) {
	fresh, err := a.sessions.Session(ctx, sessionID)
	if err != nil {
		return a.Session(), fmt.Errorf("assignment: reconcile read: %w", err)
	}
	a.mu.Lock()
	a.session = fresh
	a.mu.Unlock()
	return fresh, nil
}
