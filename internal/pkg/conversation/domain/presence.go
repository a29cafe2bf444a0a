package domain

import "time"

// PresenceStatus is an agent's self-reported availability.
type PresenceStatus string

const (
	PresenceOnline PresenceStatus = "online"
	PresenceAway   PresenceStatus = "away"
)

// AgentPresenceEntry is one row in the connected-agent roster.
type AgentPresenceEntry struct {
	UserID      string
	DisplayName string
	Connected   bool
	Status      PresenceStatus
}

// Assignable reports whether the agent may appear in the assignment roster.
// "away" or disconnected agents never do, even if a stale list briefly
// contains them.
func (e AgentPresenceEntry) Assignable() bool {
	return e.Connected && e.Status == PresenceOnline
}

// TypingSignal is the ephemeral remote-party-is-typing state for a session.
// Purely in-memory; superseded by any newer signal and auto-expired.
type TypingSignal struct {
	SessionID   string
	DisplayName string
	Role        Sender
	ExpiresAt   time.Time
}

// CannedResponse is one shortcut dictionary entry, immutable for the
// duration of composing.
type CannedResponse struct {
	Shortcut string
	Category string
	Content  string
}
