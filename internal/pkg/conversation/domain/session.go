package domain

// Status is the lifecycle state of a support session.
type Status string

const (
	StatusActive   Status = "active"
	StatusAssigned Status = "agent_assigned"
	StatusClosed   Status = "closed"
)

// Role of the actor operating the agent console.
type Role string

const (
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Privileged reports whether the role may reassign sessions and receive
// admin-wide presence broadcasts.
func (r Role) Privileged() bool { return r == RoleAdmin }

// Session represents one support conversation.
// Invariant: StatusAssigned implies a non-empty AssignedAgentID; StatusClosed
// is terminal.
type Session struct {
	SessionID         string
	Status            Status
	AssignedAgentID   string
	AssignedAgentName string
}

// NeedsHuman is the derived signal the session list surfaces: the
// conversation is open but no agent owns it yet.
func (s Session) NeedsHuman() bool {
	return s.Status != StatusClosed && s.AssignedAgentID == ""
}

// CanAssign checks whether actor may take or hand over the session.
// A plain role may only self-assign an unassigned session; reassignment of an
// owned session requires a privileged role.
func (s Session) CanAssign(actor Role) error {
	switch s.Status {
	case StatusClosed:
		return ErrSessionClosed
	case StatusAssigned:
		if !actor.Privileged() {
			return ErrUnauthorized
		}
		return nil
	default:
		return nil
	}
}

// CanClose checks the close precondition: only an assigned session closes.
func (s Session) CanClose() error {
	switch s.Status {
	case StatusClosed:
		return ErrSessionClosed
	case StatusAssigned:
		return nil
	default:
		return ErrInvalidState
	}
}

// CanSend reports whether the agent/admin compose surface is writable for
// the actor. The end-user channel is not gated by this at all.
func (s Session) CanSend(actor Role, agentID string) bool {
	if s.Status == StatusClosed {
		return false
	}
	if actor.Privileged() {
		return true
	}
	return s.Status == StatusAssigned && s.AssignedAgentID == agentID
}
