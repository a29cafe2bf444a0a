package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsHuman(t *testing.T) {
	assert.True(t, Session{SessionID: "s1", Status: StatusActive}.NeedsHuman())
	assert.False(t, Session{SessionID: "s1", Status: StatusAssigned, AssignedAgentID: "a1"}.NeedsHuman())
	assert.False(t, Session{SessionID: "s1", Status: StatusClosed}.NeedsHuman())
}

func TestCanAssign(t *testing.T) {
	active := Session{SessionID: "s1", Status: StatusActive}
	assigned := Session{SessionID: "s1", Status: StatusAssigned, AssignedAgentID: "a1"}
	closed := Session{SessionID: "s1", Status: StatusClosed}

	cases := []struct {
		name    string
		session Session
		actor   Role
		wantErr error
	}{
		{"agent takes unassigned", active, RoleAgent, nil},
		{"admin takes unassigned", active, RoleAdmin, nil},
		{"agent reassigns owned", assigned, RoleAgent, ErrUnauthorized},
		{"admin reassigns owned", assigned, RoleAdmin, nil},
		{"agent on closed", closed, RoleAgent, ErrSessionClosed},
		{"admin on closed", closed, RoleAdmin, ErrSessionClosed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.session.CanAssign(tc.actor)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestCanClose(t *testing.T) {
	assert.ErrorIs(t, Session{Status: StatusActive}.CanClose(), ErrInvalidState)
	assert.NoError(t, Session{Status: StatusAssigned, AssignedAgentID: "a1"}.CanClose())
	assert.ErrorIs(t, Session{Status: StatusClosed}.CanClose(), ErrSessionClosed)
}

func TestCanSend(t *testing.T) {
	assigned := Session{SessionID: "s1", Status: StatusAssigned, AssignedAgentID: "a1"}

	// Closed sessions are read-only for everyone, admins included.
	assert.False(t, Session{Status: StatusClosed}.CanSend(RoleAdmin, "a1"))

	// Admins write regardless of ownership.
	assert.True(t, assigned.CanSend(RoleAdmin, "someone-else"))
	assert.True(t, Session{Status: StatusActive}.CanSend(RoleAdmin, "a9"))

	// Plain agents write only to sessions assigned to them.
	assert.True(t, assigned.CanSend(RoleAgent, "a1"))
	assert.False(t, assigned.CanSend(RoleAgent, "a2"))
	assert.False(t, Session{Status: StatusActive}.CanSend(RoleAgent, "a1"))
}
