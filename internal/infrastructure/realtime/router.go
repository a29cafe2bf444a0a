package realtime

import (
	"sync"

	"go-deskline/internal/pkg/conversation/domain"
	"go-deskline/internal/pkg/conversation/event"
)

// TopicSession names the per-conversation topic carrying every event,
// internal notes and announces included. Only console-side members join it.
func TopicSession(sessionID string) string { return "session:" + sessionID }

// TopicSessionUser is the end-user-facing subset of the session topic.
// Internal notes and announce frames are never broadcast here.
func TopicSessionUser(sessionID string) string { return "session:" + sessionID + ":user" }

// TopicPresence is the admin-wide topic carrying agent presence broadcasts.
const TopicPresence = "presence:agents"

// Router coordinates members (websocket sessions and in-process engine pipes)
// and logical topics. It keeps one active Connection per user while allowing
// efficient fan-out to all members subscribed to a topic, and emits presence
// broadcasts when privileged members come and go.
type Router struct {
	mu           sync.RWMutex
	members      map[string]Member
	userConns    map[string]string              // userID -> connection memberID (sockets only)
	topics       map[string]map[string]Member   // topic -> memberID -> member
	memberTopics map[string]map[string]struct{} // memberID -> set of topics
	agentStatus  map[string]domain.PresenceStatus
}

// NewRouter constructs an initialized Router.
func NewRouter() *Router {
	return &Router{
		members:      make(map[string]Member),
		userConns:    make(map[string]string),
		topics:       make(map[string]map[string]Member),
		memberTopics: make(map[string]map[string]struct{}),
		agentStatus:  make(map[string]domain.PresenceStatus),
	}
}

// Attach registers a socket connection. If a previous socket exists for the
// same user, it is removed and closed after the swap to enforce one active
// socket per user. Privileged connections join the presence topic and their
// arrival is broadcast there.
func (r *Router) Attach(conn *Connection) {
	var previous *Connection

	r.mu.Lock()
	if existingID, ok := r.userConns[conn.UserID]; ok {
		if existing, ok := r.members[existingID].(*Connection); ok {
			previous = existing
			r.detachLocked(existingID)
		}
	}

	r.members[conn.ID] = conn
	r.userConns[conn.UserID] = conn.ID
	r.memberTopics[conn.ID] = make(map[string]struct{})
	if conn.Staff {
		r.joinLocked(TopicPresence, conn)
		r.agentStatus[conn.UserID] = domain.PresenceOnline
	}
	r.mu.Unlock()

	conn.Start()

	if previous != nil {
		previous.Close(4001, "session replaced")
	}
	if conn.Staff {
		r.broadcastPresence(event.TypeAgentConnected, conn.UserID, conn.DisplayName, domain.PresenceOnline)
	}
}

// Detach removes a member if it is still tracked. For privileged socket
// connections the departure is broadcast on the presence topic.
func (r *Router) Detach(m Member) {
	userID, name := m.Identity()
	wasAgent := m.Privileged()

	r.mu.Lock()
	_, tracked := r.members[m.MemberID()]
	r.detachLocked(m.MemberID())
	if wasAgent && tracked {
		delete(r.agentStatus, userID)
	}
	r.mu.Unlock()

	if _, isConn := m.(*Connection); isConn && wasAgent && tracked {
		r.broadcastPresence(event.TypeAgentDisconnected, userID, name, "")
	}
}

// Join adds the member to a topic.
func (r *Router) Join(topic string, m Member) {
	r.mu.Lock()
	if _, ok := r.members[m.MemberID()]; ok {
		r.joinLocked(topic, m)
	}
	r.mu.Unlock()
}

// Leave removes the member from a topic.
func (r *Router) Leave(topic string, m Member) {
	r.mu.Lock()
	r.leaveLocked(topic, m.MemberID())
	r.mu.Unlock()
}

// SetStatus records an agent's self-reported availability and broadcasts the
// change on the presence topic.
func (r *Router) SetStatus(userID, displayName string, status domain.PresenceStatus) {
	r.mu.Lock()
	if _, connected := r.userConns[userID]; !connected {
		r.mu.Unlock()
		return
	}
	r.agentStatus[userID] = status
	r.mu.Unlock()

	r.broadcastPresence(event.TypeStatusChanged, userID, displayName, status)
}

// Broadcast writes payload to all members of the topic. excludeUserID, when
// non-empty, prevents delivering to that user's members (used so typing
// signals are not reflected back to their sender).
func (r *Router) Broadcast(topic string, payload []byte, excludeUserID string) int {
	r.mu.RLock()
	room := r.topics[topic]
	if len(room) == 0 {
		r.mu.RUnlock()
		return 0
	}

	delivered := 0
	for _, m := range room {
		if excludeUserID != "" {
			if userID, _ := m.Identity(); userID == excludeUserID {
				continue
			}
		}
		if err := m.Deliver(payload); err == nil {
			delivered++
		}
	}
	r.mu.RUnlock()
	return delivered
}

// NotifyUser delivers payload to the current socket of the given user.
func (r *Router) NotifyUser(userID string, payload []byte) bool {
	r.mu.RLock()
	memberID, ok := r.userConns[userID]
	if !ok {
		r.mu.RUnlock()
		return false
	}
	m := r.members[memberID]
	r.mu.RUnlock()
	if m == nil {
		return false
	}
	return m.Deliver(payload) == nil
}

// Close terminates all tracked members and clears router state.
func (r *Router) Close() {
	r.mu.Lock()
	members := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	r.members = make(map[string]Member)
	r.userConns = make(map[string]string)
	r.topics = make(map[string]map[string]Member)
	r.memberTopics = make(map[string]map[string]struct{})
	r.agentStatus = make(map[string]domain.PresenceStatus)
	r.mu.Unlock()

	for _, m := range members {
		switch v := m.(type) {
		case *Connection:
			v.Close(1001, "router shutdown")
		case *Pipe:
			v.shutdown()
		}
	}
}

func (r *Router) broadcastPresence(frameType, userID, displayName string, status domain.PresenceStatus) {
	payload, err := event.EncodePresence(frameType, userID, displayName, status)
	if err != nil {
		return
	}
	r.Broadcast(TopicPresence, payload, "")
}

func (r *Router) joinLocked(topic string, m Member) {
	room := r.topics[topic]
	if room == nil {
		room = make(map[string]Member)
		r.topics[topic] = room
	}
	room[m.MemberID()] = m

	memberships := r.memberTopics[m.MemberID()]
	if memberships == nil {
		memberships = make(map[string]struct{})
		r.memberTopics[m.MemberID()] = memberships
	}
	memberships[topic] = struct{}{}
}

func (r *Router) detachLocked(memberID string) {
	m, ok := r.members[memberID]
	if !ok {
		return
	}
	delete(r.members, memberID)

	if userID, _ := m.Identity(); userID != "" {
		if current, ok := r.userConns[userID]; ok && current == memberID {
			delete(r.userConns, userID)
		}
	}

	for topic := range r.memberTopics[memberID] {
		r.leaveLocked(topic, memberID)
	}
	delete(r.memberTopics, memberID)
}

func (r *Router) leaveLocked(topic string, memberID string) {
	if memberID == "" {
		return
	}
	room := r.topics[topic]
	if room == nil {
		return
	}
	delete(room, memberID)
	if len(room) == 0 {
		delete(r.topics, topic)
	}
	if memberships, ok := r.memberTopics[memberID]; ok {
		delete(memberships, topic)
		if len(memberships) == 0 {
			delete(r.memberTopics, memberID)
		}
	}
}
