package realtime

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Pipe is an in-process router member: it buffers delivered frames on a Go
// channel for a conversation engine instead of a websocket. Delivery is
// best-effort; if the consumer falls behind, frames are dropped and counted,
// never blocked on.
type Pipe struct {
	id          string
	userID      string
	displayName string
	admin       bool

	frames chan []byte

	mu      sync.Mutex
	closed  bool
	dropped int
}

// OpenPipe registers an in-process member with the router. Unlike socket
// connections, pipes do not replace the user's existing socket; an agent can
// hold a console socket and an engine pipe at once.
func (r *Router) OpenPipe(userID, displayName string, admin bool) *Pipe {
	p := &Pipe{
		id:          uuid.NewString(),
		userID:      userID,
		displayName: displayName,
		admin:       admin,
		frames:      make(chan []byte, 256),
	}

	r.mu.Lock()
	r.members[p.id] = p
	r.memberTopics[p.id] = make(map[string]struct{})
	r.mu.Unlock()

	return p
}

var _ Member = (*Pipe)(nil)

func (p *Pipe) MemberID() string           { return p.id }
func (p *Pipe) Identity() (string, string) { return p.userID, p.displayName }
func (p *Pipe) Privileged() bool           { return p.admin }

// Deliver enqueues the frame for the consumer. A full buffer drops the frame:
// live delivery is at-least-once overall and the engine re-converges from the
// historical store, so blocking the router is worse than losing a push.
func (p *Pipe) Deliver(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	select {
	case p.frames <- payload:
	default:
		p.dropped++
		log.Printf("realtime: pipe %s dropped frame (%d total)", p.id, p.dropped)
	}
	return nil
}

// Frames is the consumer side. The channel closes on shutdown; no frames are
// delivered after that.
func (p *Pipe) Frames() <-chan []byte { return p.frames }

func (p *Pipe) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.frames)
}

// ClosePipe detaches the pipe from the router and closes its frame channel.
func (r *Router) ClosePipe(p *Pipe) {
	r.Detach(p)
	p.shutdown()
}
