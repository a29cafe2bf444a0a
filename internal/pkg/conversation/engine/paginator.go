package engine

import (
	"context"
	"fmt"
	"sync"

	"go-deskline/internal/pkg/conversation/domain"
	"go-deskline/internal/pkg/conversation/persistence/repository/port"
)

// DefaultPageSize bounds one historical fetch.
const DefaultPageSize = 30

// Paginator drives load-older requests against the historical store. It
// tracks its cursor independent of live-channel activity; the merge engine's
// idempotence is what makes interleaving a fetched page with concurrent live
// events safe in any order.
type Paginator struct {
	store     port.MessageStore
	sessionID string
	pageSize  int

	mu        sync.Mutex
	offset    int
	total     int
	exhausted bool
	inFlight  bool
}

// NewPaginator constructs a paginator over the store for one session.
func NewPaginator(store port.MessageStore, sessionID string, pageSize int) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Paginator{store: store, sessionID: sessionID, pageSize: pageSize}
}

// LoadInitial fetches the most recent page in ascending time order and
// resets the cursor to the start of that page.
func (p *Paginator) LoadInitial(ctx context.Context) ([]domain.Message, int, error) {
	if !p.begin() {
		return nil, 0, nil
	}
	defer p.end()

	items, total, err := p.store.Messages(ctx, p.sessionID, p.pageSize, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("paginator: initial fetch: %w", err)
	}

	p.mu.Lock()
	p.offset = len(items)
	p.total = total
	p.exhausted = p.offset >= total
	p.mu.Unlock()
	return items, total, nil
}

// LoadOlder fetches the next page strictly older than everything fetched so
// far and advances the cursor by the page size actually returned, tolerating
// short final pages. A second call while one is in flight is a no-op.
func (p *Paginator) LoadOlder(ctx context.Context) ([]domain.Message, int, error) {
	if !p.begin() {
		return nil, 0, nil
	}
	defer p.end()

	p.mu.Lock()
	if p.exhausted {
		p.mu.Unlock()
		return nil, p.total, nil
	}
	offset := p.offset
	p.mu.Unlock()

	items, total, err := p.store.Messages(ctx, p.sessionID, p.pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("paginator: load older: %w", err)
	}

	p.mu.Lock()
	p.offset = offset + len(items)
	p.total = total
	if len(items) == 0 || p.offset >= total {
		p.exhausted = true
	}
	p.mu.Unlock()
	return items, total, nil
}

// HasMore reports whether the server still signals older pages. This is
// server-driven, independent of the stale-total handling in the transcript.
func (p *Paginator) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.exhausted
}

func (p *Paginator) begin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight {
		return false
	}
	p.inFlight = true
	return true
}

func (p *Paginator) end() {
	p.mu.Lock()
	p.inFlight = false
	p.mu.Unlock()
}
