package domain

import "time"

// Transcript is the reconciled conversation state for one session: the
// ordered message list plus the pagination cursors the view needs.
type Transcript struct {
	Messages []Message

	// Total is the server-reported message count from the last history fetch.
	// It can lag behind the reconciled in-memory count after heavy live
	// activity; Remaining accounts for that.
	Total int

	// LoadedOlderOffset is how far back history has been fetched, counted in
	// messages from the newest one.
	LoadedOlderOffset int

	// HighWater is the newest reconciled timestamp; it only moves forward and
	// is used to detect events that predate the oldest loaded page.
	HighWater time.Time
}

// Apply merges a batch into the transcript and advances the high-water mark.
func (t *Transcript) Apply(incoming []Message, origin Origin) {
	t.Messages = Merge(t.Messages, incoming, origin)
	if n := len(t.Messages); n > 0 {
		if last := t.Messages[n-1].Timestamp; last.After(t.HighWater) {
			t.HighWater = last
		}
	}
}

// Remaining is the count of not-yet-loaded older messages for the UI
// affordance. When the server total is stale (smaller than what has been
// reconciled in memory), the in-memory count wins and Remaining is zero;
// whether another load is allowed is signalled separately by the paginator.
func (t *Transcript) Remaining() int {
	if r := t.Total - len(t.Messages); r > 0 {
		return r
	}
	return 0
}
