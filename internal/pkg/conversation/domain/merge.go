package domain

import (
	"sort"
	"time"
)

// Origin tells the merge engine which source an incoming batch came from.
// History batches carry authoritative server timestamps.
type Origin string

const (
	OriginHistory Origin = "history"
	OriginLive    Origin = "live"
)

// Merge reconciles an incoming batch into the current transcript and returns
// a new ordered, duplicate-free transcript. It is a pure function: neither
// input slice is mutated.
//
// Ordering is by timestamp ascending; ties keep insertion order, except that
// at exactly equal timestamps an incoming history instance sorts ahead of
// live-originated entries. The scan then drops every message whose
// fingerprint matches a kept earlier message within the tolerance window, so
// the earliest-sorted instance of a duplicate pair survives.
//
// Merge is idempotent: applying the same batch twice is a no-op after the
// first application. Invalid entries in the batch are dropped, never
// propagated; callers log malformed events at the channel boundary.
func Merge(current, incoming []Message, origin Origin) []Message {
	type entry struct {
		msg  Message
		live bool
	}

	entries := make([]entry, 0, len(current)+len(incoming))
	for _, m := range current {
		entries = append(entries, entry{msg: m})
	}
	for _, m := range incoming {
		if !m.Valid() {
			continue
		}
		entries = append(entries, entry{msg: m, live: origin == OriginLive})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.msg.Timestamp.Equal(b.msg.Timestamp) {
			return a.msg.Timestamp.Before(b.msg.Timestamp)
		}
		return !a.live && b.live
	})

	// Left-to-right scan. Only the last kept instance per fingerprint key
	// matters: the slice is sorted, so any later duplicate is closest in time
	// to that instance.
	lastKept := make(map[string]time.Time, len(entries))
	merged := make([]Message, 0, len(entries))
	for _, e := range entries {
		key := e.msg.fingerprintKey()
		if ts, ok := lastKept[key]; ok {
			if e.msg.Timestamp.Sub(ts) <= FingerprintTolerance {
				continue
			}
		}
		lastKept[key] = e.msg.Timestamp
		merged = append(merged, e.msg)
	}
	return merged
}
