package reliability

import "time"

// Store is the per-Connection map from sequence id to PendingMessage. It is
// only ever touched on the tick thread (see the Connection/Peer
// concurrency model), so it carries no internal locking of its own.
type Store struct {
	pool    pool
	entries map[uint16]*PendingMessage
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[uint16]*PendingMessage)}
}

// Add records a freshly-sent reliable frame as pending, arming its first
// retry at now+retryAfter.
func (s *Store) Add(seq uint16, frame []byte, maxAttempts int, now time.Time, retryAfter time.Duration) *PendingMessage {
	pm := s.pool.get()
	pm.Seq = seq
	pm.Frame = append(pm.Frame[:0], frame...)
	pm.MaxAttempts = maxAttempts
	pm.AttemptsSoFar = 1
	pm.LastSendAt = now
	pm.DueAt = now.Add(retryAfter)
	s.entries[seq] = pm
	return pm
}

// Get returns the pending entry for seq, if any.
func (s *Store) Get(seq uint16) (*PendingMessage, bool) {
	pm, ok := s.entries[seq]
	return pm, ok
}

// Clear removes seq from the store and returns its PendingMessage to the
// pool. Clearing a seq that isn't present is a no-op — callers (ack
// handling in particular) clear optimistically and don't need to check
// presence first.
func (s *Store) Clear(seq uint16) bool {
	pm, ok := s.entries[seq]
	if !ok {
		return false
	}
	delete(s.entries, seq)
	s.pool.put(pm)
	return true
}

// Len reports how many reliable sends are currently awaiting acknowledgement.
func (s *Store) Len() int { return len(s.entries) }

// Range calls fn for every pending entry. fn must not mutate the store;
// callers that need to clear entries while ranging should collect the
// sequence ids first.
func (s *Store) Range(fn func(pm *PendingMessage)) {
	for _, pm := range s.entries {
		fn(pm)
	}
}

// Close returns every pending entry to the pool and empties the store,
// used when a Connection is torn down.
func (s *Store) Close() {
	for seq, pm := range s.entries {
		delete(s.entries, seq)
		s.pool.put(pm)
	}
}
