// Package broadcast implements a single-cell, latest-value-wins slot:
// one writer, many readers, each reader tolerating arbitrary lag by
// skipping intermediate values instead of queuing them.
//
// A reader must always get the latest value, never a stale one sitting
// in a dropped buffer, which rules out fan-out to N buffered channels.
// The slot is a version counter guarded by a mutex and sync.Cond, the
// classic "watch" shape.
package broadcast

import (
	"sync"

	"github.com/diegopy/order-aggregator/internal/book"
)

// initialVersion is the version of the empty placeholder Summary every
// Slot starts out holding. Real writes always bump past it, which lets
// Wait tell "unseen real value" apart from "only ever held the
// placeholder" when the slot closes.
const initialVersion = 1

// Slot holds the latest published Summary plus a monotonically increasing
// version. It always holds a value: new subscribers see the zero-value
// Summary until the first real write lands.
type Slot struct {
	mu      sync.Mutex
	cond    *sync.Cond
	value   book.Summary
	version uint64
	closed  bool
}

// NewSlot returns a Slot initialized with an empty Summary, so subscribers
// created before the aggregator's first publish still observe something.
func NewSlot() *Slot {
	s := &Slot{version: initialVersion}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Publish atomically replaces the stored value and wakes every reader
// blocked in Wait. It reports false once the slot is closed, meaning the
// value was dropped and no reader can ever observe it, so the writer
// should stop producing. Concurrent Publish calls from multiple
// goroutines are not supported; writes must be serialized by a single
// writer.
func (s *Slot) Publish(v book.Summary) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.value = v
	s.version++
	s.cond.Broadcast()
	return true
}

// Close marks the slot as having no more writers. Every reader currently
// blocked in Wait returns immediately with ok == false. A later Wait on a
// cursor that has not yet seen the last published value still returns
// that value once; after that, every Wait returns ok == false.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
}

// Cursor is a per-reader handle tracking the last version that reader
// has observed. Cursors are not safe for concurrent use by multiple
// goroutines; each RPC subscriber gets its own.
type Cursor struct {
	slot *Slot
	seen uint64
}

// NewCursor returns a Cursor that has not yet observed any value, so its
// first Wait call returns the value currently in the slot without
// blocking: the initial empty Summary if nothing has been published yet.
func (s *Slot) NewCursor() *Cursor {
	return &Cursor{slot: s}
}

// Wait blocks until the slot's version is newer than the cursor's last
// observed version, or the slot is closed. On success it advances the
// cursor and returns a copy of the current value and ok == true.
// Intermediate values between two Wait calls are skipped by design: if
// the writer publishes twice while a reader is elsewhere, that reader's
// next Wait observes only the second write. This coalescing is the point:
// a slow subscriber should see the freshest book, not a backlog of it.
//
// Wait does not accept a context/cancellation channel itself; callers
// that need to race it against shutdown should run it in a goroutine and
// select on a done channel, as internal/rpcserver does.
func (c *Cursor) Wait() (book.Summary, bool) {
	s := c.slot
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.version == c.seen && !s.closed {
		s.cond.Wait()
	}
	// On closure, an unseen real write is still delivered (the reader's
	// next Wait then reports closed), but the never-written placeholder
	// is not: a closed slot that only ever held the initial empty value
	// has nothing left worth handing out.
	if s.closed && (s.version == c.seen || s.version == initialVersion) {
		return book.Summary{}, false
	}
	c.seen = s.version
	return s.value, true
}
