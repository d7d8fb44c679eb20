/*
File Name:  SeenTable.go
Author:     Peter Kleissner

Bounded, TTL-expiring table of content-addressed packet keys, used by the Security Gate to suppress
duplicate broadcast/relay traffic. Capacity 10 000 with LRU eviction; entries expire after 5 minutes
on their own regardless of capacity pressure. The sweep goroutine follows the teacher's ticker/select
monitor-loop shape.
*/

package dedup

import (
	"container/list"
	"sync"
	"time"

	"github.com/meshcore-dev/meshcore/protocol"
)

// TTL is how long a seen-packet entry remains valid after insertion.
const TTL = 5 * time.Minute

// Capacity is the maximum number of tracked entries before LRU eviction kicks in.
const Capacity = 10000

// SweepInterval is how often the background goroutine purges TTL-expired entries.
const SweepInterval = 30 * time.Second

type entry struct {
	key       [protocol.PacketKeySize]byte
	expiresAt time.Time
	elem      *list.Element
}

// SeenTable tracks recently observed packet keys for duplicate suppression.
type SeenTable struct {
	mu      sync.Mutex
	entries map[[protocol.PacketKeySize]byte]*entry
	order   *list.List // front = most recently used

	terminate chan struct{}
	stopOnce  sync.Once
}

// NewSeenTable constructs a SeenTable and starts its background expiry sweep.
func NewSeenTable() *SeenTable {
	t := &SeenTable{
		entries:   make(map[[protocol.PacketKeySize]byte]*entry),
		order:     list.New(),
		terminate: make(chan struct{}),
	}
	go t.sweepLoop()
	return t
}

// Close stops the background sweep goroutine. Safe to call more than once.
func (t *SeenTable) Close() {
	t.stopOnce.Do(func() { close(t.terminate) })
}

// CheckAndInsert reports whether key has already been seen (within its TTL). If not seen, it is
// inserted and the method returns false (caller should process the packet); if already seen, the
// entry's recency is refreshed and the method returns true (caller should drop the packet).
func (t *SeenTable) CheckAndInsert(key [protocol.PacketKeySize]byte, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[key]; ok {
		if now.After(e.expiresAt) {
			// expired: treat as unseen, refresh in place
			e.expiresAt = now.Add(TTL)
			t.order.MoveToFront(e.elem)
			return false
		}
		e.expiresAt = now.Add(TTL)
		t.order.MoveToFront(e.elem)
		return true
	}

	e := &entry{key: key, expiresAt: now.Add(TTL)}
	e.elem = t.order.PushFront(key)
	t.entries[key] = e

	if len(t.entries) > Capacity {
		t.evictOldest()
	}

	return false
}

// Contains reports whether key is currently tracked and unexpired, without mutating recency or TTL.
// Used by callers that need custom logic around the seen/unseen decision (e.g. the ANNOUNCE
// TTL-max exception) before deciding whether to insert.
func (t *SeenTable) Contains(key [protocol.PacketKeySize]byte, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return false
	}
	return !now.After(e.expiresAt)
}

// Insert records key as seen with a fresh TTL, evicting the least-recently-used entry if this
// insertion pushes the table over Capacity.
func (t *SeenTable) Insert(key [protocol.PacketKeySize]byte, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[key]; ok {
		e.expiresAt = now.Add(TTL)
		t.order.MoveToFront(e.elem)
		return
	}

	e := &entry{key: key, expiresAt: now.Add(TTL)}
	e.elem = t.order.PushFront(key)
	t.entries[key] = e

	if len(t.entries) > Capacity {
		t.evictOldest()
	}
}

func (t *SeenTable) evictOldest() {
	oldest := t.order.Back()
	if oldest == nil {
		return
	}
	key := oldest.Value.([protocol.PacketKeySize]byte)
	t.order.Remove(oldest)
	delete(t.entries, key)
}

func (t *SeenTable) sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for e := t.order.Back(); e != nil; {
		prev := e.Prev()
		key := e.Value.([protocol.PacketKeySize]byte)
		if ent, ok := t.entries[key]; ok && now.After(ent.expiresAt) {
			t.order.Remove(e)
			delete(t.entries, key)
		}
		e = prev
	}
}

func (t *SeenTable) sweepLoop() {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.sweep(time.Now())
		case <-t.terminate:
			return
		}
	}
}

// Len reports the current number of tracked entries; exposed for tests and diagnostics.
func (t *SeenTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
