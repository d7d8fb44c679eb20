/*
File Name:  Store.go
Author:     Peter Kleissner

Gossip state: the latest ANNOUNCE per sender (replaced only by a strictly newer timestamp, and ignored
outright if already older than the stale-peer timeout), plus an insertion-ordered, capacity-bounded map
of recent broadcast MESSAGE packets. Both are reconciled against peers via GCS filters in Sync.go.
*/

package gossip

import (
	"container/list"
	"sync"
	"time"

	"github.com/meshcore-dev/meshcore/protocol"
)

// StalePeerTimeout is how long an announcement (and the messages tracked under its sender) remains live.
const StalePeerTimeout = 3 * time.Minute

// PruneInterval is how often the background sweep removes stale announcements and their messages.
const PruneInterval = 60 * time.Second

// DefaultMessageCapacity bounds the number of tracked broadcast messages.
const DefaultMessageCapacity = 2000

type announceEntry struct {
	packet      *protocol.Packet
	timestampMs uint64
}

type messageEntry struct {
	packet *protocol.Packet
	elem   *list.Element
}

// Store holds one core instance's gossip-tracked public traffic.
type Store struct {
	mu               sync.Mutex
	announcements    map[[protocol.PeerIDSize]byte]*announceEntry
	messages         map[[protocol.PacketKeySize]byte]*messageEntry
	messageOrder     *list.List // front = newest
	messageCapacity  int

	terminate chan struct{}
	stopOnce  sync.Once
}

// NewStore constructs a Store with the given message capacity and starts its pruning sweep.
func NewStore(messageCapacity int) *Store {
	if messageCapacity <= 0 {
		messageCapacity = DefaultMessageCapacity
	}
	s := &Store{
		announcements:   make(map[[protocol.PeerIDSize]byte]*announceEntry),
		messages:        make(map[[protocol.PacketKeySize]byte]*messageEntry),
		messageOrder:    list.New(),
		messageCapacity: messageCapacity,
		terminate:       make(chan struct{}),
	}
	go s.pruneLoop()
	return s
}

// Close stops the background pruning goroutine. Safe to call more than once.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.terminate) })
}

// Track records p if it is an ANNOUNCE (replacing any older one for its sender) or a broadcast MESSAGE
// (inserted into the capped, insertion-ordered message set). Any other type, or an ANNOUNCE already
// older than the stale-peer timeout, is ignored.
func (s *Store) Track(p *protocol.Packet, nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	age := time.Duration(nowMs-int64(p.TimestampMs)) * time.Millisecond

	switch {
	case p.Type == protocol.TypeAnnounce:
		if age > StalePeerTimeout {
			return
		}
		existing, ok := s.announcements[p.SenderID]
		if ok && existing.timestampMs >= p.TimestampMs {
			return
		}
		s.announcements[p.SenderID] = &announceEntry{packet: p, timestampMs: p.TimestampMs}

	case p.Type == protocol.TypeMessage && p.IsBroadcast():
		key := p.Key()
		if _, ok := s.messages[key]; ok {
			return
		}
		elem := s.messageOrder.PushFront(key)
		s.messages[key] = &messageEntry{packet: p, elem: elem}
		if s.messageOrder.Len() > s.messageCapacity {
			oldest := s.messageOrder.Back()
			oldestKey := oldest.Value.([protocol.PacketKeySize]byte)
			s.messageOrder.Remove(oldest)
			delete(s.messages, oldestKey)
		}
	}
}

// AllKeys returns the packet key of every tracked item (announcements and messages), used to build an
// outgoing REQUEST_SYNC filter.
func (s *Store) AllKeys() [][protocol.PacketKeySize]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([][protocol.PacketKeySize]byte, 0, len(s.announcements)+len(s.messages))
	for _, e := range s.announcements {
		keys = append(keys, e.packet.Key())
	}
	for key := range s.messages {
		keys = append(keys, key)
	}
	return keys
}

// Lookup returns the tracked packet for a given packet key, whether it is an announcement or a message.
func (s *Store) Lookup(key [protocol.PacketKeySize]byte) (*protocol.Packet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.messages[key]; ok {
		return e.packet, true
	}
	for _, e := range s.announcements {
		if e.packet.Key() == key {
			return e.packet, true
		}
	}
	return nil, false
}

// Prune removes announcements (and the messages tracked under their sender) older than StalePeerTimeout.
func (s *Store) Prune(nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prunedSenders := make(map[[protocol.PeerIDSize]byte]struct{})
	for sender, e := range s.announcements {
		age := time.Duration(nowMs-int64(e.timestampMs)) * time.Millisecond
		if age > StalePeerTimeout {
			delete(s.announcements, sender)
			prunedSenders[sender] = struct{}{}
		}
	}

	if len(prunedSenders) == 0 {
		return
	}

	for key, e := range s.messages {
		if _, ok := prunedSenders[e.packet.SenderID]; ok {
			s.messageOrder.Remove(e.elem)
			delete(s.messages, key)
		}
	}
}

func (s *Store) pruneLoop() {
	ticker := time.NewTicker(PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Prune(time.Now().UnixMilli())
		case <-s.terminate:
			return
		}
	}
}
