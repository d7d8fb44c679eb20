/*
File Name:  Reassemble.go
Author:     Peter Kleissner

Reassembler tracks in-flight fragment sets, indexed by (sender_id, fragment_id), and reconstructs the
original Packet once every index in [0, total) has arrived. Records are garbage-collected 30 s after
their first fragment arrived, on a 10 s sweep, mirroring the teacher's ticker-driven monitor loops.
*/

package fragment

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/meshcore-dev/meshcore/protocol"
)

// Timeout is the maximum age of a partial fragment record, measured from its first fragment, before
// it is discarded.
const Timeout = 30 * time.Second

// SweepInterval is how often the garbage collector scans for expired records.
const SweepInterval = 10 * time.Second

// ErrReassemblyFailed covers malformed fragment metadata: inconsistent total/original_type across
// fragments sharing a fragment_id, an oversized reassembled payload, or a corrupt header.
var ErrReassemblyFailed = errors.New("fragment: reassembly failed")

type recordKey struct {
	senderID   [protocol.PeerIDSize]byte
	fragmentID [8]byte
}

type record struct {
	total        uint16
	originalType uint8
	received     map[uint16][]byte
	firstSeenMs  int64
	lastPacket   *protocol.Packet
}

// Reassembler holds all in-flight fragment sets for one core instance.
type Reassembler struct {
	mu      sync.Mutex
	records map[recordKey]*record

	terminate chan struct{}
	stopOnce  sync.Once
}

// NewReassembler constructs a Reassembler and starts its background sweep goroutine.
func NewReassembler() *Reassembler {
	r := &Reassembler{
		records:   make(map[recordKey]*record),
		terminate: make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// Close stops the background sweep goroutine. Safe to call more than once.
func (r *Reassembler) Close() {
	r.stopOnce.Do(func() { close(r.terminate) })
}

// Add feeds one inbound FRAGMENT packet into the reassembler. It returns a non-nil Packet once the
// fragment set carried by p is complete; until then it returns (nil, nil). A malformed fragment
// yields ErrReassemblyFailed, and any partial record for that key is discarded.
func (r *Reassembler) Add(p *protocol.Packet, nowMs int64) (*protocol.Packet, error) {
	fragmentID, index, total, originalType, data, err := parseFragmentPayload(p.Payload)
	if err != nil {
		return nil, err
	}

	key := recordKey{senderID: p.SenderID, fragmentID: fragmentID}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[key]
	if !ok {
		rec = &record{
			total:        total,
			originalType: originalType,
			received:     make(map[uint16][]byte),
			firstSeenMs:  nowMs,
		}
		r.records[key] = rec
	}

	if rec.total != total || rec.originalType != originalType {
		delete(r.records, key)
		return nil, ErrReassemblyFailed
	}
	if index >= total {
		delete(r.records, key)
		return nil, ErrReassemblyFailed
	}

	rec.received[index] = data
	rec.lastPacket = p

	if len(rec.received) < int(total) {
		return nil, nil
	}

	size := 0
	for i := uint16(0); i < total; i++ {
		chunk, have := rec.received[i]
		if !have {
			return nil, nil
		}
		size += len(chunk)
	}
	if size > protocol.MaxLargePayload {
		delete(r.records, key)
		return nil, ErrReassemblyFailed
	}

	payload := make([]byte, 0, size)
	for i := uint16(0); i < total; i++ {
		payload = append(payload, rec.received[i]...)
	}

	delete(r.records, key)

	return &protocol.Packet{
		Version:     rec.lastPacket.Version,
		Type:        rec.originalType,
		TTL:         rec.lastPacket.TTL,
		TimestampMs: rec.lastPacket.TimestampMs,
		SenderID:    rec.lastPacket.SenderID,
		RecipientID: rec.lastPacket.RecipientID,
		Route:       rec.lastPacket.Route,
		Payload:     payload,
	}, nil
}

// parseFragmentPayload splits a FRAGMENT packet's payload into its 13-byte header fields and data slice.
func parseFragmentPayload(payload []byte) (fragmentID [8]byte, index, total uint16, originalType uint8, data []byte, err error) {
	if len(payload) < HeaderSize {
		return fragmentID, 0, 0, 0, nil, ErrReassemblyFailed
	}
	copy(fragmentID[:], payload[0:8])
	index = binary.BigEndian.Uint16(payload[8:10])
	total = binary.BigEndian.Uint16(payload[10:12])
	originalType = payload[12]
	data = payload[HeaderSize:]
	return fragmentID, index, total, originalType, data, nil
}

// sweep discards any record whose firstSeenMs is older than Timeout relative to nowMs.
func (r *Reassembler) sweep(nowMs int64) {
	cutoff := nowMs - Timeout.Milliseconds()

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, rec := range r.records {
		if rec.firstSeenMs < cutoff {
			delete(r.records, key)
		}
	}
}

func (r *Reassembler) sweepLoop() {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(time.Now().UnixMilli())
		case <-r.terminate:
			return
		}
	}
}
