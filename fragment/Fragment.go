/*
File Name:  Fragment.go
Author:     Peter Kleissner

Splits an oversized Packet into a sequence of FRAGMENT packets that each fit under a link MTU. Each
fragment's payload carries a 13-byte header (fragment_id, index, total, original_type) followed by a
data slice; fragments are contiguous and cover the original payload exactly once.
*/

package fragment

import (
	"crypto/rand"
	"encoding/binary"
	"errors"

	"github.com/meshcore-dev/meshcore/protocol"
)

// HeaderSize is the fixed-width fragment payload header: 8-byte fragment_id, 2-byte index,
// 2-byte total, 1-byte original_type.
const HeaderSize = 13

// ErrMTUTooSmall is returned when the MTU leaves no room for even a single byte of fragment data.
var ErrMTUTooSmall = errors.New("fragment: MTU too small for fragment header and overhead")

// ErrTooManyFragments is returned when a payload would require more than 65535 fragments.
var ErrTooManyFragments = errors.New("fragment: payload requires more fragments than total field can hold")

// Split breaks p's payload into a sequence of FRAGMENT packets sized to fit within mtu bytes once
// encoded. Each fragment preserves p's version, sender_id, recipient_id, route, and TTL.
func Split(p *protocol.Packet, mtu int) ([]*protocol.Packet, error) {
	hasRoute := len(p.Route) > 0
	overhead := protocol.FragmentOverhead(p.Version, hasRoute, len(p.Route), p.RecipientID != nil, p.Signature != nil)

	capacity := mtu - overhead - HeaderSize
	if capacity <= 0 {
		return nil, ErrMTUTooSmall
	}

	total := (len(p.Payload) + capacity - 1) / capacity
	if total == 0 {
		total = 1
	}
	if total > 0xFFFF {
		return nil, ErrTooManyFragments
	}

	var fragmentID [8]byte
	if _, err := rand.Read(fragmentID[:]); err != nil {
		return nil, err
	}

	fragments := make([]*protocol.Packet, 0, total)
	for i := 0; i < total; i++ {
		start := i * capacity
		end := start + capacity
		if end > len(p.Payload) {
			end = len(p.Payload)
		}

		payload := make([]byte, HeaderSize+(end-start))
		copy(payload[0:8], fragmentID[:])
		binary.BigEndian.PutUint16(payload[8:10], uint16(i))
		binary.BigEndian.PutUint16(payload[10:12], uint16(total))
		payload[12] = p.Type
		copy(payload[HeaderSize:], p.Payload[start:end])

		fragments = append(fragments, &protocol.Packet{
			Version:     p.Version,
			Type:        protocol.TypeFragment,
			TTL:         p.TTL,
			TimestampMs: p.TimestampMs,
			SenderID:    p.SenderID,
			RecipientID: p.RecipientID,
			Route:       p.Route,
			Payload:     payload,
		})
	}

	return fragments, nil
}
