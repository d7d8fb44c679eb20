/*
File Name:  Hash.go
Author:     Peter Kleissner

Abstracts the hash function used for content-addressed packet identity. The packet key is used both
for duplicate suppression (Security Gate) and as the element identity hashed into Gossip Sync's GCS
filters, so it must be computed identically by every component.
*/

package protocol

import (
	"crypto/sha256"
	"encoding/binary"
)

// PacketKeySize is the truncated length of a packet key.
const PacketKeySize = 16

// PacketKey computes SHA-256(type ‖ sender_id ‖ timestamp_be64 ‖ payload) truncated to 16 bytes.
// Note this is computed over the *decompressed* payload so the key is stable regardless of whether
// the sender or a relay chose to compress the packet.
func PacketKey(typ uint8, senderID [PeerIDSize]byte, timestampMs uint64, payload []byte) (key [PacketKeySize]byte) {
	h := sha256.New()
	h.Write([]byte{typ})
	h.Write(senderID[:])
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], timestampMs)
	h.Write(ts[:])
	h.Write(payload)

	sum := h.Sum(nil)
	copy(key[:], sum[:PacketKeySize])
	return key
}

// Key returns the packet key for this packet.
func (p *Packet) Key() [PacketKeySize]byte {
	return PacketKey(p.Type, p.SenderID, p.TimestampMs, p.Payload)
}
