/*
File Name:  Encoding.go
Author:     Peter Kleissner

Bit-exact encode/decode of Packet into the wire format described in Packet.go.
*/

package protocol

import (
	"encoding/binary"
)

// Encode serializes the packet into its wire form, including compression (if beneficial) and padding.
// It does not sign the packet; callers that need a signature must set p.Signature before calling Encode.
func Encode(p *Packet) (frame []byte, err error) {
	working := *p
	working.Payload = append([]byte(nil), p.Payload...)

	if compressionEligible(working.Type) {
		if compressed, ok := compressPayload(working.Version, working.Payload); ok {
			working.Payload = compressed
			working.Flags |= FlagIsCompressed
		} else {
			working.Flags &^= FlagIsCompressed
		}
	}

	raw, err := encodeRaw(&working)
	if err != nil {
		return nil, err
	}

	return Pad(raw), nil
}

// EncodeForSigning produces the exact byte sequence that is signed/verified with Ed25519: the packet
// re-encoded with signature=None and ttl=0, so relays that mutate TTL do not invalidate the signature.
// This never compresses or pads; the signing plane operates on the raw structural encoding only.
func EncodeForSigning(p *Packet) (data []byte, err error) {
	working := *p
	working.TTL = 0
	working.Signature = nil
	working.Flags &^= FlagHasSignature
	return encodeRaw(&working)
}

// encodeRaw performs the structural (unpadded, already-compressed) encoding of a packet.
func encodeRaw(p *Packet) (raw []byte, err error) {
	if p.Version != Version1 && p.Version != Version2 {
		return nil, ErrUnsupportedVersion
	}
	if len(p.Payload) > maxPayloadForType(p.Type) {
		return nil, ErrPayloadTooLarge
	}
	if p.Flags&FlagIsCompressed != 0 && len(p.Payload) > MaxCompressedPayload {
		return nil, ErrPayloadTooLarge
	}

	hasRecipient := p.RecipientID != nil
	hasRoute := p.Version == Version2 && len(p.Route) > 0
	hasSignature := p.Signature != nil

	flags := p.Flags
	if hasRecipient {
		flags |= FlagHasRecipient
	} else {
		flags &^= FlagHasRecipient
	}
	if hasRoute {
		flags |= FlagHasRoute
	} else {
		flags &^= FlagHasRoute
	}
	if hasSignature {
		flags |= FlagHasSignature
	} else {
		flags &^= FlagHasSignature
	}

	lenFieldSize := payloadLenFieldSize(p.Version)

	size := 1 + 1 + 1 + 8 + 1 + lenFieldSize + PeerIDSize
	if hasRecipient {
		size += PeerIDSize
	}
	if hasRoute {
		size += 1 + PeerIDSize*len(p.Route)
	}
	size += len(p.Payload)
	if hasSignature {
		size += SignatureSize
	}

	raw = make([]byte, size)
	off := 0
	raw[off] = p.Version
	off++
	raw[off] = p.Type
	off++
	raw[off] = p.TTL
	off++
	binary.BigEndian.PutUint64(raw[off:off+8], p.TimestampMs)
	off += 8
	raw[off] = flags
	off++

	switch lenFieldSize {
	case 2:
		binary.BigEndian.PutUint16(raw[off:off+2], uint16(len(p.Payload)))
	case 4:
		binary.BigEndian.PutUint32(raw[off:off+4], uint32(len(p.Payload)))
	}
	off += lenFieldSize

	copy(raw[off:off+PeerIDSize], p.SenderID[:])
	off += PeerIDSize

	if hasRecipient {
		copy(raw[off:off+PeerIDSize], p.RecipientID[:])
		off += PeerIDSize
	}

	if hasRoute {
		raw[off] = uint8(len(p.Route))
		off++
		for _, hop := range p.Route {
			copy(raw[off:off+PeerIDSize], hop[:])
			off += PeerIDSize
		}
	}

	copy(raw[off:off+len(p.Payload)], p.Payload)
	off += len(p.Payload)

	if hasSignature {
		copy(raw[off:off+SignatureSize], p.Signature[:])
		off += SignatureSize
	}

	return raw, nil
}

// Decode parses a wire frame into a Packet. It first attempts to parse the frame as-is; if that fails,
// it strips strict PKCS#7 padding and retries once. Unknown flag bits are ignored for forward
// compatibility, except HAS_ROUTE on a v1 packet, which is always ignored (route is v2-only).
func Decode(frame []byte) (p *Packet, err error) {
	if p, err = decodeRaw(frame); err == nil {
		return decompressIfNeeded(p)
	}

	unpadded, unpadErr := Unpad(frame)
	if unpadErr != nil {
		return nil, err
	}
	if p, err = decodeRaw(unpadded); err != nil {
		return nil, err
	}
	return decompressIfNeeded(p)
}

func decodeRaw(raw []byte) (p *Packet, err error) {
	const fixedMin = 1 + 1 + 1 + 8 + 1
	if len(raw) < fixedMin+PeerIDSize {
		return nil, ErrTruncatedFrame
	}

	p = &Packet{}
	off := 0
	p.Version = raw[off]
	off++
	if p.Version != Version1 && p.Version != Version2 {
		return nil, ErrUnsupportedVersion
	}
	p.Type = raw[off]
	off++
	p.TTL = raw[off]
	off++
	p.TimestampMs = binary.BigEndian.Uint64(raw[off : off+8])
	off += 8
	flags := raw[off]
	off++

	lenFieldSize := payloadLenFieldSize(p.Version)
	if len(raw) < off+lenFieldSize {
		return nil, ErrTruncatedFrame
	}

	var payloadLen int
	switch lenFieldSize {
	case 2:
		payloadLen = int(binary.BigEndian.Uint16(raw[off : off+2]))
	case 4:
		payloadLen = int(binary.BigEndian.Uint32(raw[off : off+4]))
	}
	off += lenFieldSize

	if len(raw) < off+PeerIDSize {
		return nil, ErrTruncatedFrame
	}
	copy(p.SenderID[:], raw[off:off+PeerIDSize])
	off += PeerIDSize

	hasRecipient := flags&FlagHasRecipient != 0
	if hasRecipient {
		if len(raw) < off+PeerIDSize {
			return nil, ErrTruncatedFrame
		}
		var recipient [PeerIDSize]byte
		copy(recipient[:], raw[off:off+PeerIDSize])
		p.RecipientID = &recipient
		off += PeerIDSize
	}

	// HAS_ROUTE is a v2-only feature; on v1 the bit is ignored entirely (no route is parsed,
	// and the bit is dropped from the in-memory flags so callers never observe it on v1).
	hasRoute := flags&FlagHasRoute != 0 && p.Version == Version2
	if hasRoute {
		if len(raw) < off+1 {
			return nil, ErrTruncatedFrame
		}
		count := int(raw[off])
		off++
		if len(raw) < off+PeerIDSize*count {
			return nil, ErrTruncatedFrame
		}
		p.Route = make([][PeerIDSize]byte, count)
		for i := 0; i < count; i++ {
			copy(p.Route[i][:], raw[off:off+PeerIDSize])
			off += PeerIDSize
		}
	}
	if p.Version == Version1 {
		flags &^= FlagHasRoute
	}
	p.Flags = flags

	hasSignature := flags&FlagHasSignature != 0
	tailReserved := 0
	if hasSignature {
		tailReserved = SignatureSize
	}
	if len(raw) < off+payloadLen+tailReserved {
		return nil, ErrTruncatedFrame
	}
	if payloadLen > maxPayloadForType(p.Type) {
		return nil, ErrPayloadTooLarge
	}
	if flags&FlagIsCompressed != 0 && payloadLen > MaxCompressedPayload {
		return nil, ErrPayloadTooLarge
	}

	p.Payload = make([]byte, payloadLen)
	copy(p.Payload, raw[off:off+payloadLen])
	off += payloadLen

	if hasSignature {
		var sig [SignatureSize]byte
		copy(sig[:], raw[off:off+SignatureSize])
		p.Signature = &sig
		off += SignatureSize
	}

	return p, nil
}

// overheadForFragment returns the on-wire header overhead (everything but the fragment payload slice)
// that a FRAGMENT packet carrying the given characteristics would incur, per the Fragmenter's sizing rule.
func overheadForFragment(version uint8, hasRoute bool, routeHops int, hasRecipient, hasSignature bool) int {
	size := 1 + 1 + 1 + 8 + 1 + payloadLenFieldSize(version) + PeerIDSize
	if hasRecipient {
		size += PeerIDSize
	}
	if version == Version2 && hasRoute {
		size += 1 + PeerIDSize*routeHops
	}
	if hasSignature {
		size += SignatureSize
	}
	return size
}

// FragmentOverhead is exported for the fragment package's sizing computation.
func FragmentOverhead(version uint8, hasRoute bool, routeHops int, hasRecipient, hasSignature bool) int {
	return overheadForFragment(version, hasRoute, routeHops, hasRecipient, hasSignature)
}
