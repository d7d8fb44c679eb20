/*
File Name:  Packet.go
Author:     Peter Kleissner

Wire packet structure of ALL mesh packets:

Offset  v1 Size  v2 Size  Info
0       1        1        Version
1       1        1        Type
2       1        1        TTL
3       8        8        Timestamp (ms since epoch), big endian
11      1        1        Flags
12      2        4        Payload length, big endian
?       8        8        Sender ID
?       0/8      0/8      Recipient ID (if HAS_RECIPIENT)
?       -        0/1+8N   Route count + hops (if HAS_ROUTE, v2 only)
?       ?        ?        Payload
?       0/64     0/64     Signature (if HAS_SIGNATURE)

The frame is then padded to a fixed block size with PKCS#7 (see Padding.go).
*/

package protocol

import "errors"

// Message type tags.
const (
	TypeAnnounce       uint8 = 0x01
	TypeMessage        uint8 = 0x02
	TypeLeave          uint8 = 0x03
	TypeNoiseHandshake uint8 = 0x10
	TypeNoiseEncrypted uint8 = 0x11
	TypeFragment       uint8 = 0x20
	TypeRequestSync    uint8 = 0x21
	TypeFileTransfer   uint8 = 0x22
)

// Flag bits.
const (
	FlagHasRecipient uint8 = 0x01
	FlagHasSignature uint8 = 0x02
	FlagIsCompressed uint8 = 0x04
	FlagHasRoute     uint8 = 0x08 // v2 only
)

// Protocol versions.
const (
	Version1 uint8 = 1
	Version2 uint8 = 2
)

// Size limits, per the wire format contract.
const (
	MaxStandardPayload   = 64 * 1024       // MESSAGE, ANNOUNCE, LEAVE, REQUEST_SYNC, NOISE_HANDSHAKE, FRAGMENT
	MaxLargePayload      = 1024 * 1024     // FILE_TRANSFER, NOISE_ENCRYPTED
	MaxCompressedPayload = 64 * 1024       // on the wire, regardless of decompressed size
	SignatureSize        = 64
	PeerIDSize           = 8
)

// BroadcastRecipient is the all-0xFF recipient_id that denotes a broadcast packet.
var BroadcastRecipient = [PeerIDSize]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// Packet is the decoded, in-memory representation of a mesh packet.
type Packet struct {
	Version     uint8
	Type        uint8
	TTL         uint8
	TimestampMs uint64
	Flags       uint8
	SenderID    [PeerIDSize]byte
	RecipientID *[PeerIDSize]byte   // nil unless FlagHasRecipient
	Route       [][PeerIDSize]byte  // nil unless FlagHasRoute (v2 only)
	Payload     []byte
	Signature   *[SignatureSize]byte // nil unless FlagHasSignature
}

var (
	// ErrInvalidLength is returned when a structural length field does not fit the available bytes.
	ErrInvalidLength = errors.New("protocol: invalid length field")
	// ErrUnsupportedVersion is returned for a version byte outside {1,2}.
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")
	// ErrPayloadTooLarge is returned when the payload exceeds the size limit for its type.
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
	// ErrTruncatedFrame is returned when the frame ends before a declared field.
	ErrTruncatedFrame = errors.New("protocol: truncated frame")
	// errRouteInV1 names the v2-only route rule. Nothing in the package returns it: decoding a v1
	// packet ignores HAS_ROUTE instead of failing.
	errRouteInV1 = errors.New("protocol: route is a v2-only feature")
)

// IsBroadcast reports whether the packet's recipient denotes the mesh-wide broadcast address,
// which is true both when no recipient is carried and when the recipient is explicitly the all-0xFF marker.
func (p *Packet) IsBroadcast() bool {
	return p.RecipientID == nil || *p.RecipientID == BroadcastRecipient
}

// payloadLenFieldSize returns the width, in bytes, of the payload-length header field for the given version.
func payloadLenFieldSize(version uint8) int {
	if version == Version2 {
		return 4
	}
	return 2
}

// maxPayloadForType returns the maximum allowed (wire, pre-decompression) payload size for a packet type.
func maxPayloadForType(typ uint8) int {
	switch typ {
	case TypeFileTransfer, TypeNoiseEncrypted:
		return MaxLargePayload
	default:
		return MaxStandardPayload
	}
}

// compressionEligible reports whether a packet type is ever a candidate for DEFLATE compression.
func compressionEligible(typ uint8) bool {
	switch typ {
	case TypeMessage, TypeAnnounce, TypeLeave, TypeRequestSync:
		return true
	default:
		return false
	}
}
