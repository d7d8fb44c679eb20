/*
File Name:  Packet_test.go
Author:     Peter Kleissner
*/

package protocol

import (
	"bytes"
	"crypto/rand"
	mrand "math/rand"
	"testing"
)

// TestWireCodecConcreteScenario reproduces the literal byte sequence from the specification.
func TestWireCodecConcreteScenario(t *testing.T) {
	var sender, recipient [PeerIDSize]byte
	sender[7] = 0x01
	recipient[7] = 0x02

	p := &Packet{
		Version:     Version1,
		Type:        TypeMessage,
		TTL:         7,
		TimestampMs: 1,
		Flags:       FlagHasRecipient,
		SenderID:    sender,
		RecipientID: &recipient,
		Payload:     []byte("hi"),
	}

	raw, err := encodeRaw(p)
	if err != nil {
		t.Fatalf("encodeRaw: %v", err)
	}

	want := []byte{
		0x01, 0x02, 0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x01, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02,
		0x68, 0x69,
	}
	if !bytes.Equal(raw, want) {
		t.Fatalf("encodeRaw mismatch:\n got  %x\n want %x", raw, want)
	}

	padded := Pad(raw)
	if len(padded) != 256 {
		t.Fatalf("expected padding to 256 bytes, got %d", len(padded))
	}

	decoded, err := Decode(padded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Version != p.Version || decoded.Type != p.Type || decoded.TTL != p.TTL ||
		decoded.TimestampMs != p.TimestampMs || decoded.SenderID != p.SenderID ||
		*decoded.RecipientID != *p.RecipientID || !bytes.Equal(decoded.Payload, p.Payload) {
		t.Fatalf("round-trip mismatch: %+v vs %+v", decoded, p)
	}
}

// TestRoundTripStructural exercises decode(encode(P)) == P modulo signature/route/padding for a range
// of structurally generated packets.
func TestRoundTripStructural(t *testing.T) {
	rng := mrand.New(mrand.NewSource(1))

	for i := 0; i < 200; i++ {
		p := randomPacket(rng)

		raw, err := encodeRaw(p)
		if err != nil {
			t.Fatalf("iteration %d: encodeRaw: %v", i, err)
		}
		decoded, err := decodeRaw(raw)
		if err != nil {
			t.Fatalf("iteration %d: decodeRaw: %v", i, err)
		}
		assertPacketsEqual(t, i, p, decoded)
	}
}

// TestPadThenUnpadRoundTrip checks decode(pad_then_unpad(encode(P))) == decode(encode(P)).
func TestPadThenUnpadRoundTrip(t *testing.T) {
	rng := mrand.New(mrand.NewSource(2))

	for i := 0; i < 100; i++ {
		p := randomPacket(rng)
		raw, err := encodeRaw(p)
		if err != nil {
			t.Fatalf("encodeRaw: %v", err)
		}

		padded := Pad(raw)
		unpadded, err := Unpad(padded)
		if err != nil {
			t.Fatalf("iteration %d: Unpad: %v", i, err)
		}
		if !bytes.Equal(unpadded, raw) {
			t.Fatalf("iteration %d: pad/unpad mismatch", i)
		}
	}
}

// TestUnpadRejectsNonStrictPadding ensures a tampered pad byte is rejected.
func TestUnpadRejectsNonStrictPadding(t *testing.T) {
	raw := []byte{1, 2, 4, 4, 4, 4}
	if _, err := Unpad(raw); err != nil {
		t.Fatalf("expected valid pad to parse: %v", err)
	}

	tampered := []byte{1, 2, 4, 4, 9, 4}
	if _, err := Unpad(tampered); err == nil {
		t.Fatal("expected tampered padding to be rejected")
	}
}

// TestCompressionRoundTrip checks that a compressible payload compresses and decompresses exactly.
func TestCompressionRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 20)

	var sender [PeerIDSize]byte
	sender[0] = 0x42

	p := &Packet{
		Version:     Version2,
		Type:        TypeMessage,
		TTL:         7,
		TimestampMs: 12345,
		SenderID:    sender,
		Payload:     payload,
	}

	frame, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Fatalf("decompressed payload mismatch: got %d bytes, want %d", len(decoded.Payload), len(payload))
	}
}

// TestUnknownFlagsIgnoredV1 verifies HAS_ROUTE is dropped on v1 packets rather than causing a decode
// failure or a spurious route.
func TestUnknownFlagsIgnoredV1(t *testing.T) {
	var sender [PeerIDSize]byte
	p := &Packet{
		Version:     Version1,
		Type:        TypeAnnounce,
		TTL:         7,
		TimestampMs: 1,
		Flags:       FlagHasRoute, // invalid on v1; must be ignored, not rejected
		SenderID:    sender,
		Payload:     []byte("x"),
	}

	raw, err := encodeRaw(p)
	if err != nil {
		t.Fatalf("encodeRaw: %v", err)
	}

	decoded, err := decodeRaw(raw)
	if err != nil {
		t.Fatalf("decodeRaw: %v", err)
	}
	if decoded.Flags&FlagHasRoute != 0 {
		t.Fatal("HAS_ROUTE must be cleared on v1")
	}
	if decoded.Route != nil {
		t.Fatal("v1 packet must never carry a parsed route")
	}
}

// TestSigningPlaneIgnoresTTLAndSignature verifies toBinaryDataForSigning zeroes TTL and drops the
// signature so relays mutating TTL do not invalidate a prior signature.
func TestSigningPlaneIgnoresTTLAndSignature(t *testing.T) {
	var sender [PeerIDSize]byte
	var sig [SignatureSize]byte
	rand.Read(sig[:])

	p1 := &Packet{Version: Version1, Type: TypeMessage, TTL: 7, TimestampMs: 9, SenderID: sender, Payload: []byte("hi"), Signature: &sig}
	p2 := &Packet{Version: Version1, Type: TypeMessage, TTL: 3, TimestampMs: 9, SenderID: sender, Payload: []byte("hi")}

	d1, err := EncodeForSigning(p1)
	if err != nil {
		t.Fatalf("EncodeForSigning p1: %v", err)
	}
	d2, err := EncodeForSigning(p2)
	if err != nil {
		t.Fatalf("EncodeForSigning p2: %v", err)
	}
	if !bytes.Equal(d1, d2) {
		t.Fatal("signing plane must be invariant under TTL and signature presence")
	}
}

func randomPacket(rng *mrand.Rand) *Packet {
	version := Version1
	if rng.Intn(2) == 0 {
		version = Version2
	}

	types := []uint8{TypeAnnounce, TypeMessage, TypeLeave, TypeNoiseHandshake, TypeRequestSync}
	typ := types[rng.Intn(len(types))]

	var sender [PeerIDSize]byte
	rng.Read(sender[:])

	p := &Packet{
		Version:     version,
		Type:        typ,
		TTL:         uint8(rng.Intn(8)),
		TimestampMs: rng.Uint64(),
		SenderID:    sender,
	}

	if rng.Intn(2) == 0 {
		var recipient [PeerIDSize]byte
		rng.Read(recipient[:])
		p.RecipientID = &recipient
	}

	if version == Version2 && rng.Intn(2) == 0 {
		hops := rng.Intn(4)
		for i := 0; i < hops; i++ {
			var hop [PeerIDSize]byte
			rng.Read(hop[:])
			p.Route = append(p.Route, hop)
		}
	}

	payload := make([]byte, rng.Intn(64))
	rng.Read(payload)
	p.Payload = payload

	return p
}

func assertPacketsEqual(t *testing.T, i int, a, b *Packet) {
	t.Helper()
	if a.Version != b.Version || a.Type != b.Type || a.TTL != b.TTL || a.TimestampMs != b.TimestampMs || a.SenderID != b.SenderID {
		t.Fatalf("iteration %d: header mismatch: %+v vs %+v", i, a, b)
	}
	if (a.RecipientID == nil) != (b.RecipientID == nil) {
		t.Fatalf("iteration %d: recipient presence mismatch", i)
	}
	if a.RecipientID != nil && *a.RecipientID != *b.RecipientID {
		t.Fatalf("iteration %d: recipient mismatch", i)
	}
	if len(a.Route) != len(b.Route) {
		t.Fatalf("iteration %d: route length mismatch", i)
	}
	for j := range a.Route {
		if a.Route[j] != b.Route[j] {
			t.Fatalf("iteration %d: route hop %d mismatch", i, j)
		}
	}
	if !bytes.Equal(a.Payload, b.Payload) {
		t.Fatalf("iteration %d: payload mismatch", i)
	}
}
