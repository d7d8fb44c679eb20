/*
File Name:  Gate_test.go
Author:     Peter Kleissner
*/

package gate

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/meshcore-dev/meshcore/dedup"
	"github.com/meshcore-dev/meshcore/protocol"
)

type fakeSignerLookup struct {
	keys map[[protocol.PeerIDSize]byte]ed25519.PublicKey
}

func (f *fakeSignerLookup) SigningKeyForPeer(id [protocol.PeerIDSize]byte) (ed25519.PublicKey, bool) {
	k, ok := f.keys[id]
	return k, ok
}

func signedMessagePacket(t *testing.T, sender [protocol.PeerIDSize]byte, priv ed25519.PrivateKey, ttl uint8) *protocol.Packet {
	t.Helper()
	p := &protocol.Packet{
		Version:     protocol.Version1,
		Type:        protocol.TypeMessage,
		TTL:         ttl,
		TimestampMs: 1,
		SenderID:    sender,
		Payload:     []byte("hello"),
	}
	signed, err := protocol.EncodeForSigning(p)
	if err != nil {
		t.Fatalf("EncodeForSigning: %v", err)
	}
	var sig [protocol.SignatureSize]byte
	copy(sig[:], ed25519.Sign(priv, signed))
	p.Signature = &sig
	return p
}

func TestAdmitRejectsSelfEcho(t *testing.T) {
	var me [protocol.PeerIDSize]byte
	me[0] = 0x01

	g := NewGate(me, 7, dedup.NewSeenTable(), &fakeSignerLookup{keys: map[[protocol.PeerIDSize]byte]ed25519.PublicKey{}})
	defer g.Seen.Close()

	pub, priv, _ := ed25519.GenerateKey(nil)
	g.Signers.(*fakeSignerLookup).keys[me] = pub

	p := signedMessagePacket(t, me, priv, 7)
	if err := g.Admit(p, time.Now()); err != ErrSelfEcho {
		t.Fatalf("expected ErrSelfEcho, got %v", err)
	}
}

func TestAdmitRejectsUnsignedAndUnknownSigner(t *testing.T) {
	var me, sender [protocol.PeerIDSize]byte
	me[0] = 0x01
	sender[0] = 0x02

	g := NewGate(me, 7, dedup.NewSeenTable(), &fakeSignerLookup{keys: map[[protocol.PeerIDSize]byte]ed25519.PublicKey{}})
	defer g.Seen.Close()

	unsigned := &protocol.Packet{Version: protocol.Version1, Type: protocol.TypeMessage, TTL: 7, SenderID: sender, Payload: []byte("x")}
	if err := g.Admit(unsigned, time.Now()); err != ErrUnsigned {
		t.Fatalf("expected ErrUnsigned, got %v", err)
	}

	_, priv, _ := ed25519.GenerateKey(nil)
	p := signedMessagePacket(t, sender, priv, 7)
	if err := g.Admit(p, time.Now()); err != ErrUnknownSigner {
		t.Fatalf("expected ErrUnknownSigner, got %v", err)
	}
}

func TestAdmitAcceptsValidAndRejectsDuplicate(t *testing.T) {
	var me, sender [protocol.PeerIDSize]byte
	me[0] = 0x01
	sender[0] = 0x02

	pub, priv, _ := ed25519.GenerateKey(nil)
	lookup := &fakeSignerLookup{keys: map[[protocol.PeerIDSize]byte]ed25519.PublicKey{sender: pub}}

	g := NewGate(me, 7, dedup.NewSeenTable(), lookup)
	defer g.Seen.Close()

	p := signedMessagePacket(t, sender, priv, 7)
	if err := g.Admit(p, time.Now()); err != nil {
		t.Fatalf("expected packet to be admitted, got %v", err)
	}

	if err := g.Admit(p, time.Now()); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestAdmitRejectsBadSignature(t *testing.T) {
	var me, sender [protocol.PeerIDSize]byte
	me[0] = 0x01
	sender[0] = 0x02

	pub, _, _ := ed25519.GenerateKey(nil)
	_, wrongPriv, _ := ed25519.GenerateKey(nil)
	lookup := &fakeSignerLookup{keys: map[[protocol.PeerIDSize]byte]ed25519.PublicKey{sender: pub}}

	g := NewGate(me, 7, dedup.NewSeenTable(), lookup)
	defer g.Seen.Close()

	p := signedMessagePacket(t, sender, wrongPriv, 7)
	if err := g.Admit(p, time.Now()); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestAdmitAnnounceTTLMaxException(t *testing.T) {
	var me, sender [protocol.PeerIDSize]byte
	me[0] = 0x01
	sender[0] = 0x02

	signingPub, signingPriv, _ := ed25519.GenerateKey(nil)
	lookup := &fakeSignerLookup{}
	g := NewGate(me, 7, dedup.NewSeenTable(), lookup)
	defer g.Seen.Close()

	buildAnnounce := func(ttl uint8) *protocol.Packet {
		var noisePub [protocol.NoisePubkeySize]byte
		var signPub [protocol.SigningPubkeySize]byte
		copy(signPub[:], signingPub)
		payload := protocol.EncodeAnnouncement(&protocol.IdentityAnnouncement{
			Nickname:      "alice",
			NoisePubkey:   noisePub,
			SigningPubkey: signPub,
		})
		p := &protocol.Packet{
			Version:     protocol.Version1,
			Type:        protocol.TypeAnnounce,
			TTL:         ttl,
			TimestampMs: 1,
			SenderID:    sender,
			Payload:     payload,
		}
		signed, err := protocol.EncodeForSigning(p)
		if err != nil {
			t.Fatalf("EncodeForSigning: %v", err)
		}
		var sig [protocol.SignatureSize]byte
		copy(sig[:], ed25519.Sign(signingPriv, signed))
		p.Signature = &sig
		return p
	}

	first := buildAnnounce(7)
	if err := g.Admit(first, time.Now()); err != nil {
		t.Fatalf("first announce should be admitted: %v", err)
	}

	relayed := buildAnnounce(6)
	if err := g.Admit(relayed, time.Now()); err != ErrDuplicate {
		t.Fatalf("lower-TTL relay of a seen announce should be rejected as duplicate, got %v", err)
	}

	fresh := buildAnnounce(7)
	if err := g.Admit(fresh, time.Now()); err != nil {
		t.Fatalf("fresh re-announcement at max TTL should be admitted, got %v", err)
	}
}
