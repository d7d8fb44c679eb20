/*
File Name:  Gate.go
Author:     Peter Kleissner

Security Gate: every inbound decoded packet passes through here before any further processing. It
rejects self-echo, unsigned packets, and packets with an invalid or unverifiable signature, then
applies duplicate suppression via the seen-packet table (with the ANNOUNCE TTL-max exception that
tolerates a genuinely fresh re-announcement while still rejecting lower-TTL relays of one already seen).
*/

package gate

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/meshcore-dev/meshcore/dedup"
	"github.com/meshcore-dev/meshcore/protocol"
)

// SignerLookup resolves a non-ANNOUNCE packet's sender to its known Ed25519 signing public key.
type SignerLookup interface {
	SigningKeyForPeer(senderID [protocol.PeerIDSize]byte) (ed25519.PublicKey, bool)
}

var (
	// ErrSelfEcho is returned when a packet's sender_id is this node's own peer ID.
	ErrSelfEcho = errors.New("gate: self-echo rejected")
	// ErrUnsigned is returned when the packet has no signature.
	ErrUnsigned = errors.New("gate: unsigned packet rejected")
	// ErrUnknownSigner is returned when a signing key cannot be resolved for the sender.
	ErrUnknownSigner = errors.New("gate: unknown signer")
	// ErrBadSignature is returned when Ed25519 verification fails.
	ErrBadSignature = errors.New("gate: signature verification failed")
	// ErrDuplicate is returned when the packet key has already been observed and is not exempt.
	ErrDuplicate = errors.New("gate: duplicate packet rejected")
	// ErrMalformedAnnouncement is returned when an ANNOUNCE packet's TLV cannot be parsed for its signing key.
	ErrMalformedAnnouncement = errors.New("gate: malformed announcement")
)

// Gate is the Security Gate for one core instance.
type Gate struct {
	MyPeerID  [protocol.PeerIDSize]byte
	MaxTTL    uint8
	Seen      *dedup.SeenTable
	Signers   SignerLookup
}

// NewGate constructs a Gate. maxTTL is the origin TTL used for fresh ANNOUNCE packets (default 7),
// needed to distinguish a genuine re-announcement from a lower-TTL relay of one already seen.
func NewGate(myPeerID [protocol.PeerIDSize]byte, maxTTL uint8, seen *dedup.SeenTable, signers SignerLookup) *Gate {
	return &Gate{MyPeerID: myPeerID, MaxTTL: maxTTL, Seen: seen, Signers: signers}
}

// Admit runs every Security Gate check, in order, against p. It returns nil if the packet should
// proceed to further processing, or the specific rejection reason otherwise. All returned errors are
// meant to be logged and the packet dropped; none are ever surfaced to the application.
func (g *Gate) Admit(p *protocol.Packet, now time.Time) error {
	if p.SenderID == g.MyPeerID {
		return ErrSelfEcho
	}

	if p.Signature == nil {
		return ErrUnsigned
	}

	signer, err := g.resolveSigner(p)
	if err != nil {
		return err
	}

	signed, err := protocol.EncodeForSigning(p)
	if err != nil {
		return ErrBadSignature
	}
	if !ed25519.Verify(signer, signed, p.Signature[:]) {
		return ErrBadSignature
	}

	key := p.Key()
	if p.Type == protocol.TypeAnnounce {
		if g.Seen.Contains(key, now) && p.TTL != g.MaxTTL {
			return ErrDuplicate
		}
	} else if g.Seen.Contains(key, now) {
		return ErrDuplicate
	}

	g.Seen.Insert(key, now)
	return nil
}

// resolveSigner extracts the Ed25519 public key that must have produced p's signature: from the
// ANNOUNCE payload's own TLV for ANNOUNCE packets (trusted only for this packet's verification), or
// via the signer lookup delegate for every other type.
func (g *Gate) resolveSigner(p *protocol.Packet) (ed25519.PublicKey, error) {
	if p.Type == protocol.TypeAnnounce {
		announcement, err := protocol.DecodeAnnouncement(p.Payload)
		if err != nil {
			return nil, ErrMalformedAnnouncement
		}
		return ed25519.PublicKey(announcement.SigningPubkey[:]), nil
	}

	key, ok := g.Signers.SigningKeyForPeer(p.SenderID)
	if !ok {
		return nil, ErrUnknownSigner
	}
	return key, nil
}
