/*
File Name:  Egress.go
Author:     Peter Kleissner

Outbound packet construction: signing, Noise encryption for private messages, and broadcast/unicast
send helpers shared by the handshake, application, and gossip-sync paths.
*/

package core

import (
	"crypto/ed25519"
	"time"

	"github.com/meshcore-dev/meshcore/fragment"
	"github.com/meshcore-dev/meshcore/protocol"
)

// DefaultMTU is the assumed link MTU used to decide whether a packet needs fragmenting before send.
// BLE's default ATT MTU is small; this is a conservative value safe for most negotiated connections.
const DefaultMTU = 512

// sign stamps p.Signature with this node's Ed25519 signature over EncodeForSigning(p).
func (backend *Backend) sign(p *protocol.Packet) error {
	data, err := protocol.EncodeForSigning(p)
	if err != nil {
		return err
	}
	var sig [protocol.SignatureSize]byte
	copy(sig[:], ed25519.Sign(backend.MyIdentity.Signing, data))
	p.Signature = &sig
	p.Flags |= protocol.FlagHasSignature
	return nil
}

// sendPacket signs, encodes, and sends p: unicast if unicastTo is non-nil, otherwise broadcast. A
// packet too large to fit DefaultMTU once encoded is split into FRAGMENT packets first; fragments
// carry no signature, and the receiver does not verify the packet it reassembles from them.
func (backend *Backend) sendPacket(p *protocol.Packet, unicastTo *[protocol.PeerIDSize]byte) {
	if p.Type != protocol.TypeFragment {
		if err := backend.sign(p); err != nil {
			backend.Filters.LogError("sendPacket", "sign: %s", err.Error())
			return
		}
	}

	frame, err := protocol.Encode(p)
	if err != nil {
		backend.Filters.LogError("sendPacket", "encode: %s", err.Error())
		return
	}

	if len(frame) > DefaultMTU {
		backend.sendFragmented(p, unicastTo)
		return
	}

	backend.Filters.PacketOut(p)
	backend.deliver(frame, unicastTo)
}

func (backend *Backend) sendFragmented(p *protocol.Packet, unicastTo *[protocol.PeerIDSize]byte) {
	fragments, err := fragment.Split(p, DefaultMTU)
	if err != nil {
		backend.Filters.LogError("sendFragmented", "split: %s", err.Error())
		return
	}
	for _, f := range fragments {
		frame, err := protocol.Encode(f)
		if err != nil {
			backend.Filters.LogError("sendFragmented", "encode fragment: %s", err.Error())
			return
		}
		backend.Filters.PacketOut(f)
		backend.deliver(frame, unicastTo)
	}
}

func (backend *Backend) deliver(frame []byte, unicastTo *[protocol.PeerIDSize]byte) {
	if backend.Link == nil {
		return
	}
	if unicastTo != nil {
		backend.Link.SendToPeer(*unicastTo, frame)
		return
	}
	backend.Link.Broadcast(frame)
}

// buildHandshakePacket wraps a Noise handshake message as a NOISE_HANDSHAKE packet addressed to peerID.
func (backend *Backend) buildHandshakePacket(peerID [protocol.PeerIDSize]byte, handshakeBytes []byte) *protocol.Packet {
	return &protocol.Packet{
		Version:     protocol.Version2,
		Type:        protocol.TypeNoiseHandshake,
		TTL:         0,
		TimestampMs: uint64(time.Now().UnixMilli()),
		SenderID:    backend.MyIdentity.PeerID,
		RecipientID: &peerID,
		Payload:     handshakeBytes,
	}
}

// InitiateHandshake starts (or restarts) a Noise session with peerID and sends the first message.
func (backend *Backend) InitiateHandshake(peerID [protocol.PeerIDSize]byte) error {
	msg1, err := backend.Sessions.Initiate(peerID, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	backend.sendPacket(backend.buildHandshakePacket(peerID, msg1), &peerID)
	return nil
}

// SendPrivateMessage Noise-encrypts plaintext for peerID and sends it as a unicast NOISE_ENCRYPTED
// packet. If no session is established yet, the Session Manager notifies Filters.HandshakeRequired and
// this returns noisesession.ErrHandshakeRequired; it does not start a handshake itself, which is left to
// InitiateHandshake.
func (backend *Backend) SendPrivateMessage(peerID [protocol.PeerIDSize]byte, plaintext []byte) error {
	ciphertext, err := backend.Sessions.Encrypt(peerID, plaintext)
	if err != nil {
		return err
	}

	p := &protocol.Packet{
		Version:     protocol.Version2,
		Type:        protocol.TypeNoiseEncrypted,
		TTL:         DefaultAnnounceTTL,
		TimestampMs: uint64(time.Now().UnixMilli()),
		SenderID:    backend.MyIdentity.PeerID,
		RecipientID: &peerID,
		Payload:     ciphertext,
	}
	backend.sendPacket(p, &peerID)
	return nil
}

// BroadcastMessage sends plaintext as a public (unencrypted) broadcast MESSAGE packet.
func (backend *Backend) BroadcastMessage(plaintext []byte) {
	broadcast := protocol.BroadcastRecipient
	p := &protocol.Packet{
		Version:     protocol.Version2,
		Type:        protocol.TypeMessage,
		TTL:         DefaultAnnounceTTL,
		TimestampMs: uint64(time.Now().UnixMilli()),
		SenderID:    backend.MyIdentity.PeerID,
		RecipientID: &broadcast,
		Payload:     plaintext,
	}
	backend.sendPacket(p, nil)
	backend.Gossip.Track(p, time.Now().UnixMilli())
}

// BroadcastAnnounce sends this node's identity announcement (nickname and both long-term public keys).
func (backend *Backend) BroadcastAnnounce(nickname string) {
	var noisePub [protocol.NoisePubkeySize]byte
	var signingPub [protocol.SigningPubkeySize]byte
	copy(noisePub[:], backend.MyIdentity.X25519.Public)
	copy(signingPub[:], backend.MyIdentity.SigningPublicKey())

	payload := protocol.EncodeAnnouncement(&protocol.IdentityAnnouncement{
		Nickname:      nickname,
		NoisePubkey:   noisePub,
		SigningPubkey: signingPub,
	})

	p := &protocol.Packet{
		Version:     protocol.Version2,
		Type:        protocol.TypeAnnounce,
		TTL:         DefaultAnnounceTTL,
		TimestampMs: uint64(time.Now().UnixMilli()),
		SenderID:    backend.MyIdentity.PeerID,
		Payload:     payload,
	}
	backend.sendPacket(p, nil)
	backend.Gossip.Track(p, time.Now().UnixMilli())
}
