/*
File Name:  Ingress.go
Author:     Peter Kleissner

Inbound frame dispatch: every frame arriving over the link passes through OnFrame, which decodes it,
runs it past the Security Gate, and then dispatches by packet type.
*/

package core

import (
	"time"

	"github.com/meshcore-dev/meshcore/gossip"
	"github.com/meshcore-dev/meshcore/protocol"
)

// OnFrame is the link layer's single entry point for an inbound frame. ingressPeerID identifies the
// neighbor the frame physically arrived from (needed for broadcast-relay exclusion and Noise session
// routing); it need not match the packet's sender_id for a relayed packet.
func (backend *Backend) OnFrame(frame []byte, ingressPeerID [protocol.PeerIDSize]byte) {
	packet, err := protocol.Decode(frame)
	if err != nil {
		backend.Filters.LogError("OnFrame", "decode: %s", err.Error())
		return
	}

	now := time.Now()

	// FRAGMENT packets are unsigned and skip the gate. The fragments do not carry the original packet's
	// signature, and handleFragment dispatches the reassembled packet without a gate check of its own.
	if packet.Type != protocol.TypeFragment {
		if err := backend.Gate.Admit(packet, now); err != nil {
			backend.Filters.LogError("OnFrame", "gate rejected %s packet from %x: %s", typeName(packet.Type), packet.SenderID, err.Error())
			return
		}
	}

	backend.Filters.PacketIn(packet, ingressPeerID)
	backend.dispatch(packet, ingressPeerID, now)
}

func (backend *Backend) dispatch(packet *protocol.Packet, ingressPeerID [protocol.PeerIDSize]byte, now time.Time) {
	switch packet.Type {
	case protocol.TypeAnnounce:
		backend.handleAnnounce(packet, now)
		backend.relayIfDue(packet, ingressPeerID)

	case protocol.TypeLeave:
		backend.PeerDirectory.mutex.Lock()
		delete(backend.PeerDirectory.peers, packet.SenderID)
		backend.PeerDirectory.mutex.Unlock()
		backend.relayIfDue(packet, ingressPeerID)

	case protocol.TypeMessage:
		backend.handleMessage(packet, now)
		backend.relayIfDue(packet, ingressPeerID)

	case protocol.TypeNoiseHandshake:
		backend.handleHandshake(packet, ingressPeerID, now)
		// Never relayed: Noise handshakes are link-local between the two endpoints only.

	case protocol.TypeNoiseEncrypted:
		backend.handleEncrypted(packet)
		// Never relayed for the same reason.

	case protocol.TypeFragment:
		backend.handleFragment(packet, ingressPeerID, now)

	case protocol.TypeRequestSync:
		backend.handleRequestSync(packet, ingressPeerID)
		// relay.Engine.Forward already refuses to relay REQUEST_SYNC; no call needed here.

	default:
		backend.Filters.LogError("OnFrame", "unknown packet type 0x%02x from %x", packet.Type, packet.SenderID)
	}
}

// relayIfDue hands packet to the Relay Engine unless it is addressed to this node alone (a unicast
// MESSAGE delivered to its final recipient terminates here rather than being forwarded further).
func (backend *Backend) relayIfDue(packet *protocol.Packet, ingressPeerID [protocol.PeerIDSize]byte) {
	if packet.Type == protocol.TypeMessage && !packet.IsBroadcast() && *packet.RecipientID == backend.MyIdentity.PeerID {
		return
	}
	if backend.Relay == nil {
		return
	}
	if err := backend.Relay.Forward(packet, ingressPeerID); err != nil {
		backend.Filters.LogError("relayIfDue", "forward %s packet: %s", typeName(packet.Type), err.Error())
	}
}

func (backend *Backend) handleAnnounce(packet *protocol.Packet, now time.Time) {
	announcement, err := protocol.DecodeAnnouncement(packet.Payload)
	if err != nil {
		backend.Filters.LogError("handleAnnounce", "decode: %s", err.Error())
		return
	}

	backend.Learn(packet.SenderID, announcement.SigningPubkey[:], announcement.Nickname)
	backend.Gossip.Track(packet, now.UnixMilli())
}

func (backend *Backend) handleMessage(packet *protocol.Packet, now time.Time) {
	if packet.IsBroadcast() {
		backend.Gossip.Track(packet, now.UnixMilli())
		backend.Filters.MessageIn(packet.SenderID, packet.Payload)
		return
	}

	if *packet.RecipientID == backend.MyIdentity.PeerID {
		backend.Filters.MessageIn(packet.SenderID, packet.Payload)
	}
}

func (backend *Backend) handleHandshake(packet *protocol.Packet, ingressPeerID [protocol.PeerIDSize]byte, now time.Time) {
	response, err := backend.Sessions.ProcessHandshake(packet.SenderID, packet.Payload, now.UnixMilli())
	if err != nil {
		backend.Filters.LogError("handleHandshake", "peer %x: %s", packet.SenderID, err.Error())
		return
	}
	if response == nil {
		return
	}

	reply := backend.buildHandshakePacket(packet.SenderID, response)
	backend.sendPacket(reply, &ingressPeerID)
}

func (backend *Backend) handleEncrypted(packet *protocol.Packet) {
	plaintext, err := backend.Sessions.Decrypt(packet.SenderID, packet.Payload)
	if err != nil {
		backend.Filters.LogError("handleEncrypted", "peer %x: %s", packet.SenderID, err.Error())
		return
	}
	backend.Filters.MessageIn(packet.SenderID, plaintext)
}

func (backend *Backend) handleFragment(packet *protocol.Packet, ingressPeerID [protocol.PeerIDSize]byte, now time.Time) {
	reassembled, err := backend.Reassembler.Add(packet, now.UnixMilli())
	if err != nil {
		backend.Filters.LogError("handleFragment", "peer %x: %s", packet.SenderID, err.Error())
		return
	}
	if reassembled == nil {
		return // more fragments still expected
	}
	backend.dispatch(reassembled, ingressPeerID, now)
}

func (backend *Backend) handleRequestSync(packet *protocol.Packet, ingressPeerID [protocol.PeerIDSize]byte) {
	payload, err := gossip.DecodeRequestSync(packet.Payload)
	if err != nil {
		backend.Filters.LogError("handleRequestSync", "decode: %s", err.Error())
		return
	}

	incoming := &gossip.Filter{P: payload.P, N: uint32(payload.M >> payload.P), Data: payload.Data}
	missingKeys := backend.Gossip.Missing(incoming, maxSyncReplyPackets)

	for _, key := range missingKeys {
		missingPacket, found := backend.Gossip.Lookup(key)
		if !found {
			continue
		}
		frame, err := protocol.Encode(missingPacket)
		if err != nil {
			continue
		}
		backend.Link.SendToPeer(ingressPeerID, frame)
	}
}

// maxSyncReplyPackets bounds how many missing packets are sent back in response to a single
// REQUEST_SYNC, so one handshake cannot be used to extract an unbounded amount of backlog at once.
const maxSyncReplyPackets = 64

func typeName(t uint8) string {
	switch t {
	case protocol.TypeAnnounce:
		return "ANNOUNCE"
	case protocol.TypeMessage:
		return "MESSAGE"
	case protocol.TypeLeave:
		return "LEAVE"
	case protocol.TypeNoiseHandshake:
		return "NOISE_HANDSHAKE"
	case protocol.TypeNoiseEncrypted:
		return "NOISE_ENCRYPTED"
	case protocol.TypeFragment:
		return "FRAGMENT"
	case protocol.TypeRequestSync:
		return "REQUEST_SYNC"
	case protocol.TypeFileTransfer:
		return "FILE_TRANSFER"
	default:
		return "UNKNOWN"
	}
}
