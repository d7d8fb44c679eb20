/*
File Name:  Engine.go
Author:     Peter Kleissner

Relay Engine: moves each validated, non-self-terminating packet forward. TTL is decremented before
forwarding; packets with ttl==0 are never relayed; a non-empty source route is followed hop by hop with
a loop guard against duplicate hops; otherwise the packet is broadcast to every reachable neighbor
except the one it arrived from.
*/

package relay

import (
	"errors"

	"github.com/meshcore-dev/meshcore/protocol"
)

// LinkSender is the outbound half of the link layer the Relay Engine forwards onto.
type LinkSender interface {
	Broadcast(frame []byte)
	SendToPeer(peerID [protocol.PeerIDSize]byte, frame []byte) bool
	Neighbors() [][protocol.PeerIDSize]byte
}

// ErrTTLExpired is returned (informationally; never surfaced) when a packet with ttl==0 is given to Forward.
var ErrTTLExpired = errors.New("relay: ttl expired, not forwarded")

// ErrLoopDetected is returned when the packet's route contains a duplicate hop.
var ErrLoopDetected = errors.New("relay: duplicate hop in route, dropped")

// ErrNotOnRoute is returned when this node's peer ID does not appear in a non-empty route.
var ErrNotOnRoute = errors.New("relay: this node is not on the packet's route")

// Engine is the Relay Engine for one core instance.
type Engine struct {
	MyPeerID [protocol.PeerIDSize]byte
	Link     LinkSender
}

// NewEngine constructs a Relay Engine bound to the given link sender.
func NewEngine(myPeerID [protocol.PeerIDSize]byte, link LinkSender) *Engine {
	return &Engine{MyPeerID: myPeerID, Link: link}
}

// Forward decrements p's TTL and forwards it per the route/broadcast policy. p.Signature is left
// untouched: the signing plane always verifies against ttl=0, so mutating TTL never invalidates it.
// ingressPeerID identifies the neighbor the packet arrived from, so broadcast forwarding can exclude it.
func (e *Engine) Forward(p *protocol.Packet, ingressPeerID [protocol.PeerIDSize]byte) error {
	if p.Type == protocol.TypeRequestSync {
		return ErrTTLExpired // REQUEST_SYNC is neighbor-only and must never be relayed
	}
	if p.TTL == 0 {
		return ErrTTLExpired
	}
	if hasDuplicateHop(p.Route) {
		return ErrLoopDetected
	}

	working := *p
	working.TTL = p.TTL - 1

	if len(working.Route) > 0 {
		return e.forwardRouted(&working)
	}
	return e.forwardBroadcast(&working, ingressPeerID)
}

func (e *Engine) forwardRouted(p *protocol.Packet) error {
	index := -1
	for i, hop := range p.Route {
		if hop == e.MyPeerID {
			index = i
			break
		}
	}
	if index == -1 {
		return ErrNotOnRoute
	}

	frame, err := protocol.Encode(p)
	if err != nil {
		return err
	}

	if index == len(p.Route)-1 {
		if p.RecipientID == nil {
			return ErrNotOnRoute
		}
		e.Link.SendToPeer(*p.RecipientID, frame)
		return nil
	}

	e.Link.SendToPeer(p.Route[index+1], frame)
	return nil
}

func (e *Engine) forwardBroadcast(p *protocol.Packet, ingressPeerID [protocol.PeerIDSize]byte) error {
	frame, err := protocol.Encode(p)
	if err != nil {
		return err
	}

	for _, neighbor := range e.Link.Neighbors() {
		if neighbor == ingressPeerID {
			continue
		}
		e.Link.SendToPeer(neighbor, frame)
	}
	return nil
}

func hasDuplicateHop(route [][protocol.PeerIDSize]byte) bool {
	seen := make(map[[protocol.PeerIDSize]byte]struct{}, len(route))
	for _, hop := range route {
		if _, ok := seen[hop]; ok {
			return true
		}
		seen[hop] = struct{}{}
	}
	return false
}
