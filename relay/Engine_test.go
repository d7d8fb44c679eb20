/*
File Name:  Engine_test.go
Author:     Peter Kleissner
*/

package relay

import (
	"testing"

	"github.com/meshcore-dev/meshcore/protocol"
)

type fakeLink struct {
	broadcasted [][]byte
	unicast     map[[protocol.PeerIDSize]byte][][]byte
	neighbors   [][protocol.PeerIDSize]byte
}

func newFakeLink(neighbors [][protocol.PeerIDSize]byte) *fakeLink {
	return &fakeLink{unicast: make(map[[protocol.PeerIDSize]byte][][]byte), neighbors: neighbors}
}

func (f *fakeLink) Broadcast(frame []byte) { f.broadcasted = append(f.broadcasted, frame) }

func (f *fakeLink) SendToPeer(peerID [protocol.PeerIDSize]byte, frame []byte) bool {
	f.unicast[peerID] = append(f.unicast[peerID], frame)
	return true
}

func (f *fakeLink) Neighbors() [][protocol.PeerIDSize]byte { return f.neighbors }

func peerID(b byte) (id [protocol.PeerIDSize]byte) {
	id[0] = b
	return id
}

func TestForwardDropsZeroTTL(t *testing.T) {
	me := peerID(0x01)
	link := newFakeLink(nil)
	engine := NewEngine(me, link)

	p := &protocol.Packet{Version: protocol.Version1, Type: protocol.TypeMessage, TTL: 0, SenderID: peerID(0x02)}
	if err := engine.Forward(p, peerID(0x03)); err != ErrTTLExpired {
		t.Fatalf("expected ErrTTLExpired, got %v", err)
	}
	if len(link.broadcasted) != 0 || len(link.unicast) != 0 {
		t.Fatal("ttl=0 packet must never be sent")
	}
}

func TestForwardBroadcastExcludesIngress(t *testing.T) {
	me := peerID(0x01)
	n1, n2, ingress := peerID(0x10), peerID(0x11), peerID(0x12)
	link := newFakeLink([][protocol.PeerIDSize]byte{n1, n2, ingress})
	engine := NewEngine(me, link)

	p := &protocol.Packet{Version: protocol.Version1, Type: protocol.TypeMessage, TTL: 7, SenderID: peerID(0x02), Payload: []byte("hi")}
	if err := engine.Forward(p, ingress); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	if len(link.unicast[n1]) != 1 || len(link.unicast[n2]) != 1 {
		t.Fatal("expected both non-ingress neighbors to receive the frame")
	}
	if len(link.unicast[ingress]) != 0 {
		t.Fatal("ingress neighbor must not receive the reflected frame")
	}
}

func TestForwardDecrementsTTLAcrossHops(t *testing.T) {
	me := peerID(0x01)
	neighbor := peerID(0x10)
	link := newFakeLink([][protocol.PeerIDSize]byte{neighbor})
	engine := NewEngine(me, link)

	p := &protocol.Packet{Version: protocol.Version1, Type: protocol.TypeMessage, TTL: 3, SenderID: peerID(0x02), Payload: []byte("hi")}
	if err := engine.Forward(p, peerID(0x99)); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	frames := link.unicast[neighbor]
	if len(frames) != 1 {
		t.Fatal("expected exactly one forwarded frame")
	}
	decoded, err := protocol.Decode(frames[0])
	if err != nil {
		t.Fatalf("Decode forwarded frame: %v", err)
	}
	if decoded.TTL != 2 {
		t.Fatalf("expected ttl decremented to 2, got %d", decoded.TTL)
	}
}

// TestRouteLoopGuardScenario reproduces the specification's concrete relay scenario: a route
// containing a duplicate hop must be dropped by every relay.
func TestRouteLoopGuardScenario(t *testing.T) {
	p1, p3 := peerID(0x01), peerID(0x03)
	route := [][protocol.PeerIDSize]byte{p1, p1, p3}

	for _, observer := range []byte{0x01, 0x02, 0x03, 0x04} {
		me := peerID(observer)
		link := newFakeLink([][protocol.PeerIDSize]byte{peerID(0x99)})
		engine := NewEngine(me, link)

		recipient := peerID(0x05)
		p := &protocol.Packet{
			Version:     protocol.Version2,
			Type:        protocol.TypeMessage,
			TTL:         7,
			SenderID:    peerID(0x02),
			RecipientID: &recipient,
			Route:       route,
			Payload:     []byte("hi"),
		}

		if err := engine.Forward(p, peerID(0x99)); err != ErrLoopDetected {
			t.Fatalf("observer 0x%02x: expected ErrLoopDetected, got %v", observer, err)
		}
		if len(link.broadcasted) != 0 || len(link.unicast) != 0 {
			t.Fatalf("observer 0x%02x: a looped route must never be sent", observer)
		}
	}
}

func TestForwardRoutedUnicastToNextHopAndFinalRecipient(t *testing.T) {
	a, b, c := peerID(0x01), peerID(0x02), peerID(0x03)
	recipient := peerID(0x04)
	route := [][protocol.PeerIDSize]byte{a, b, c}

	// a forwards to b (the next hop after itself)
	linkA := newFakeLink(nil)
	engineA := NewEngine(a, linkA)
	p := &protocol.Packet{Version: protocol.Version2, Type: protocol.TypeMessage, TTL: 7, SenderID: peerID(0x09), RecipientID: &recipient, Route: route, Payload: []byte("hi")}
	if err := engineA.Forward(p, peerID(0x99)); err != nil {
		t.Fatalf("Forward at a: %v", err)
	}
	if len(linkA.unicast[b]) != 1 {
		t.Fatal("a must unicast to b")
	}

	// c is the last hop, so it unicasts directly to the recipient
	linkC := newFakeLink(nil)
	engineC := NewEngine(c, linkC)
	p2 := &protocol.Packet{Version: protocol.Version2, Type: protocol.TypeMessage, TTL: 7, SenderID: peerID(0x09), RecipientID: &recipient, Route: route, Payload: []byte("hi")}
	if err := engineC.Forward(p2, b); err != nil {
		t.Fatalf("Forward at c: %v", err)
	}
	if len(linkC.unicast[recipient]) != 1 {
		t.Fatal("c (last hop) must unicast directly to the recipient")
	}
}

func TestForwardRequestSyncNeverRelayed(t *testing.T) {
	me := peerID(0x01)
	link := newFakeLink([][protocol.PeerIDSize]byte{peerID(0x10)})
	engine := NewEngine(me, link)

	p := &protocol.Packet{Version: protocol.Version1, Type: protocol.TypeRequestSync, TTL: 0, SenderID: peerID(0x02), Payload: []byte("f")}
	if err := engine.Forward(p, peerID(0x10)); err != ErrTTLExpired {
		t.Fatalf("expected REQUEST_SYNC to never be relayed, got %v", err)
	}
}
