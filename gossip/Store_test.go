/*
File Name:  Store_test.go
Author:     Peter Kleissner
*/

package gossip

import (
	"testing"

	"github.com/meshcore-dev/meshcore/protocol"
)

func broadcastMessage(sender byte, nonce byte) *protocol.Packet {
	var senderID [protocol.PeerIDSize]byte
	senderID[0] = sender
	return &protocol.Packet{
		Version:     protocol.Version1,
		Type:        protocol.TypeMessage,
		TTL:         7,
		TimestampMs: uint64(1000) + uint64(nonce),
		SenderID:    senderID,
		Payload:     []byte{nonce},
	}
}

// TestGossipReconciliationConcreteScenario reproduces the specification's gossip scenario: X holds
// {k1,k2,k3}, Y holds {k2,k3,k4}; Y's filter misses k1, X replies with it, and Y's store then holds
// all four.
func TestGossipReconciliationConcreteScenario(t *testing.T) {
	k1 := broadcastMessage(0x01, 1)
	k2 := broadcastMessage(0x02, 2)
	k3 := broadcastMessage(0x03, 3)
	k4 := broadcastMessage(0x04, 4)

	x := NewStore(100)
	defer x.Close()
	x.Track(k1, 0)
	x.Track(k2, 0)
	x.Track(k3, 0)

	y := NewStore(100)
	defer y.Close()
	y.Track(k2, 0)
	y.Track(k3, 0)
	y.Track(k4, 0)

	yFilter := y.BuildOutgoingFilter(DefaultFPR)

	missing := x.Missing(yFilter, 100)
	if len(missing) != 1 {
		t.Fatalf("expected exactly one missing key (k1), got %d", len(missing))
	}
	if missing[0] != k1.Key() {
		t.Fatal("expected the missing key to be k1's packet key")
	}

	reply, ok := x.Lookup(missing[0])
	if !ok {
		t.Fatal("X must be able to look up the packet for the key it identified as missing")
	}

	y.Track(reply, 0)

	for _, k := range []*protocol.Packet{k1, k2, k3, k4} {
		if _, ok := y.Lookup(k.Key()); !ok {
			t.Fatalf("Y's store must include key for packet with nonce %v after reconciliation", k.Payload)
		}
	}
}

func TestAnnouncementReplacedOnlyByNewerTimestamp(t *testing.T) {
	store := NewStore(100)
	defer store.Close()

	var sender [protocol.PeerIDSize]byte
	sender[0] = 0x01

	older := &protocol.Packet{Version: protocol.Version1, Type: protocol.TypeAnnounce, TimestampMs: 1000, SenderID: sender, Payload: []byte("v1")}
	newer := &protocol.Packet{Version: protocol.Version1, Type: protocol.TypeAnnounce, TimestampMs: 2000, SenderID: sender, Payload: []byte("v2")}
	stale := &protocol.Packet{Version: protocol.Version1, Type: protocol.TypeAnnounce, TimestampMs: 1500, SenderID: sender, Payload: []byte("v1.5")}

	now := int64(2000)
	store.Track(newer, now)
	store.Track(older, now)  // older than tracked, must be ignored
	store.Track(stale, now)  // also older than tracked (2000), must be ignored

	keys := store.AllKeys()
	if len(keys) != 1 || keys[0] != newer.Key() {
		t.Fatal("expected only the newest announcement to be tracked")
	}
}

func TestPruneRemovesStaleAnnouncementsAndTheirMessages(t *testing.T) {
	store := NewStore(100)
	defer store.Close()

	var sender [protocol.PeerIDSize]byte
	sender[0] = 0x01

	announce := &protocol.Packet{Version: protocol.Version1, Type: protocol.TypeAnnounce, TimestampMs: 0, SenderID: sender, Payload: []byte("hi")}
	msg := &protocol.Packet{Version: protocol.Version1, Type: protocol.TypeMessage, TimestampMs: 0, SenderID: sender, Payload: []byte("m")}

	store.Track(announce, 0)
	store.Track(msg, 0)

	if len(store.AllKeys()) != 2 {
		t.Fatal("expected both entries tracked before pruning")
	}

	store.Prune(int64(StalePeerTimeout.Milliseconds()) + 1)

	if len(store.AllKeys()) != 0 {
		t.Fatalf("expected all entries for the stale sender to be pruned, got %d remaining", len(store.AllKeys()))
	}
}
