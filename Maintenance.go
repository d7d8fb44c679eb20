/*
File Name:  Maintenance.go
Author:     Peter Kleissner

Background maintenance: the rekey sweep (destroy-and-reinitiate any session past its rekey policy
limits) and the periodic gossip sync broadcast (every 30s, once 5s after startup).
*/

package core

import (
	"time"

	"github.com/meshcore-dev/meshcore/gossip"
	"github.com/meshcore-dev/meshcore/protocol"
)

// RekeySweepInterval is how often the rekey sweep checks every live session's age/message count.
const RekeySweepInterval = 1 * time.Minute

// GossipSyncInterval is how often a REQUEST_SYNC is broadcast to reconcile missed packets.
const GossipSyncInterval = 30 * time.Second

// GossipSyncInitialDelay is how long after startup the first REQUEST_SYNC is sent.
const GossipSyncInitialDelay = 5 * time.Second

func (backend *Backend) rekeySweepLoop() {
	ticker := time.NewTicker(RekeySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			backend.sweepRekey()
		case <-backend.terminate:
			return
		}
	}
}

func (backend *Backend) sweepRekey() {
	for _, peerID := range backend.Sessions.SessionsNeedingRekey(time.Now().UnixMilli()) {
		if err := backend.InitiateHandshake(peerID); err != nil {
			backend.Filters.LogError("sweepRekey", "peer %x: %s", peerID, err.Error())
		}
	}
}

func (backend *Backend) gossipSyncLoop() {
	select {
	case <-time.After(GossipSyncInitialDelay):
		backend.broadcastSync()
	case <-backend.terminate:
		return
	}

	ticker := time.NewTicker(GossipSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			backend.broadcastSync()
		case <-backend.terminate:
			return
		}
	}
}

func (backend *Backend) broadcastSync() {
	filter := backend.Gossip.BuildOutgoingFilter(backend.Config.GCSDefaultFPR)

	payload := gossip.EncodeRequestSync(&gossip.RequestSyncPayload{
		P:    filter.P,
		M:    uint32(filter.M()),
		Data: filter.Data,
	})

	p := &protocol.Packet{
		Version:     protocol.Version2,
		Type:        protocol.TypeRequestSync,
		TTL:         1, // REQUEST_SYNC is neighbor-only; never relayed beyond the first hop
		TimestampMs: uint64(time.Now().UnixMilli()),
		SenderID:    backend.MyIdentity.PeerID,
	}
	p.Payload = payload
	backend.sendPacket(p, nil)
}
