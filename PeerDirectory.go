package core

import (
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/meshcore-dev/meshcore/protocol"
)

// PeerInfo is everything known about a remote node, keyed by its 8-byte PeerID. The directory is the
// Security Gate's signer lookup for non-ANNOUNCE packets: a peer's signing key is learned once, from
// its ANNOUNCE, and then reused to validate every later packet it sends.
type PeerInfo struct {
	PeerID        [protocol.PeerIDSize]byte
	SigningKey    ed25519.PublicKey // Ed25519 public key used to verify wire signatures.
	Nickname      string
	LastSeenMs    int64
	StatsPacketIn uint64
}

// PeerDirectory is the concurrency-safe peer table. It has no package-level state; every Backend owns
// its own directory.
type PeerDirectory struct {
	mutex sync.RWMutex
	peers map[[protocol.PeerIDSize]byte]*PeerInfo
}

func newPeerDirectory() *PeerDirectory {
	return &PeerDirectory{peers: make(map[[protocol.PeerIDSize]byte]*PeerInfo)}
}

// Learn records or updates a peer's signing key and nickname, touching LastSeenMs. It returns the
// stored record and whether this is the first time the peer was seen.
func (backend *Backend) Learn(peerID [protocol.PeerIDSize]byte, signingKey ed25519.PublicKey, nickname string) (peer *PeerInfo, isNew bool) {
	backend.PeerDirectory.mutex.Lock()

	peer, ok := backend.PeerDirectory.peers[peerID]
	if !ok {
		peer = &PeerInfo{PeerID: peerID}
		backend.PeerDirectory.peers[peerID] = peer
		isNew = true
	}

	if len(signingKey) == ed25519.PublicKeySize {
		peer.SigningKey = signingKey
	}
	if nickname != "" {
		peer.Nickname = nickname
	}
	peer.LastSeenMs = time.Now().UnixMilli()
	peer.StatsPacketIn++

	backend.PeerDirectory.mutex.Unlock()

	if isNew {
		backend.Filters.NewPeer(peer)
	}

	return peer, isNew
}

// Lookup returns the known record for a peer, if any.
func (backend *Backend) Lookup(peerID [protocol.PeerIDSize]byte) (peer *PeerInfo, found bool) {
	backend.PeerDirectory.mutex.RLock()
	defer backend.PeerDirectory.mutex.RUnlock()

	peer, found = backend.PeerDirectory.peers[peerID]
	return peer, found
}

// Forget removes a peer from the directory, used when a peer is blacklisted.
func (backend *Backend) Forget(peerID [protocol.PeerIDSize]byte) {
	backend.PeerDirectory.mutex.Lock()
	defer backend.PeerDirectory.mutex.Unlock()

	delete(backend.PeerDirectory.peers, peerID)
}

// SigningKeyForPeer implements gate.SignerLookup.
func (backend *Backend) SigningKeyForPeer(senderID [protocol.PeerIDSize]byte) (ed25519.PublicKey, bool) {
	peer, found := backend.Lookup(senderID)
	if !found || peer.SigningKey == nil {
		return nil, false
	}
	return peer.SigningKey, true
}
