package core

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/meshcore-dev/meshcore/protocol"
	"github.com/meshcore-dev/meshcore/store"
)

// BlackListNodeDB is the blacklist database, keyed by the 8-byte PeerID.
type BlackListNodeDB struct {
	Database store.Store
	sync.RWMutex
}

// InitBlackListStoreDB opens (or creates) the blacklist store at the given path. An empty path leaves
// the blacklist disabled (all lookups report not-blacklisted).
func InitBlackListStoreDB(databaseDirectory string) (blackListNodeDB *BlackListNodeDB, err error) {
	if databaseDirectory == "" {
		return nil, nil
	}

	blackListNodeDB = &BlackListNodeDB{}

	if blackListNodeDB.Database, err = store.NewPogrebStore(databaseDirectory); err != nil {
		return nil, err
	}
	return blackListNodeDB, nil
}

// AddBlackList blacklists a peer and drops it from the peer directory and any Noise session.
func (backend *Backend) AddBlackList(peerID [protocol.PeerIDSize]byte, reason string) {
	if backend.Blacklist == nil || backend.Blacklist.Database == nil {
		return
	}

	backend.Blacklist.Database.Set(peerID[:], []byte(reason))

	backend.Forget(peerID)
	backend.Sessions.Destroy(peerID)
}

// CheckNodeBlackList reports whether a peer is currently blacklisted.
func (backend *Backend) CheckNodeBlackList(peerID [protocol.PeerIDSize]byte) bool {
	if backend.Blacklist == nil || backend.Blacklist.Database == nil {
		return false
	}

	_, found := backend.Blacklist.Database.Get(peerID[:])
	return found
}

// RemoveNodeBlackList removes a peer from the blacklist.
func (backend *Backend) RemoveNodeBlackList(peerID [protocol.PeerIDSize]byte) {
	if backend.Blacklist == nil || backend.Blacklist.Database == nil {
		return
	}

	backend.Blacklist.Database.Delete(peerID[:])
}

// ListAllNodesInBlackList prints every blacklisted peer and its recorded reason.
func (backend *Backend) ListAllNodesInBlackList() {
	if backend.Blacklist == nil || backend.Blacklist.Database == nil {
		return
	}

	backend.Blacklist.Database.Iterate(func(key []byte, value []byte) {
		fmt.Println("\nPeer ID: " + hex.EncodeToString(key) + "\n" + "Reason: " + string(value) + "\n" +
			"---------------------------------------------------------------------------\n")
	})
}
