/*
File Name:  Peernet.go
Author:     Peter Kleissner
*/

package core

import (
	"fmt"
	"sync"

	"github.com/meshcore-dev/meshcore/dedup"
	"github.com/meshcore-dev/meshcore/fragment"
	"github.com/meshcore-dev/meshcore/gate"
	"github.com/meshcore-dev/meshcore/gossip"
	"github.com/meshcore-dev/meshcore/identitystore"
	"github.com/meshcore-dev/meshcore/relay"
	"github.com/meshcore-dev/meshcore/sessionmgr"
)

// Init initializes the client. If the config file does not exist, a default one will be
// created. The User Agent must be provided in the form "Application Name/1.0".
// The returned status is of type ExitX. Anything other than ExitSuccess indicates a fatal failure.
func Init(userAgent, configFilename string, filters *Filters) (backend *Backend, status int, err error) {
	if userAgent == "" {
		return nil, ExitErrorConfigParse, fmt.Errorf("core: user agent must not be empty")
	}

	backend = &Backend{
		ConfigFilename: configFilename,
		userAgent:      userAgent,
		Stdout:         newMultiWriter(),
		PeerDirectory:  newPeerDirectory(),
		terminate:      make(chan struct{}),
	}

	if filters != nil {
		backend.Filters = *filters
	}
	backend.initFilters()

	if status, err = LoadConfig(configFilename, &backend.Config); status != ExitSuccess {
		return nil, status, err
	}

	identityPath := backend.Config.IdentityStorePath
	if identityPath == "" {
		identityPath = "identity.db"
	}
	identityStore, err := identitystore.NewStore(identityPath)
	if err != nil {
		return nil, ExitIdentityStoreAccess, err
	}
	backend.Identity = identityStore

	identity, err := identityStore.Load()
	if err != nil {
		return nil, ExitIdentityKeyCorrupt, err
	}
	backend.MyIdentity = identity

	if backend.Blacklist, err = InitBlackListStoreDB(backend.Config.BlacklistStorePath); err != nil {
		return nil, ExitIdentityStoreAccess, err
	}

	backend.Seen = dedup.NewSeenTable()
	backend.Sessions = sessionmgr.NewManager(identity.PeerID, identity.X25519, eventSinkAdapter{backend: backend})
	backend.Gate = gate.NewGate(identity.PeerID, DefaultAnnounceTTL, backend.Seen, backend)
	backend.Reassembler = fragment.NewReassembler()
	backend.Gossip = gossip.NewStore(0)

	return backend, ExitSuccess, nil
}

// DefaultAnnounceTTL is the origin TTL stamped on a freshly issued ANNOUNCE.
const DefaultAnnounceTTL = 7

// Connect starts the background maintenance loops: rekey sweep and periodic gossip sync broadcast.
// It requires Link to already be set to a relay.LinkSender implementation.
func (backend *Backend) Connect() {
	go backend.rekeySweepLoop()
	go backend.gossipSyncLoop()
}

// Shutdown stops every background goroutine and wipes in-memory session key material. Safe to call
// more than once.
func (backend *Backend) Shutdown() {
	backend.stopOnce.Do(func() { close(backend.terminate) })
	backend.Seen.Close()
	backend.Reassembler.Close()
	backend.Gossip.Close()
	backend.Sessions.ClearAll(backend.MyIdentity.X25519)
}

// ClearIdentity wipes the persisted identity and every live session, then generates a fresh keypair
// pair. This is the panic operation: callers must treat the node as a brand-new peer afterward.
func (backend *Backend) ClearIdentity() error {
	identity, err := backend.Identity.ClearAndRegenerate()
	if err != nil {
		return err
	}
	backend.MyIdentity = identity
	backend.Sessions.ClearAll(identity.X25519)
	backend.Gate.MyPeerID = identity.PeerID
	return nil
}

// Relay is the relay.Engine, constructed once Link is known; call SetLink before Connect.
func (backend *Backend) SetLink(link relay.LinkSender) {
	backend.Link = link
	backend.Relay = relay.NewEngine(backend.MyIdentity.PeerID, link)
}

// The Backend represents an instance of a mesh core client to be used by a frontend (BLE link layer,
// bridge, or test harness).
type Backend struct {
	ConfigFilename string
	Config         Config
	Filters        Filters
	userAgent      string

	Identity   *identitystore.Store
	MyIdentity *identitystore.Identity

	Sessions      *sessionmgr.Manager
	Gate          *gate.Gate
	Relay         *relay.Engine
	Link          relay.LinkSender
	Seen          *dedup.SeenTable
	Reassembler   *fragment.Reassembler
	Gossip        *gossip.Store
	PeerDirectory *PeerDirectory
	Blacklist     *BlackListNodeDB

	// Stdout bundles any output for the end-user. Writers may subscribe/unsubscribe.
	Stdout *multiWriter

	terminate chan struct{}
	stopOnce  sync.Once
}
