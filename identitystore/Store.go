/*
File Name:  Store.go
Author:     Peter Kleissner

Reference identity key store: persistent Noise static X25519 keypair plus an Ed25519 signing
keypair, backed by a pogreb key/value database the same way Blacklist.go wraps one. Keys are
generated on first use and retained across restarts; ClearAndRegenerate wipes and replaces both
pairs atomically under the store's lock.
*/
package identitystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"sync"

	"github.com/flynn/noise"
	"github.com/meshcore-dev/meshcore/store"
)

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

const (
	keyX25519Priv  = "x25519_priv"
	keyX25519Pub   = "x25519_pub"
	keyEd25519Priv = "ed25519_priv"
	keyEd25519Pub  = "ed25519_pub"
)

// Identity bundles the two long-term keypairs this node identifies itself with, and the PeerID
// derived from them.
type Identity struct {
	X25519  noise.DHKey
	Signing ed25519.PrivateKey
	PeerID  [PeerIDSize]byte
}

// SigningPublicKey returns the Ed25519 public half of the signing keypair.
func (id *Identity) SigningPublicKey() ed25519.PublicKey {
	return id.Signing.Public().(ed25519.PublicKey)
}

// Store persists a single node identity in a pogreb database.
type Store struct {
	db store.Store
	sync.RWMutex
}

// NewStore opens (or creates) the pogreb database at filename for identity persistence.
func NewStore(filename string) (s *Store, err error) {
	db, err := store.NewPogrebStore(filename)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Load returns the persisted identity, generating and persisting a fresh one on first use.
func (s *Store) Load() (*Identity, error) {
	s.Lock()
	defer s.Unlock()

	if id, ok := s.read(); ok {
		return id, nil
	}
	return s.generateAndStore()
}

// ClearAndRegenerate wipes the persisted keys and atomically replaces them with a fresh identity.
func (s *Store) ClearAndRegenerate() (*Identity, error) {
	s.Lock()
	defer s.Unlock()

	s.db.Delete([]byte(keyX25519Priv))
	s.db.Delete([]byte(keyX25519Pub))
	s.db.Delete([]byte(keyEd25519Priv))
	s.db.Delete([]byte(keyEd25519Pub))

	return s.generateAndStore()
}

func (s *Store) read() (*Identity, bool) {
	xPriv, ok1 := s.db.Get([]byte(keyX25519Priv))
	xPub, ok2 := s.db.Get([]byte(keyX25519Pub))
	edPriv, ok3 := s.db.Get([]byte(keyEd25519Priv))
	if !ok1 || !ok2 || !ok3 {
		return nil, false
	}

	signing := ed25519.PrivateKey(edPriv)
	id := &Identity{
		X25519:  noise.DHKey{Private: xPriv, Public: xPub},
		Signing: signing,
	}
	id.PeerID = DerivePeerID(id.SigningPublicKey())
	return id, true
}

func (s *Store) generateAndStore() (*Identity, error) {
	dhKey, err := cipherSuite.GenerateKeypair(rand.Reader)
	if err != nil {
		return nil, err
	}

	edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	if err := s.db.Set([]byte(keyX25519Priv), dhKey.Private); err != nil {
		return nil, err
	}
	if err := s.db.Set([]byte(keyX25519Pub), dhKey.Public); err != nil {
		return nil, err
	}
	if err := s.db.Set([]byte(keyEd25519Priv), edPriv); err != nil {
		return nil, err
	}
	if err := s.db.Set([]byte(keyEd25519Pub), edPub); err != nil {
		return nil, err
	}

	id := &Identity{X25519: dhKey, Signing: edPriv}
	id.PeerID = DerivePeerID(edPub)
	return id, nil
}
