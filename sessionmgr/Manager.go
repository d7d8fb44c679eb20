/*
File Name:  Manager.go
Author:     Peter Kleissner

Session Manager: owns the peer_id -> NoiseSession map, selects initiator vs responder per the
handshake's arrival order, routes encrypt/decrypt calls, and maintains the fingerprint-to-peer-id
registry that is the only place outside the caller the remote static key's fingerprint is stored.
*/
package sessionmgr

import (
	"crypto/sha256"
	"errors"
	"sync"

	"github.com/flynn/noise"
	"github.com/meshcore-dev/meshcore/noisesession"
)

// ErrUnexpectedHandshakeMessage is returned when an inbound handshake message arrives out of sequence
// for the session's current role/state (e.g. a second message 1 for an already-handshaking responder).
var ErrUnexpectedHandshakeMessage = errors.New("sessionmgr: unexpected handshake message for session state")

// EventSink receives the Session Manager's lifecycle notifications. A nil sink passed to NewManager is
// replaced by NoopEventSink (mirrors core's Filters no-op defaults).
type EventSink interface {
	// PeerAuthenticated is called once a session reaches Established, with the remote's Noise static
	// public key.
	PeerAuthenticated(peerID [8]byte, remoteStaticPubkey []byte)

	// HandshakeRequired is called when an encrypt/decrypt attempt found no usable session for a peer,
	// so the caller can decide whether to initiate one.
	HandshakeRequired(peerID [8]byte)
}

// NoopEventSink implements EventSink with no-op methods, usable as a default.
type NoopEventSink struct{}

func (NoopEventSink) PeerAuthenticated(peerID [8]byte, remoteStaticPubkey []byte) {}
func (NoopEventSink) HandshakeRequired(peerID [8]byte)                            {}

// Manager owns all of this node's peer sessions.
type Manager struct {
	mu sync.Mutex

	myPeerID      [8]byte
	staticKeypair noise.DHKey
	sink          EventSink

	sessions     map[[8]byte]*noisesession.Session
	fingerprints map[[32]byte][8]byte
}

// NewManager constructs a Manager for a single identity's static Noise keypair. sink may be nil, in
// which case a no-op sink is installed.
func NewManager(myPeerID [8]byte, staticKeypair noise.DHKey, sink EventSink) *Manager {
	if sink == nil {
		sink = NoopEventSink{}
	}
	return &Manager{
		myPeerID:      myPeerID,
		staticKeypair: staticKeypair,
		sink:          sink,
		sessions:      make(map[[8]byte]*noisesession.Session),
		fingerprints:  make(map[[32]byte][8]byte),
	}
}

// Initiate destroys any existing session for peerID and starts a fresh initiator session, returning
// its first handshake message (32 bytes: e).
func (m *Manager) Initiate(peerID [8]byte, nowMs int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[peerID]; ok {
		existing.Destroy()
		delete(m.sessions, peerID)
	}

	session, msg1, err := noisesession.NewInitiator(peerID, m.staticKeypair, nowMs)
	if err != nil {
		return nil, err
	}
	m.sessions[peerID] = session
	return msg1, nil
}

// ProcessHandshake feeds an inbound handshake message for peerID through the state machine, creating
// a responder session if none exists (compare-and-set under the manager's lock so two concurrent
// inbound handshakes for the same peer never race). It returns the response bytes to send back, if
// any, and emits PeerAuthenticated once the session reaches Established.
func (m *Manager) ProcessHandshake(peerID [8]byte, message []byte, nowMs int64) ([]byte, error) {
	m.mu.Lock()

	session, ok := m.sessions[peerID]
	if !ok {
		newSession, msg2, err := noisesession.NewResponder(peerID, m.staticKeypair, message, nowMs)
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		m.sessions[peerID] = newSession
		m.mu.Unlock()
		return msg2, nil
	}
	m.mu.Unlock()

	switch {
	case session.Role == noisesession.RoleInitiator && session.CurrentState() == noisesession.StateHandshaking:
		msg3, err := session.CompleteInitiator(message)
		if err != nil {
			return nil, err
		}
		m.maybeAuthenticated(peerID, session)
		return msg3, nil

	case session.Role == noisesession.RoleResponder && session.CurrentState() == noisesession.StateHandshaking:
		if err := session.CompleteResponder(message); err != nil {
			return nil, err
		}
		m.maybeAuthenticated(peerID, session)
		return nil, nil

	default:
		return nil, ErrUnexpectedHandshakeMessage
	}
}

func (m *Manager) maybeAuthenticated(peerID [8]byte, session *noisesession.Session) {
	if session.CurrentState() != noisesession.StateEstablished {
		return
	}

	fingerprint := sha256.Sum256(session.RemoteStaticKey)

	m.mu.Lock()
	m.fingerprints[fingerprint] = peerID
	m.mu.Unlock()

	m.sink.PeerAuthenticated(peerID, session.RemoteStaticKey)
}

// Encrypt encrypts plaintext for an established session with peerID. It fails with
// noisesession.ErrHandshakeRequired if no session exists at all.
func (m *Manager) Encrypt(peerID [8]byte, plaintext []byte) ([]byte, error) {
	session, ok := m.lookup(peerID)
	if !ok {
		m.sink.HandshakeRequired(peerID)
		return nil, noisesession.ErrHandshakeRequired
	}
	return session.Encrypt(plaintext)
}

// Decrypt decrypts a transport frame using peerID's session. It fails with
// noisesession.ErrHandshakeRequired if no session exists at all.
func (m *Manager) Decrypt(peerID [8]byte, frame []byte) ([]byte, error) {
	session, ok := m.lookup(peerID)
	if !ok {
		m.sink.HandshakeRequired(peerID)
		return nil, noisesession.ErrHandshakeRequired
	}
	return session.Decrypt(frame)
}

func (m *Manager) lookup(peerID [8]byte) (*noisesession.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[peerID]
	return session, ok
}

// SessionsNeedingRekey returns the peer IDs of every established session whose rekey policy has
// tripped (wall-clock age or message count), for the periodic maintenance hook to act on.
func (m *Manager) SessionsNeedingRekey(nowMs int64) [][8]byte {
	m.mu.Lock()
	sessions := make([]*noisesession.Session, 0, len(m.sessions))
	peerIDs := make([][8]byte, 0, len(m.sessions))
	for peerID, session := range m.sessions {
		sessions = append(sessions, session)
		peerIDs = append(peerIDs, peerID)
	}
	m.mu.Unlock()

	var needingRekey [][8]byte
	for i, session := range sessions {
		if session.CurrentState() == noisesession.StateEstablished && session.NeedsRekey(nowMs) {
			needingRekey = append(needingRekey, peerIDs[i])
		}
	}
	return needingRekey
}

// FingerprintToPeer resolves a previously authenticated peer's remote-static-key fingerprint back to
// its peer ID. This map is the only place outside the caller the fingerprint is stored.
func (m *Manager) FingerprintToPeer(fingerprint [32]byte) ([8]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	peerID, ok := m.fingerprints[fingerprint]
	return peerID, ok
}

// Destroy tears down a single peer's session, if any, wiping its ciphers and replay window. Used when
// a peer is blacklisted.
func (m *Manager) Destroy(peerID [8]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[peerID]
	if !ok {
		return
	}
	session.Destroy()
	delete(m.sessions, peerID)
}

// ClearAll destroys every session (wiping ciphers and replay windows) and the fingerprint registry.
// Used by the identity-wipe panic operation, which re-initializes the Session Manager after calling
// this with the node's freshly regenerated static keypair.
func (m *Manager) ClearAll(newStaticKeypair noise.DHKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, session := range m.sessions {
		session.Destroy()
	}
	m.sessions = make(map[[8]byte]*noisesession.Session)
	m.fingerprints = make(map[[32]byte][8]byte)
	m.staticKeypair = newStaticKeypair
}
