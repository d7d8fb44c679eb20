/*
File Name:  Session.go
Author:     Peter Kleissner

Wraps a single peer's Noise XX handshake and transport ciphers. Curve25519 DH, ChaCha20-Poly1305 AEAD,
and SHA-256 are supplied by flynn/noise; this file only drives the handshake state machine and the
wire-level nonce framing described in the specification.
*/

package noisesession

import (
	"errors"
	"sync"
	"time"

	"github.com/flynn/noise"
)

// Role identifies which side of the XX pattern a session plays.
type Role uint8

const (
	RoleInitiator Role = iota
	RoleResponder
)

// State is the handshake lifecycle.
type State uint8

const (
	StateUninit State = iota
	StateHandshaking
	StateEstablished
	StateFailed
)

// cipherSuite is shared by every session: Curve25519, ChaCha20-Poly1305, SHA-256.
var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

var (
	// ErrHandshakeRequired is returned when encrypt/decrypt is attempted before the handshake has
	// completed (Uninit or Handshaking).
	ErrHandshakeRequired = errors.New("noisesession: handshake required")
	// ErrNotEstablished is returned when encrypt/decrypt is attempted on a Failed session.
	ErrNotEstablished = errors.New("noisesession: session is not established")
	// ErrEncryptionFailed wraps an underlying AEAD sealing failure.
	ErrEncryptionFailed = errors.New("noisesession: encryption failed")
	// ErrDecryptionFailed wraps an underlying AEAD opening failure, or a replay/out-of-window nonce.
	ErrDecryptionFailed = errors.New("noisesession: decryption failed")
	// ErrNonceExceeded is returned when the send counter would wrap past 2^32-1.
	ErrNonceExceeded = errors.New("noisesession: nonce space exhausted, rekey required")
	// ErrWrongState is returned when a handshake-step method is called out of sequence.
	ErrWrongState = errors.New("noisesession: handshake step called out of sequence")
)

// HandshakeFailedError wraps the underlying library error that caused a transition to StateFailed.
type HandshakeFailedError struct {
	Cause error
}

func (e *HandshakeFailedError) Error() string { return "noisesession: handshake failed: " + e.Cause.Error() }
func (e *HandshakeFailedError) Unwrap() error { return e.Cause }

// RekeyAge and RekeyMessages define the mandatory rekey policy; RekeyAdvisoryMessages is the
// encryption-service layer's earlier, non-mandatory recommendation.
const (
	RekeyAge              = time.Hour
	RekeyMessages          = 10000
	RekeyAdvisoryMessages  = 1000
	maxNonce               = uint32(1 << 32 - 1)
	replayWindowSize       = 1024
)

// Session is one peer's Noise XX handshake plus its established transport ciphers.
type Session struct {
	mu sync.Mutex

	PeerID          [8]byte
	Role            Role
	State           State
	RemoteStaticKey []byte
	HandshakeHash   []byte
	CreatedAtMs     int64

	messagesSent      uint32
	sendExhausted     bool
	highestRecvNonce  uint64
	haveReceivedAny   bool
	replayWindow      [replayWindowSize / 8]byte

	hs         *noise.HandshakeState
	sendCipher *noise.CipherState
	recvCipher *noise.CipherState

	failCause error
}

// NewInitiator creates a fresh initiator session and returns its first handshake message (32 bytes: e).
func NewInitiator(peerID [8]byte, staticKeypair noise.DHKey, nowMs int64) (*Session, []byte, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     true,
		StaticKeypair: staticKeypair,
	})
	if err != nil {
		return nil, nil, err
	}

	s := &Session{
		PeerID:      peerID,
		Role:        RoleInitiator,
		State:       StateHandshaking,
		CreatedAtMs: nowMs,
		hs:          hs,
	}

	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		s.State = StateFailed
		s.failCause = err
		return s, nil, &HandshakeFailedError{Cause: err}
	}

	return s, msg1, nil
}

// NewResponder creates a responder session from an inbound first handshake message, returning the
// responder's reply (96 bytes: e, ee, s, es).
func NewResponder(peerID [8]byte, staticKeypair noise.DHKey, message1 []byte, nowMs int64) (*Session, []byte, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     false,
		StaticKeypair: staticKeypair,
	})
	if err != nil {
		return nil, nil, err
	}

	s := &Session{
		PeerID:      peerID,
		Role:        RoleResponder,
		State:       StateHandshaking,
		CreatedAtMs: nowMs,
		hs:          hs,
	}

	if _, _, _, err := hs.ReadMessage(nil, message1); err != nil {
		s.State = StateFailed
		s.failCause = err
		return s, nil, &HandshakeFailedError{Cause: err}
	}

	msg2, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		s.State = StateFailed
		s.failCause = err
		return s, nil, &HandshakeFailedError{Cause: err}
	}

	return s, msg2, nil
}

// CompleteInitiator processes the responder's second message and produces the final third message
// (64 bytes: the 48-byte encrypted s, then se and the 16-byte tag of the empty payload). On success the session splits into send/receive ciphers and becomes Established.
func (s *Session) CompleteInitiator(message2 []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Role != RoleInitiator || s.State != StateHandshaking {
		return nil, ErrWrongState
	}

	if _, _, _, err := s.hs.ReadMessage(nil, message2); err != nil {
		s.State = StateFailed
		s.failCause = err
		return nil, &HandshakeFailedError{Cause: err}
	}

	msg3, cs1, cs2, err := s.hs.WriteMessage(nil, nil)
	if err != nil {
		s.State = StateFailed
		s.failCause = err
		return nil, &HandshakeFailedError{Cause: err}
	}

	s.finishSplit(cs1, cs2)
	return msg3, nil
}

// CompleteResponder processes the initiator's third and final message. On success the session splits
// into send/receive ciphers and becomes Established.
func (s *Session) CompleteResponder(message3 []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Role != RoleResponder || s.State != StateHandshaking {
		return ErrWrongState
	}

	_, cs1, cs2, err := s.hs.ReadMessage(nil, message3)
	if err != nil {
		s.State = StateFailed
		s.failCause = err
		return &HandshakeFailedError{Cause: err}
	}

	s.finishSplit(cs1, cs2)
	return nil
}

// finishSplit assigns the send/receive cipher pair per role: flynn/noise hands back (cs1, cs2) in a
// fixed order, with the initiator's send cipher equal to the responder's receive cipher.
func (s *Session) finishSplit(cs1, cs2 *noise.CipherState) {
	if s.Role == RoleInitiator {
		s.sendCipher, s.recvCipher = cs1, cs2
	} else {
		s.recvCipher, s.sendCipher = cs1, cs2
	}
	s.RemoteStaticKey = append([]byte(nil), s.hs.PeerStatic()...)
	s.HandshakeHash = append([]byte(nil), s.hs.ChannelBinding()...)
	s.State = StateEstablished
	s.hs = nil
}

// NeedsRekey reports whether the mandatory rekey policy (wall-clock age or message count) has tripped.
func (s *Session) NeedsRekey(nowMs int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	age := time.Duration(nowMs-s.CreatedAtMs) * time.Millisecond
	return age > RekeyAge || s.messagesSent > RekeyMessages
}

// NeedsRekeyAdvisory reports the earlier, non-mandatory rekey recommendation.
func (s *Session) NeedsRekeyAdvisory() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messagesSent > RekeyAdvisoryMessages
}

func (s *Session) FailCause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failCause
}

// CurrentState reads State under the session's lock, so lifecycle transitions observed by callers
// are atomic with respect to concurrent cipher operations.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

// Destroy wipes cipher state and the replay window and marks the session Failed, so a rekeyed or
// discarded session cannot be mistakenly reused for transport operations.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendCipher = nil
	s.recvCipher = nil
	s.hs = nil
	for i := range s.replayWindow {
		s.replayWindow[i] = 0
	}
	s.highestRecvNonce = 0
	s.haveReceivedAny = false
	s.RemoteStaticKey = nil
	s.HandshakeHash = nil
	s.State = StateFailed
}
