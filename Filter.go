/*
File Name:  Filter.go
Author:     Peter Kleissner

Filters allow the caller to intercept events. The filter functions must not modify any data.
*/

package core

import (
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/meshcore-dev/meshcore/protocol"
)

// Filters contains all functions to install the hook. Use nil for unused; initFilters installs a
// blank no-op for anything left unset so the rest of the core never needs a nil check.
type Filters struct {
	// NewPeer is called the first time a peer is added to the peer directory.
	NewPeer func(peer *PeerInfo)

	// LogError is called for any recoverable error surfaced during packet processing.
	LogError func(function, format string, v ...interface{})

	// PacketIn is a low-level filter for every inbound packet that passes the Security Gate.
	PacketIn func(packet *protocol.Packet, ingressPeerID [protocol.PeerIDSize]byte)

	// PacketOut is a low-level filter for every outbound packet just before it is handed to the link.
	PacketOut func(packet *protocol.Packet)

	// MessageIn is called for a decoded application-level message addressed to this node: a plaintext
	// broadcast MESSAGE, or the decrypted inner content of a NOISE_ENCRYPTED packet.
	MessageIn func(senderID [protocol.PeerIDSize]byte, plaintext []byte)

	// PeerAuthenticated is called once a Noise session with a peer reaches Established.
	PeerAuthenticated func(peerID [protocol.PeerIDSize]byte, remoteStaticPubkey []byte)

	// HandshakeRequired is called when a caller tried to encrypt/decrypt for a peer with no usable
	// session, so the embedder can decide whether to initiate one.
	HandshakeRequired func(peerID [protocol.PeerIDSize]byte)
}

func (backend *Backend) initFilters() {
	if backend.Filters.NewPeer == nil {
		backend.Filters.NewPeer = func(peer *PeerInfo) {}
	}
	if backend.Filters.LogError == nil {
		backend.Filters.LogError = func(function, format string, v ...interface{}) {}
	}
	if backend.Filters.PacketIn == nil {
		backend.Filters.PacketIn = func(packet *protocol.Packet, ingressPeerID [protocol.PeerIDSize]byte) {}
	}
	if backend.Filters.PacketOut == nil {
		backend.Filters.PacketOut = func(packet *protocol.Packet) {}
	}
	if backend.Filters.MessageIn == nil {
		backend.Filters.MessageIn = func(senderID [protocol.PeerIDSize]byte, plaintext []byte) {}
	}
	if backend.Filters.PeerAuthenticated == nil {
		backend.Filters.PeerAuthenticated = func(peerID [protocol.PeerIDSize]byte, remoteStaticPubkey []byte) {}
	}
	if backend.Filters.HandshakeRequired == nil {
		backend.Filters.HandshakeRequired = func(peerID [protocol.PeerIDSize]byte) {}
	}
}

// eventSinkAdapter bridges Filters into the sessionmgr.EventSink interface without sessionmgr needing
// to know about Backend: the session never holds the manager, and the manager never holds the Backend
// beyond this thin adapter, per the Design Notes' cyclic-reference avoidance.
type eventSinkAdapter struct {
	backend *Backend
}

func (a eventSinkAdapter) PeerAuthenticated(peerID [protocol.PeerIDSize]byte, remoteStaticPubkey []byte) {
	a.backend.Filters.PeerAuthenticated(peerID, remoteStaticPubkey)
}

func (a eventSinkAdapter) HandshakeRequired(peerID [protocol.PeerIDSize]byte) {
	a.backend.Filters.HandshakeRequired(peerID)
}

// MultiWriter code that allows to subscribe/unsubscribe.
type multiWriter struct {
	writers map[uuid.UUID]io.Writer
	sync.Mutex
}

// Creates a new writer that duplicates its writes to all the subscribed writers.
func newMultiWriter() *multiWriter {
	return &multiWriter{writers: make(map[uuid.UUID]io.Writer)}
}

// Subscribe a new writer to the list of writers.
func (m *multiWriter) Subscribe(writer io.Writer) (id uuid.UUID) {
	m.Lock()
	defer m.Unlock()

	id = uuid.New()
	m.writers[id] = writer

	return id
}

// Unsubscribe a writer from the list of writers.
func (m *multiWriter) Unsubscribe(id uuid.UUID) {
	m.Lock()
	defer m.Unlock()

	delete(m.writers, id)
}

// Write a slice of bytes to each of the subscribed writers. It will not return any errors.
func (m *multiWriter) Write(p []byte) (n int, err error) {
	m.Lock()
	defer m.Unlock()

	for _, w := range m.writers {
		w.Write(p)
	}
	return len(p), nil
}
