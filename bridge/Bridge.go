/*
File Name:  Bridge.go
Author:     Peter Kleissner

Bridge is a loopback WebSocket link layer: a reference relay.LinkSender for desktop nodes and test
harnesses that have no real BLE radio. Each connected peer identifies itself with its 8-byte PeerID
(hex-encoded) as the "peer" query parameter on the WebSocket upgrade request; frames are exchanged as
binary WebSocket messages, each one being a single mesh wire frame handed straight to core.OnFrame.
*/

package bridge

import (
	"encoding/hex"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	core "github.com/meshcore-dev/meshcore"
	"github.com/meshcore-dev/meshcore/protocol"
)

// upgrader is used for the loopback link WebSocket. It allows all origins, matching the reference
// webapi's permissive local-only upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Bridge holds one core instance's loopback neighbor connections.
type Bridge struct {
	Backend *core.Backend

	mu        sync.RWMutex
	neighbors map[[protocol.PeerIDSize]byte]*websocket.Conn
}

// New constructs a Bridge bound to backend. Callers must register it with backend.SetLink before
// calling backend.Connect.
func New(backend *core.Backend) *Bridge {
	return &Bridge{
		Backend:   backend,
		neighbors: make(map[[protocol.PeerIDSize]byte]*websocket.Conn),
	}
}

// HandleLink upgrades an inbound link connection and services it until it closes. Register this as a
// handler for the link WebSocket route (e.g. "/link").
func (b *Bridge) HandleLink(w http.ResponseWriter, r *http.Request) {
	peerID, err := parsePeerID(r.URL.Query().Get("peer"))
	if err != nil {
		http.Error(w, "missing or malformed peer query parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	b.mu.Lock()
	b.neighbors[peerID] = conn
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if b.neighbors[peerID] == conn {
			delete(b.neighbors, peerID)
		}
		b.mu.Unlock()
	}()

	for {
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		b.Backend.OnFrame(frame, peerID)
	}
}

// Broadcast implements relay.LinkSender by sending frame to every connected neighbor.
func (b *Bridge) Broadcast(frame []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, conn := range b.neighbors {
		conn.WriteMessage(websocket.BinaryMessage, frame)
	}
}

// SendToPeer implements relay.LinkSender by sending frame to a single connected neighbor.
func (b *Bridge) SendToPeer(peerID [protocol.PeerIDSize]byte, frame []byte) bool {
	b.mu.RLock()
	conn, ok := b.neighbors[peerID]
	b.mu.RUnlock()

	if !ok {
		return false
	}
	return conn.WriteMessage(websocket.BinaryMessage, frame) == nil
}

// Neighbors implements relay.LinkSender, listing every currently connected peer.
func (b *Bridge) Neighbors() [][protocol.PeerIDSize]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	neighbors := make([][protocol.PeerIDSize]byte, 0, len(b.neighbors))
	for peerID := range b.neighbors {
		neighbors = append(neighbors, peerID)
	}
	return neighbors
}

func parsePeerID(hexValue string) (peerID [protocol.PeerIDSize]byte, err error) {
	raw, err := hex.DecodeString(hexValue)
	if err != nil || len(raw) != protocol.PeerIDSize {
		return peerID, protocol.ErrInvalidLength
	}
	copy(peerID[:], raw)
	return peerID, nil
}
