/*
File Name:  API.go
Author:     Peter Kleissner

Diagnostic HTTP API for the loopback bridge: read-only status and peer-list endpoints, useful for
desktop nodes and integration tests that have no BLE stack to inspect directly.
*/

package bridge

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// apiResponseStatus mirrors the teacher's own connectivity-status response shape.
type apiResponseStatus struct {
	PeerID        string `json:"peer_id"`
	CountNeighbors int   `json:"count_neighbors"`
	IsConnected   bool   `json:"is_connected"`
}

type apiPeerEntry struct {
	PeerID     string `json:"peer_id"`
	Nickname   string `json:"nickname"`
	LastSeenMs int64  `json:"last_seen_ms"`
}

// Start builds the diagnostic router and begins serving both the link WebSocket and the HTTP API at
// listenAddress. It blocks while serving and returns ListenAndServe's error; run it in its own goroutine.
func (b *Bridge) Start(listenAddress string) error {
	router := mux.NewRouter()
	router.HandleFunc("/link", b.HandleLink)
	router.HandleFunc("/status", b.apiStatus).Methods("GET")
	router.HandleFunc("/peers", b.apiPeers).Methods("GET")

	server := &http.Server{
		Addr:         listenAddress,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

func (b *Bridge) apiStatus(w http.ResponseWriter, r *http.Request) {
	neighbors := b.Neighbors()
	response := apiResponseStatus{
		PeerID:         hex.EncodeToString(b.Backend.MyIdentity.PeerID[:]),
		CountNeighbors: len(neighbors),
		IsConnected:    len(neighbors) > 0,
	}
	encodeJSON(w, response)
}

func (b *Bridge) apiPeers(w http.ResponseWriter, r *http.Request) {
	neighbors := b.Neighbors()
	entries := make([]apiPeerEntry, 0, len(neighbors))
	for _, peerID := range neighbors {
		entry := apiPeerEntry{PeerID: hex.EncodeToString(peerID[:])}
		if info, found := b.Backend.Lookup(peerID); found {
			entry.Nickname = info.Nickname
			entry.LastSeenMs = info.LastSeenMs
		}
		entries = append(entries, entry)
	}
	encodeJSON(w, entries)
}

func encodeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
