/*
File Name:  PeerID.go
Author:     Peter Kleissner

PeerID derivation. Peernet.go derives its node ID as the blake3 hash of the compressed public key;
this mirrors that exactly, hashing the node's Ed25519 signing public key instead and truncating to
the mesh wire format's 8-byte PeerID.
*/
package identitystore

import (
	"lukechampine.com/blake3"
)

// PeerIDSize is the size in bytes of a mesh PeerID, matching protocol.PeerIDSize.
const PeerIDSize = 8

// DerivePeerID computes the 8-byte PeerID for a node from its long-term Ed25519 public key.
func DerivePeerID(signingPublicKey []byte) (peerID [PeerIDSize]byte) {
	sum := blake3.Sum256(signingPublicKey)
	copy(peerID[:], sum[:PeerIDSize])
	return peerID
}
