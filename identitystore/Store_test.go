/*
File Name:  Store_test.go
Author:     Peter Kleissner
*/
package identitystore

import (
	"bytes"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "identity.pogreb"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestLoadGeneratesOnFirstUseAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.pogreb")

	s1, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	id1, err := s1.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(id1.X25519.Private) == 0 || len(id1.X25519.Public) == 0 {
		t.Fatal("expected a generated X25519 keypair")
	}
	if len(id1.Signing) == 0 {
		t.Fatal("expected a generated Ed25519 signing key")
	}

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	id2, err := s2.Load()
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}

	if !bytes.Equal(id1.X25519.Private, id2.X25519.Private) || !bytes.Equal(id1.X25519.Public, id2.X25519.Public) {
		t.Fatal("expected X25519 keypair to survive reopening the store")
	}
	if !bytes.Equal(id1.Signing, id2.Signing) {
		t.Fatal("expected Ed25519 keypair to survive reopening the store")
	}
	if id1.PeerID != id2.PeerID {
		t.Fatal("expected PeerID to be stable across reopening the store")
	}
}

func TestClearAndRegenerateReplacesBothPairs(t *testing.T) {
	s := tempStore(t)

	before, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	after, err := s.ClearAndRegenerate()
	if err != nil {
		t.Fatalf("ClearAndRegenerate: %v", err)
	}

	if bytes.Equal(before.Signing, after.Signing) {
		t.Fatal("expected a freshly generated Ed25519 keypair after ClearAndRegenerate")
	}
	if bytes.Equal(before.X25519.Private, after.X25519.Private) {
		t.Fatal("expected a freshly generated X25519 keypair after ClearAndRegenerate")
	}
	if before.PeerID == after.PeerID {
		t.Fatal("expected a different PeerID after regeneration")
	}

	reloaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load after regenerate: %v", err)
	}
	if reloaded.PeerID != after.PeerID {
		t.Fatal("expected the regenerated identity to be the one now persisted")
	}
}

func TestDerivePeerIDDeterministicAndDistinct(t *testing.T) {
	a := DerivePeerID([]byte("key-a"))
	aAgain := DerivePeerID([]byte("key-a"))
	b := DerivePeerID([]byte("key-b"))

	if a != aAgain {
		t.Fatal("expected DerivePeerID to be deterministic for the same input")
	}
	if a == b {
		t.Fatal("expected distinct inputs to (overwhelmingly likely) derive distinct PeerIDs")
	}
}
