/*
File Name:  Session_test.go
Author:     Peter Kleissner
*/

package noisesession

import (
	"bytes"
	"testing"
)

// handshakeXXPair runs a full XX handshake between a fresh initiator and responder session pair and
// returns both, established.
func handshakeXXPair(t *testing.T) (*Session, *Session) {
	t.Helper()

	aStatic, err := GenerateStaticKeypair()
	if err != nil {
		t.Fatalf("GenerateStaticKeypair A: %v", err)
	}
	bStatic, err := GenerateStaticKeypair()
	if err != nil {
		t.Fatalf("GenerateStaticKeypair B: %v", err)
	}

	var peerIDForA, peerIDForB [8]byte
	peerIDForA[0] = 0xAA
	peerIDForB[0] = 0xBB

	initiator, msg1, err := NewInitiator(peerIDForA, aStatic, 0)
	if err != nil {
		t.Fatalf("NewInitiator: %v", err)
	}
	if len(msg1) != 32 {
		t.Fatalf("message 1 size: got %d, want 32", len(msg1))
	}

	responder, msg2, err := NewResponder(peerIDForB, bStatic, msg1, 0)
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}
	if len(msg2) != 96 {
		t.Fatalf("message 2 size: got %d, want 96", len(msg2))
	}

	msg3, err := initiator.CompleteInitiator(msg2)
	if err != nil {
		t.Fatalf("CompleteInitiator: %v", err)
	}
	if len(msg3) != 64 {
		t.Fatalf("message 3 size: got %d, want 64", len(msg3))
	}

	if err := responder.CompleteResponder(msg3); err != nil {
		t.Fatalf("CompleteResponder: %v", err)
	}

	if initiator.State != StateEstablished || responder.State != StateEstablished {
		t.Fatalf("expected both sessions Established, got initiator=%v responder=%v", initiator.State, responder.State)
	}
	if !bytes.Equal(initiator.HandshakeHash, responder.HandshakeHash) {
		t.Fatal("handshake_hash mismatch between initiator and responder")
	}

	return initiator, responder
}

// TestHandshakeXXConcreteScenario reproduces the specification's literal message sizes and checks the
// handshake_hash values match and the first four nonces round-trip correctly.
func TestHandshakeXXConcreteScenario(t *testing.T) {
	initiator, responder := handshakeXXPair(t)

	for n := 0; n < 4; n++ {
		plaintext := []byte{byte(n), byte(n + 1), byte(n + 2)}
		frame, err := initiator.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt n=%d: %v", n, err)
		}

		gotNonce := uint32(frame[0])<<24 | uint32(frame[1])<<16 | uint32(frame[2])<<8 | uint32(frame[3])
		if gotNonce != uint32(n) {
			t.Fatalf("nonce %d: got %d", n, gotNonce)
		}

		decrypted, err := responder.Decrypt(frame)
		if err != nil {
			t.Fatalf("Decrypt n=%d: %v", n, err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Fatalf("n=%d: plaintext mismatch", n)
		}
	}
}

// TestTenThousandInOrderMessages exercises the specification's bulk in-order transport property.
func TestTenThousandInOrderMessages(t *testing.T) {
	initiator, responder := handshakeXXPair(t)

	for n := 0; n < 10000; n++ {
		msg := []byte{byte(n), byte(n >> 8)}
		frame, err := initiator.Encrypt(msg)
		if err != nil {
			t.Fatalf("Encrypt n=%d: %v", n, err)
		}
		got, err := responder.Decrypt(frame)
		if err != nil {
			t.Fatalf("Decrypt n=%d: %v", n, err)
		}
		if !bytes.Equal(got, msg) {
			t.Fatalf("n=%d: mismatch", n)
		}
	}
}

// TestReplayWindowPermutationAndRejection checks that a permutation within the window still decrypts
// while a repeat is rejected, and that a message exactly one past the window is rejected.
func TestReplayWindowPermutationAndRejection(t *testing.T) {
	initiator, responder := handshakeXXPair(t)

	var frames [][]byte
	for n := 0; n < 8; n++ {
		frame, err := initiator.Encrypt([]byte{byte(n)})
		if err != nil {
			t.Fatalf("Encrypt n=%d: %v", n, err)
		}
		frames = append(frames, frame)
	}

	order := []int{3, 0, 2, 1, 5, 4, 7, 6}
	for _, i := range order {
		if _, err := responder.Decrypt(frames[i]); err != nil {
			t.Fatalf("permuted decrypt of frame %d: %v", i, err)
		}
	}

	if _, err := responder.Decrypt(frames[3]); err != ErrDecryptionFailed {
		t.Fatalf("expected repeat of frame 3 to be rejected, got %v", err)
	}

	// drive highest_recv_nonce far enough ahead that frame 0 (nonce 0) falls exactly one past the window
	for n := 8; n <= replayWindowBits; n++ {
		frame, err := initiator.Encrypt([]byte{byte(n)})
		if err != nil {
			t.Fatalf("Encrypt n=%d: %v", n, err)
		}
		if _, err := responder.Decrypt(frame); err != nil {
			t.Fatalf("Decrypt n=%d: %v", n, err)
		}
	}

	if _, err := responder.Decrypt(frames[0]); err != ErrDecryptionFailed {
		t.Fatalf("expected nonce one past the window to be rejected, got %v", err)
	}
}

// TestNonceExhaustion checks that encryption at messages_sent = 2^32-1 succeeds and the following call
// fails with ErrNonceExceeded.
func TestNonceExhaustion(t *testing.T) {
	initiator, _ := handshakeXXPair(t)
	initiator.messagesSent = maxNonce

	if _, err := initiator.Encrypt([]byte("last")); err != nil {
		t.Fatalf("expected final encrypt at max nonce to succeed, got %v", err)
	}

	if _, err := initiator.Encrypt([]byte("overflow")); err != ErrNonceExceeded {
		t.Fatalf("expected ErrNonceExceeded, got %v", err)
	}
}

// TestEncryptBeforeHandshakeFails checks the HandshakeRequired/NotEstablished error taxonomy.
func TestEncryptBeforeHandshakeFails(t *testing.T) {
	aStatic, err := GenerateStaticKeypair()
	if err != nil {
		t.Fatalf("GenerateStaticKeypair: %v", err)
	}
	var peerID [8]byte
	initiator, _, err := NewInitiator(peerID, aStatic, 0)
	if err != nil {
		t.Fatalf("NewInitiator: %v", err)
	}

	if _, err := initiator.Encrypt([]byte("too soon")); err != ErrHandshakeRequired {
		t.Fatalf("expected ErrHandshakeRequired, got %v", err)
	}
}

// TestRekeyPolicy checks the mandatory wall-clock and message-count rekey thresholds.
func TestRekeyPolicy(t *testing.T) {
	initiator, _ := handshakeXXPair(t)

	if initiator.NeedsRekey(0) {
		t.Fatal("freshly established session should not need rekey")
	}

	initiator.messagesSent = RekeyMessages + 1
	if !initiator.NeedsRekey(0) {
		t.Fatal("expected NeedsRekey after exceeding message count threshold")
	}

	initiator.messagesSent = 0
	ageMs := int64(RekeyAge.Milliseconds()) + 1
	if !initiator.NeedsRekey(ageMs) {
		t.Fatal("expected NeedsRekey after exceeding wall-clock age threshold")
	}
}
