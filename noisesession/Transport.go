/*
File Name:  Transport.go
Author:     Peter Kleissner

Transport-phase encrypt/decrypt once a session has split into send/receive ciphers. Each ciphertext on
the wire is framed as a 4-byte big-endian nonce followed by the AEAD output; the nonce is the sender's
monotone counter, starting at 0 and incremented after every successful encryption.
*/

package noisesession

import "encoding/binary"

const nonceFieldSize = 4

// Encrypt seals plaintext under the session's send cipher and frames it with the current send nonce.
// Requires the session to be Established; fails with ErrNonceExceeded once the counter has been
// exhausted (the caller must rekey).
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State == StateUninit || s.State == StateHandshaking {
		return nil, ErrHandshakeRequired
	}
	if s.State != StateEstablished {
		return nil, ErrNotEstablished
	}
	if s.sendExhausted {
		return nil, ErrNonceExceeded
	}

	nonce := s.messagesSent
	s.sendCipher.SetNonce(uint64(nonce))
	ciphertext := s.sendCipher.Encrypt(nil, nil, plaintext)

	frame := make([]byte, nonceFieldSize+len(ciphertext))
	binary.BigEndian.PutUint32(frame[:nonceFieldSize], nonce)
	copy(frame[nonceFieldSize:], ciphertext)

	if nonce == maxNonce {
		s.sendExhausted = true
	} else {
		s.messagesSent = nonce + 1
	}

	return frame, nil
}

// Decrypt authenticates and opens a received frame under the session's receive cipher, enforcing the
// sliding-window anti-replay check before committing the nonce as seen.
func (s *Session) Decrypt(frame []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State == StateUninit || s.State == StateHandshaking {
		return nil, ErrHandshakeRequired
	}
	if s.State != StateEstablished {
		return nil, ErrNotEstablished
	}
	if len(frame) < nonceFieldSize {
		return nil, ErrDecryptionFailed
	}

	nonce64 := uint64(binary.BigEndian.Uint32(frame[:nonceFieldSize]))
	if !s.replayPeek(nonce64) {
		return nil, ErrDecryptionFailed
	}

	s.recvCipher.SetNonce(nonce64)
	plaintext, err := s.recvCipher.Decrypt(nil, nil, frame[nonceFieldSize:])
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	s.replayCommit(nonce64)
	return plaintext, nil
}
