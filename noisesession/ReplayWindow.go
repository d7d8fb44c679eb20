/*
File Name:  ReplayWindow.go
Author:     Peter Kleissner

Sliding 1024-bit anti-replay window, keyed by a nonce's distance below the highest nonce seen so far.
Bit 0 always denotes the current highest nonce itself, so an exact repeat of the highest nonce is
rejected just like any other replay.
*/

package noisesession

const replayWindowBits = replayWindowSize

func bitGet(w *[replayWindowBits / 8]byte, i int) bool {
	return w[i/8]&(1<<uint(i%8)) != 0
}

func bitSet(w *[replayWindowBits / 8]byte, i int) {
	w[i/8] |= 1 << uint(i%8)
}

// shiftWindow moves every set bit's distance up by shift (the window "ages" as the highest nonce
// advances); bits that would move past the window's width are dropped.
func shiftWindow(w *[replayWindowBits / 8]byte, shift int) {
	if shift <= 0 {
		return
	}
	if shift >= replayWindowBits {
		*w = [replayWindowBits / 8]byte{}
		return
	}

	var next [replayWindowBits / 8]byte
	for i := 0; i < replayWindowBits-shift; i++ {
		if bitGet(w, i) {
			bitSet(&next, i+shift)
		}
	}
	*w = next
}

// replayPeek reports whether nonce would be accepted by the current window state, without mutating it.
// Call it before authenticating a frame; only commit the result once decryption has succeeded.
func (s *Session) replayPeek(nonce uint64) bool {
	if !s.haveReceivedAny {
		return true
	}
	if nonce > s.highestRecvNonce {
		return true
	}
	distance := s.highestRecvNonce - nonce
	if distance >= replayWindowBits {
		return false
	}
	return !bitGet(&s.replayWindow, int(distance))
}

// replayCommit records nonce as received, advancing the window if nonce is a new high-water mark.
// Must only be called after the frame carrying nonce has been successfully authenticated.
func (s *Session) replayCommit(nonce uint64) {
	if !s.haveReceivedAny {
		s.highestRecvNonce = nonce
		s.haveReceivedAny = true
		bitSet(&s.replayWindow, 0)
		return
	}

	if nonce > s.highestRecvNonce {
		shift := int(nonce - s.highestRecvNonce)
		shiftWindow(&s.replayWindow, shift)
		s.highestRecvNonce = nonce
		bitSet(&s.replayWindow, 0)
		return
	}

	distance := s.highestRecvNonce - nonce
	bitSet(&s.replayWindow, int(distance))
}
