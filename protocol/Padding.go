/*
File Name:  Padding.go
Author:     Peter Kleissner

Frames are padded to a fixed block size so that observers on the radio link cannot infer message
length from frame size. See the Codec contract in the specification for the exact block set.
*/

package protocol

import "errors"

// blockSizes is the ordered set of padding targets. Frames exceeding the largest usable block
// (2048-16 bytes of payload-bearing content) are left unpadded.
var blockSizes = []int{256, 512, 1024, 2048}

// ErrPadding is returned by Unpad when the trailing bytes are not a valid strict PKCS#7 pad.
var ErrPadding = errors.New("protocol: invalid padding")

// Pad pads raw to the smallest block size >= len(raw)+16 using PKCS#7 with a single-byte pad length.
// If no block size fits, raw is returned unmodified.
func Pad(raw []byte) []byte {
	target := -1
	for _, block := range blockSizes {
		if len(raw)+16 <= block {
			target = block
			break
		}
	}
	if target == -1 {
		return raw
	}

	padLen := target - len(raw)
	if padLen <= 0 || padLen > 255 {
		return raw
	}

	padded := make([]byte, target)
	copy(padded, raw)
	for i := len(raw); i < target; i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// Unpad strictly validates and removes PKCS#7 padding: every one of the trailing padLen bytes must
// equal padLen itself, and the frame must be at least that long.
func Unpad(padded []byte) ([]byte, error) {
	if len(padded) == 0 {
		return nil, ErrPadding
	}

	padLen := int(padded[len(padded)-1])
	if padLen == 0 || padLen > len(padded) {
		return nil, ErrPadding
	}

	for i := len(padded) - padLen; i < len(padded); i++ {
		if padded[i] != byte(padLen) {
			return nil, ErrPadding
		}
	}

	return padded[:len(padded)-padLen], nil
}
