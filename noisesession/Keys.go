/*
File Name:  Keys.go
Author:     Peter Kleissner
*/

package noisesession

import (
	"crypto/rand"

	"github.com/flynn/noise"
)

// GenerateStaticKeypair produces a fresh Curve25519 static keypair for use as a session's long-term
// Noise identity.
func GenerateStaticKeypair() (noise.DHKey, error) {
	return cipherSuite.GenerateKeypair(rand.Reader)
}
