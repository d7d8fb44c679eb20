/*
File Name:  Announcement.go
Author:     Peter Kleissner

IdentityAnnouncement is the ANNOUNCE payload: a 1-byte-length TLV carrying the nickname and both
long-term public keys. All three fields are required; a partial announcement fails to decode so the
Security Gate correctly rejects it rather than trusting an incomplete identity.
*/

package protocol

import "errors"

const (
	tagNickname      uint8 = 0x01
	tagNoisePubkey   uint8 = 0x02
	tagSigningPubkey uint8 = 0x03
)

// NoisePubkeySize and SigningPubkeySize are the fixed key widths carried in an announcement.
const (
	NoisePubkeySize   = 32
	SigningPubkeySize = 32
)

// ErrIncompleteAnnouncement is returned when a required field is missing from the TLV stream.
var ErrIncompleteAnnouncement = errors.New("protocol: incomplete announcement")

// IdentityAnnouncement is the decoded ANNOUNCE payload.
type IdentityAnnouncement struct {
	Nickname       string
	NoisePubkey    [NoisePubkeySize]byte
	SigningPubkey  [SigningPubkeySize]byte
}

// EncodeAnnouncement serializes an IdentityAnnouncement as a 1-byte-length TLV stream.
func EncodeAnnouncement(a *IdentityAnnouncement) []byte {
	w := tlvWriter{}
	w.writeTag1(tagNickname, []byte(a.Nickname))
	w.writeTag1(tagNoisePubkey, a.NoisePubkey[:])
	w.writeTag1(tagSigningPubkey, a.SigningPubkey[:])
	return w.bytes()
}

// DecodeAnnouncement parses an ANNOUNCE payload. All three tags must be present or decoding fails,
// matching the Security Gate's requirement to reject a packet whose signer key cannot be extracted.
func DecodeAnnouncement(data []byte) (*IdentityAnnouncement, error) {
	entries, err := parseTLV1(data)
	if err != nil {
		return nil, err
	}

	a := &IdentityAnnouncement{}
	var haveNickname, haveNoise, haveSigning bool

	for _, e := range entries {
		switch e.Tag {
		case tagNickname:
			a.Nickname = string(e.Value)
			haveNickname = true
		case tagNoisePubkey:
			if len(e.Value) != NoisePubkeySize {
				return nil, ErrIncompleteAnnouncement
			}
			copy(a.NoisePubkey[:], e.Value)
			haveNoise = true
		case tagSigningPubkey:
			if len(e.Value) != SigningPubkeySize {
				return nil, ErrIncompleteAnnouncement
			}
			copy(a.SigningPubkey[:], e.Value)
			haveSigning = true
		}
	}

	if !haveNickname || !haveNoise || !haveSigning {
		return nil, ErrIncompleteAnnouncement
	}

	return a, nil
}
