/*
File Name:  RequestSync.go
Author:     Peter Kleissner

REQUEST_SYNC payload encoding: a TLV list with 2-byte big-endian lengths and three tags:
0x01 P (1 byte), 0x02 M (4-byte big-endian), 0x03 data (opaque Golomb-coded-set filter bytes).
*/

package gossip

import (
	"encoding/binary"
	"errors"
)

const (
	tagP    uint8 = 0x01
	tagM    uint8 = 0x02
	tagData uint8 = 0x03
)

// ErrMalformedRequestSync is returned for a truncated or incomplete REQUEST_SYNC TLV stream.
var ErrMalformedRequestSync = errors.New("gossip: malformed REQUEST_SYNC payload")

// RequestSyncPayload is the decoded REQUEST_SYNC body.
type RequestSyncPayload struct {
	P    uint8
	M    uint32
	Data []byte
}

// EncodeRequestSync serializes a RequestSyncPayload as the 2-byte-length TLV stream.
func EncodeRequestSync(r *RequestSyncPayload) []byte {
	buf := make([]byte, 0, 3+7+3+len(r.Data))

	buf = append(buf, tagP)
	buf = appendLen2(buf, 1)
	buf = append(buf, r.P)

	buf = append(buf, tagM)
	buf = appendLen2(buf, 4)
	var mBuf [4]byte
	binary.BigEndian.PutUint32(mBuf[:], r.M)
	buf = append(buf, mBuf[:]...)

	buf = append(buf, tagData)
	buf = appendLen2(buf, len(r.Data))
	buf = append(buf, r.Data...)

	return buf
}

func appendLen2(buf []byte, n int) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(n))
	return append(buf, lenBuf[:]...)
}

// DecodeRequestSync parses a REQUEST_SYNC payload. All three tags are required; filter data longer than
// MaxAcceptBytes is rejected with ErrFilterTooLarge.
func DecodeRequestSync(data []byte) (*RequestSyncPayload, error) {
	r := &RequestSyncPayload{}
	var haveP, haveM, haveData bool

	off := 0
	for off < len(data) {
		if off+3 > len(data) {
			return nil, ErrMalformedRequestSync
		}
		tag := data[off]
		length := int(binary.BigEndian.Uint16(data[off+1 : off+3]))
		off += 3
		if off+length > len(data) {
			return nil, ErrMalformedRequestSync
		}
		value := data[off : off+length]
		off += length

		switch tag {
		case tagP:
			if len(value) != 1 {
				return nil, ErrMalformedRequestSync
			}
			r.P = value[0]
			haveP = true
		case tagM:
			if len(value) != 4 {
				return nil, ErrMalformedRequestSync
			}
			r.M = binary.BigEndian.Uint32(value)
			haveM = true
		case tagData:
			if len(value) > MaxAcceptBytes {
				return nil, ErrFilterTooLarge
			}
			r.Data = value
			haveData = true
		}
	}

	if !haveP || !haveM || !haveData {
		return nil, ErrMalformedRequestSync
	}
	return r, nil
}
