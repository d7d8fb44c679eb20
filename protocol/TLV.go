/*
File Name:  TLV.go
Author:     Peter Kleissner

Small tag-length-value helpers shared by the Announcement, Private Message, and File Transfer payloads.
Each call site picks its own length width (1, 2, or 4 bytes) per the wire format in the specification.
*/

package protocol

import (
	"encoding/binary"
	"errors"
)

// ErrTLVTruncated is returned when a TLV stream ends before a declared field.
var ErrTLVTruncated = errors.New("protocol: truncated TLV")

// tlvWriter accumulates tag-length-value encoded fields.
type tlvWriter struct {
	buf []byte
}

func (w *tlvWriter) writeTag1(tag uint8, value []byte) {
	w.buf = append(w.buf, tag, uint8(len(value)))
	w.buf = append(w.buf, value...)
}

func (w *tlvWriter) writeTag2(tag uint8, value []byte) {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(value)))
	w.buf = append(w.buf, tag)
	w.buf = append(w.buf, lenBuf[:]...)
	w.buf = append(w.buf, value...)
}

func (w *tlvWriter) writeTag4(tag uint8, value []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(value)))
	w.buf = append(w.buf, tag)
	w.buf = append(w.buf, lenBuf[:]...)
	w.buf = append(w.buf, value...)
}

func (w *tlvWriter) bytes() []byte { return w.buf }

// tlvEntry is one decoded tag/value pair.
type tlvEntry struct {
	Tag   uint8
	Value []byte
}

// parseTLV1 parses a stream of {tag uint8, len uint8, value} entries.
func parseTLV1(data []byte) (entries []tlvEntry, err error) {
	off := 0
	for off < len(data) {
		if off+2 > len(data) {
			return nil, ErrTLVTruncated
		}
		tag := data[off]
		length := int(data[off+1])
		off += 2
		if off+length > len(data) {
			return nil, ErrTLVTruncated
		}
		entries = append(entries, tlvEntry{Tag: tag, Value: data[off : off+length]})
		off += length
	}
	return entries, nil
}

// parseTLV2 parses a stream of {tag uint8, len uint16 BE, value} entries.
func parseTLV2(data []byte) (entries []tlvEntry, err error) {
	off := 0
	for off < len(data) {
		if off+3 > len(data) {
			return nil, ErrTLVTruncated
		}
		tag := data[off]
		length := int(binary.BigEndian.Uint16(data[off+1 : off+3]))
		off += 3
		if off+length > len(data) {
			return nil, ErrTLVTruncated
		}
		entries = append(entries, tlvEntry{Tag: tag, Value: data[off : off+length]})
		off += length
	}
	return entries, nil
}

// parseTLVMixed parses REQUEST_SYNC's TLV stream, which uses a 2-byte big-endian length for every entry
// regardless of tag (the field widths named in the spec, e.g. "0x02 M (4 bytes)", describe the payload
// shape, not the length prefix).
func parseTLVMixed(data []byte) (entries []tlvEntry, err error) {
	return parseTLV2(data)
}
