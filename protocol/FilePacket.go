/*
File Name:  FilePacket.go
Author:     Peter Kleissner

FilePacket is carried inside a FILE_TRANSFER packet, or as NOISE_ENCRYPTED inner content tagged
PrivateTypeFileTransfer. file_name and mime_type are variable-length UTF-8 fields with a 2-byte length
prefix; file_size is a fixed-width 4-byte integer with no length prefix. Per the spec's adopted Open
Question resolution, content always uses the 4-byte-length form (tag 0x04) uniformly, rather than the
2-byte variant some peers may send.
*/

package protocol

import (
	"encoding/binary"
	"errors"
)

const (
	tagFileName uint8 = 0x01
	tagFileSize uint8 = 0x02
	tagMimeType uint8 = 0x03
	tagContent4 uint8 = 0x04
)

// MaxFileSize is the largest file this core will accept into a FilePacket.
const MaxFileSize = 50 * 1024 * 1024

// ErrFileTooLarge is returned when a file packet's declared or actual size exceeds MaxFileSize.
var ErrFileTooLarge = errors.New("protocol: file exceeds maximum size")

// FilePacket is the decoded file-transfer payload.
type FilePacket struct {
	FileName string
	FileSize uint32
	MimeType string
	Content  []byte
}

// EncodeFilePacket serializes a FilePacket. FileName and MimeType use 2-byte lengths; FileSize is a
// fixed 4-byte field with no length prefix; Content uses a 4-byte length, per the wire format.
func EncodeFilePacket(f *FilePacket) ([]byte, error) {
	if f.FileSize > MaxFileSize || len(f.Content) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	w := tlvWriter{}
	w.writeTag2(tagFileName, []byte(f.FileName))

	var sizeBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], f.FileSize)
	w.buf = append(w.buf, tagFileSize)
	w.buf = append(w.buf, sizeBuf[:]...)

	w.writeTag2(tagMimeType, []byte(f.MimeType))
	w.writeTag4(tagContent4, f.Content)

	return w.bytes(), nil
}

// DecodeFilePacket parses a FilePacket. FileName, FileSize, and MimeType are optional (empty/zero if
// absent); Content defaults to nil. Field widths are tag-specific, so this does not use a single
// uniform TLV parser.
func DecodeFilePacket(data []byte) (*FilePacket, error) {
	f := &FilePacket{}
	off := 0

	for off < len(data) {
		if off+1 > len(data) {
			return nil, ErrTLVTruncated
		}
		tag := data[off]
		off++

		switch tag {
		case tagFileName, tagMimeType:
			if off+2 > len(data) {
				return nil, ErrTLVTruncated
			}
			length := int(binary.BigEndian.Uint16(data[off : off+2]))
			off += 2
			if off+length > len(data) {
				return nil, ErrTLVTruncated
			}
			if tag == tagFileName {
				f.FileName = string(data[off : off+length])
			} else {
				f.MimeType = string(data[off : off+length])
			}
			off += length

		case tagFileSize:
			if off+4 > len(data) {
				return nil, ErrTLVTruncated
			}
			f.FileSize = binary.BigEndian.Uint32(data[off : off+4])
			off += 4

		case tagContent4:
			if off+4 > len(data) {
				return nil, ErrTLVTruncated
			}
			length := int(binary.BigEndian.Uint32(data[off : off+4]))
			off += 4
			if off+length > len(data) {
				return nil, ErrTLVTruncated
			}
			f.Content = data[off : off+length]
			off += length

		default:
			return nil, ErrTLVTruncated
		}
	}

	if f.FileSize > MaxFileSize || len(f.Content) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	return f, nil
}
