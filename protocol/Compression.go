/*
File Name:  Compression.go
Author:     Peter Kleissner

Compression contract: raw DEFLATE (no zlib framing), attempted only for MESSAGE, ANNOUNCE, LEAVE, and
REQUEST_SYNC when the payload is large enough and "looks compressible". When applied, the decompressed
size precedes the compressed bytes (2 bytes for v1, 4 bytes for v2, big endian).
*/

package protocol

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"io"
)

const (
	compressionMinSize    = 100
	compressionMaxRatio   = 50000 // decompression bomb guard: reject ratio greater than this
	uniqueByteRatioCutoff = 0.9
)

// ErrDecompressionBomb is returned when a compressed payload's claimed decompressed size implies an
// implausible compression ratio.
var ErrDecompressionBomb = errors.New("protocol: compression ratio exceeds bomb guard")

// isCompressible applies the byte-entropy heuristic: payloads whose unique-byte ratio is high (close
// to random/already-compressed data) are not worth spending CPU compressing.
func isCompressible(payload []byte) bool {
	if len(payload) < compressionMinSize {
		return false
	}

	var seen [256]bool
	unique := 0
	for _, b := range payload {
		if !seen[b] {
			seen[b] = true
			unique++
		}
	}

	ratio := float64(unique) / float64(len(payload))
	return ratio < uniqueByteRatioCutoff
}

// compressPayload attempts raw DEFLATE compression of payload. It returns ok=false if compression
// was not attempted (ineligible size/entropy) or did not actually help fit within wire limits.
func compressPayload(version uint8, payload []byte) (out []byte, ok bool) {
	if !isCompressible(payload) {
		return nil, false
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(payload); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}

	sizeFieldLen := 2
	if version == Version2 {
		sizeFieldLen = 4
	}

	out = make([]byte, sizeFieldLen+buf.Len())
	switch sizeFieldLen {
	case 2:
		if len(payload) > 0xFFFF {
			return nil, false
		}
		binary.BigEndian.PutUint16(out[:2], uint16(len(payload)))
	case 4:
		binary.BigEndian.PutUint32(out[:4], uint32(len(payload)))
	}
	copy(out[sizeFieldLen:], buf.Bytes())

	if len(out) > MaxCompressedPayload {
		return nil, false
	}

	return out, true
}

// decompressIfNeeded reverses compressPayload when the IS_COMPRESSED flag is set.
func decompressIfNeeded(p *Packet) (*Packet, error) {
	if p.Flags&FlagIsCompressed == 0 {
		return p, nil
	}

	sizeFieldLen := 2
	if p.Version == Version2 {
		sizeFieldLen = 4
	}
	if len(p.Payload) < sizeFieldLen {
		return nil, ErrTruncatedFrame
	}

	var originalSize uint64
	switch sizeFieldLen {
	case 2:
		originalSize = uint64(binary.BigEndian.Uint16(p.Payload[:2]))
	case 4:
		originalSize = uint64(binary.BigEndian.Uint32(p.Payload[:4]))
	}

	compressed := p.Payload[sizeFieldLen:]
	if len(compressed) > 0 && originalSize/uint64(len(compressed)) > compressionMaxRatio {
		return nil, ErrDecompressionBomb
	}

	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	decompressed := make([]byte, 0, originalSize)
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			decompressed = append(decompressed, buf[:n]...)
			if uint64(len(decompressed)) > originalSize*compressionMaxRatio {
				return nil, ErrDecompressionBomb
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	p.Payload = decompressed
	p.Flags &^= FlagIsCompressed
	return p, nil
}
