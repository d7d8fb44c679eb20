/*
File Name:  PrivateMessage.go
Author:     Peter Kleissner

The plaintext carried inside a decrypted NOISE_ENCRYPTED packet: a 1-byte-type, 1-byte-length outer
TLV selecting one of several inner message kinds. Only PRIVATE_MESSAGE has further inner structure;
the others are opaque or fixed-shape payloads interpreted by the application layer above this core.
*/

package protocol

// Private message outer TLV types.
const (
	PrivateTypePrivateMessage uint8 = 0x01
	PrivateTypeReadReceipt    uint8 = 0x02
	PrivateTypeDelivered      uint8 = 0x03
	PrivateTypeVerifyChallenge uint8 = 0x10
	PrivateTypeVerifyResponse  uint8 = 0x11
	PrivateTypeFileTransfer    uint8 = 0x20
)

// PRIVATE_MESSAGE inner TLV tags.
const (
	tagMessageID uint8 = 0x00
	tagContent   uint8 = 0x01
	tagMentions  uint8 = 0x02
)

// PrivateMessageContent is the inner structure of a PRIVATE_MESSAGE.
type PrivateMessageContent struct {
	MessageID string
	Content   string
	Mentions  []string // optional
}

// EncodePrivateMessageContent serializes the inner PRIVATE_MESSAGE TLV.
func EncodePrivateMessageContent(m *PrivateMessageContent) []byte {
	w := tlvWriter{}
	w.writeTag1(tagMessageID, []byte(m.MessageID))
	w.writeTag1(tagContent, []byte(m.Content))
	if len(m.Mentions) > 0 {
		mentions := tlvWriter{}
		for _, mention := range m.Mentions {
			mentions.writeTag1(0x00, []byte(mention))
		}
		w.writeTag1(tagMentions, mentions.bytes())
	}
	return w.bytes()
}

// DecodePrivateMessageContent parses the inner PRIVATE_MESSAGE TLV. MessageID and Content are required.
func DecodePrivateMessageContent(data []byte) (*PrivateMessageContent, error) {
	entries, err := parseTLV1(data)
	if err != nil {
		return nil, err
	}

	m := &PrivateMessageContent{}
	var haveID, haveContent bool
	for _, e := range entries {
		switch e.Tag {
		case tagMessageID:
			m.MessageID = string(e.Value)
			haveID = true
		case tagContent:
			m.Content = string(e.Value)
			haveContent = true
		case tagMentions:
			mentionEntries, err := parseTLV1(e.Value)
			if err != nil {
				return nil, err
			}
			for _, me := range mentionEntries {
				m.Mentions = append(m.Mentions, string(me.Value))
			}
		}
	}
	if !haveID || !haveContent {
		return nil, ErrIncompleteAnnouncement
	}
	return m, nil
}

// PrivateEnvelope is the outer {type, payload} wrapper for NOISE_ENCRYPTED inner content.
type PrivateEnvelope struct {
	Type    uint8
	Payload []byte
}

// EncodePrivateEnvelope wraps an inner payload with its 1-byte type and 1-byte length header.
func EncodePrivateEnvelope(e *PrivateEnvelope) []byte {
	w := tlvWriter{}
	w.writeTag1(e.Type, e.Payload)
	return w.bytes()
}

// DecodePrivateEnvelope parses the single outer {type, payload} entry. Only the first entry is used;
// a conforming encoder never emits more than one.
func DecodePrivateEnvelope(data []byte) (*PrivateEnvelope, error) {
	entries, err := parseTLV1(data)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrTLVTruncated
	}
	return &PrivateEnvelope{Type: entries[0].Tag, Payload: entries[0].Value}, nil
}
