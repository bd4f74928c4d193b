package session

import "github.com/vmihailenco/msgpack/v5"

// The "meta" data channel rides on every peer session and carries small
// latency-sensitive control messages that do not need the signaling
// round-trip through the server.

const metaChannelLabel = "meta"

// Meta message types.
const (
	MetaTypeSpeaking = "speaking"
	MetaTypePing     = "ping"
	MetaTypePong     = "pong"
)

// MetaMessage is the envelope for all meta-channel messages.
type MetaMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// SpeakingPayload is the sender's own voice-activity flag.
type SpeakingPayload struct {
	Speaking bool `msgpack:"speaking"`
}

// PingPayload carries the sender's send time in unix milliseconds; the pong
// echoes it back.
type PingPayload struct {
	SentAt int64 `msgpack:"sentAt"`
}

// NewMetaMessage creates a MetaMessage with the given type and payload.
func NewMetaMessage(t string, payload any) (MetaMessage, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return MetaMessage{}, err
	}

	return MetaMessage{
		Type:    t,
		Payload: b,
	}, nil
}

// DecodePayload decodes the message payload into the provided struct.
func (m MetaMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}
