package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestMetaMessageRoundTrip(t *testing.T) {
	msg, err := NewMetaMessage(MetaTypeSpeaking, SpeakingPayload{Speaking: true})
	require.NoError(t, err)

	wire, err := msgpack.Marshal(msg)
	require.NoError(t, err)

	var decoded MetaMessage
	require.NoError(t, msgpack.Unmarshal(wire, &decoded))
	assert.Equal(t, MetaTypeSpeaking, decoded.Type)

	var payload SpeakingPayload
	require.NoError(t, decoded.DecodePayload(&payload))
	assert.True(t, payload.Speaking)
}

func TestMetaMessagePing(t *testing.T) {
	msg, err := NewMetaMessage(MetaTypePing, PingPayload{SentAt: 1717320000000})
	require.NoError(t, err)

	var payload PingPayload
	require.NoError(t, msg.DecodePayload(&payload))
	assert.Equal(t, int64(1717320000000), payload.SentAt)
}
