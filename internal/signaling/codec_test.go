package signaling

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestCodecFor(t *testing.T) {
	assert.IsType(t, MsgpackCodec{}, CodecFor(SubprotocolMsgpack))
	assert.IsType(t, JSONCodec{}, CodecFor(SubprotocolJSON))
	assert.IsType(t, JSONCodec{}, CodecFor(""))
}

func TestJSONCodec(t *testing.T) {
	codec := JSONCodec{}
	assert.Equal(t, websocket.TextMessage, codec.MessageType())

	t.Run("encode", func(t *testing.T) {
		data, err := codec.Encode(Envelope{Event: EventRoomClosed, Data: RoomClosedPayload{ShareID: "abc123"}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"event":"room-closed","data":{"shareId":"abc123"}}`, string(data))
	})

	t.Run("decode", func(t *testing.T) {
		frame, err := codec.Decode([]byte(`{"event":"join-room","data":"abc123"}`))
		require.NoError(t, err)
		assert.Equal(t, EventJoinRoom, frame.Event)
		assert.JSONEq(t, `"abc123"`, string(frame.Data))
	})

	t.Run("decode without data", func(t *testing.T) {
		frame, err := codec.Decode([]byte(`{"event":"leave"}`))
		require.NoError(t, err)
		assert.Equal(t, EventLeave, frame.Event)
		assert.Empty(t, frame.Data)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := codec.Decode([]byte(`not json`))
		assert.Error(t, err)

		_, err = codec.Decode([]byte(`{"data":{}}`))
		assert.ErrorIs(t, err, errMissingEvent)
	})
}

func TestMsgpackCodec(t *testing.T) {
	codec := MsgpackCodec{}
	assert.Equal(t, websocket.BinaryMessage, codec.MessageType())

	t.Run("encode uses json field names", func(t *testing.T) {
		data, err := codec.Encode(Envelope{
			Event: EventKeepAliveAck,
			Data:  KeepAliveAckPayload{OK: true},
		})
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, msgpack.Unmarshal(data, &decoded))
		assert.Equal(t, EventKeepAliveAck, decoded["event"])
		assert.Equal(t, map[string]any{"ok": true}, decoded["data"])
	})

	t.Run("zero values survive", func(t *testing.T) {
		data, err := codec.Encode(Envelope{
			Event: EventSenderThrottle,
			Data:  SenderThrottlePayload{ReceiverID: "r1", Level: 0},
		})
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, msgpack.Unmarshal(data, &decoded))
		payload := decoded["data"].(map[string]any)
		assert.Contains(t, payload, "level")
	})

	t.Run("decode normalizes payload to json", func(t *testing.T) {
		msg, err := msgpack.Marshal(map[string]any{
			"event": EventProgressReport,
			"data":  map[string]any{"shareId": "abc123", "bytes": 400},
		})
		require.NoError(t, err)

		frame, err := codec.Decode(msg)
		require.NoError(t, err)
		assert.Equal(t, EventProgressReport, frame.Event)
		assert.JSONEq(t, `{"shareId":"abc123","bytes":400}`, string(frame.Data))
	})

	t.Run("decode without data", func(t *testing.T) {
		msg, err := msgpack.Marshal(map[string]any{"event": EventLeave})
		require.NoError(t, err)

		frame, err := codec.Decode(msg)
		require.NoError(t, err)
		assert.Nil(t, frame.Data)
	})

	t.Run("rejects missing event", func(t *testing.T) {
		msg, err := msgpack.Marshal(map[string]any{"data": "x"})
		require.NoError(t, err)

		_, err = codec.Decode(msg)
		assert.ErrorIs(t, err, errMissingEvent)
	})
}
