package protocol

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrosheet/codec"
	"retrosheet/message"
)

func TestEncodeDecode(t *testing.T) {
	header := Header{
		CodecType: codec.CodecTypeJSON,
		MsgType:   MsgTypeRequest,
		Seq:       12345,
	}
	body := []byte("hello world")

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &header, body))
	assert.Equal(t, HeaderSize+len(body), buf.Len())

	decodedHeader, decodedBody, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, codec.CodecTypeJSON, decodedHeader.CodecType)
	assert.Equal(t, MsgTypeRequest, decodedHeader.MsgType)
	assert.Equal(t, uint32(12345), decodedHeader.Seq)
	assert.Equal(t, uint32(len(body)), decodedHeader.BodyLen)
	assert.Equal(t, body, decodedBody)
}

func frame(magic [3]byte, version, codecByte, msgType byte, bodyLen uint32) []byte {
	return []byte{
		magic[0], magic[1], magic[2],
		version, codecByte, msgType,
		0, 0, 0x30, 0x39,
		byte(bodyLen >> 24), byte(bodyLen >> 16), byte(bodyLen >> 8), byte(bodyLen),
	}
}

var goodMagic = [3]byte{MagicNumber, MagicByte2, MagicByte3}

func TestDecodeRejectsBadHeaders(t *testing.T) {
	cases := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"magic", frame([3]byte{0, 0, 0}, Version, 0, 0, 0), ErrInvalidMagic},
		{"version", frame(goodMagic, 0xFF, 0, 0, 0), ErrUnsupportedVersion},
		{"codec", frame(goodMagic, Version, 9, 0, 0), codec.ErrUnknownCodecType},
		{"msg type", frame(goodMagic, Version, 0, 7, 0), ErrUnsupportedMsgType},
		{"body size", frame(goodMagic, Version, 0, 0, MaxBodyLen+1), ErrBodyTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Decode(bytes.NewReader(tc.frame))
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestDecodeTruncatedBody(t *testing.T) {
	raw := append(frame(goodMagic, Version, 0, 0, 10), "short"...)
	_, _, err := Decode(bytes.NewReader(raw))
	assert.Error(t, err)
}

func TestDecodeEmptyBody(t *testing.T) {
	header := Header{
		CodecType: codec.CodecTypeJSON,
		MsgType:   MsgTypeHeartbeat,
		Seq:       12345,
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &header, nil))

	decodedHeader, decodedBody, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgTypeHeartbeat, decodedHeader.MsgType)
	assert.Zero(t, decodedHeader.BodyLen)
	assert.Empty(t, decodedBody)
}

func TestDecodeLargeBody(t *testing.T) {
	largeBody := make([]byte, 1024*1024)
	for i := range largeBody {
		largeBody[i] = byte(i % 256)
	}

	var buf bytes.Buffer
	header := &Header{CodecType: codec.CodecTypeBinary, MsgType: MsgTypeRequest, Seq: 999}
	require.NoError(t, Encode(&buf, header, largeBody))

	_, decodedBody, err := Decode(&buf)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(largeBody, decodedBody))
}

func TestMessageRoundTrip(t *testing.T) {
	for _, ct := range []codec.CodecType{codec.CodecTypeJSON, codec.CodecTypeBinary} {
		t.Run(ct.String(), func(t *testing.T) {
			msg := &message.RPCMessage{
				ServiceMethod: "Sheet.Append",
				Payload:       []byte(`{"name":"Ada"}`),
			}

			var buf bytes.Buffer
			require.NoError(t, WriteMessage(&buf, &Header{CodecType: ct, MsgType: MsgTypeRequest, Seq: 7}, msg))

			h, got, err := ReadMessage(&buf)
			require.NoError(t, err)
			assert.Equal(t, ct, h.CodecType)
			assert.Equal(t, uint32(7), h.Seq)
			assert.Equal(t, msg, got)
		})
	}
}

func TestJSONFrameBodyIsSharedCodecOutput(t *testing.T) {
	msg := &message.RPCMessage{ServiceMethod: "Sheet.Read", Error: "not found"}
	want, err := codec.Shared().Encode(msg)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, &Header{CodecType: codec.CodecTypeJSON, MsgType: MsgTypeResponse}, msg))
	assert.Equal(t, want, buf.Bytes()[HeaderSize:])
}

func TestHeartbeatMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, &Header{MsgType: MsgTypeHeartbeat, Seq: 1}, nil))

	h, msg, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgTypeHeartbeat, h.MsgType)
	assert.Nil(t, msg)
}

func TestReadMessageBadBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Header{CodecType: codec.CodecTypeJSON, MsgType: MsgTypeRequest}, []byte("{not json")))

	_, _, err := ReadMessage(&buf)
	assert.Error(t, err)
}

func TestWriteRejectsFramesDecodeWouldReject(t *testing.T) {
	msg := &message.RPCMessage{ServiceMethod: "Sheet.Read"}
	cases := []struct {
		name   string
		header Header
		want   error
	}{
		{"codec", Header{CodecType: 7, MsgType: MsgTypeRequest}, codec.ErrUnknownCodecType},
		{"msg type", Header{CodecType: codec.CodecTypeJSON, MsgType: 9}, ErrUnsupportedMsgType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := WriteMessage(&buf, &tc.header, msg)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)

			err = Encode(&buf, &tc.header, []byte("{}"))
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Zero(t, buf.Len(), "nothing may reach the writer")
		})
	}
}

func TestWriteMessageNilMessage(t *testing.T) {
	for _, ct := range []codec.CodecType{codec.CodecTypeJSON, codec.CodecTypeBinary} {
		t.Run(ct.String(), func(t *testing.T) {
			var buf bytes.Buffer
			err := WriteMessage(&buf, &Header{CodecType: ct, MsgType: MsgTypeRequest}, nil)
			assert.True(t, errors.Is(err, ErrNilMessage), "got %v", err)
			assert.Zero(t, buf.Len())
		})
	}
}
