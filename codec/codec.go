// Package codec turns values into bytes and back for the RPC layer.
//
// Two formats exist: JSON, backed by a single process-wide jsoniter
// configuration (see Shared), and a compact binary layout that only knows how
// to carry *message.RPCMessage. The codec type travels in every frame header
// so the receiver can pick the matching decoder.
package codec

import (
	"fmt"

	"github.com/pkg/errors"
)

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
)

var (
	// ErrUnknownCodecType is returned when a codec byte names no known format.
	ErrUnknownCodecType = errors.New("unknown codec type")
	// ErrNotRPCMessage is returned by BinaryCodec for anything but *message.RPCMessage.
	ErrNotRPCMessage = errors.New("binary codec: value must be *message.RPCMessage")
	// ErrShortBuffer is returned when binary input ends before a declared field does.
	ErrShortBuffer = errors.New("binary codec: short buffer")
	// ErrFieldTooLong is returned when a field does not fit its length prefix.
	ErrFieldTooLong = errors.New("binary codec: field too long")
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType // 0=JSON, 1=Binary
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeBinary:
		return "binary"
	default:
		return fmt.Sprintf("codec(%d)", byte(t))
	}
}

// ParseCodecType validates a codec byte read off the wire.
func ParseCodecType(b byte) (CodecType, error) {
	switch t := CodecType(b); t {
	case CodecTypeJSON, CodecTypeBinary:
		return t, nil
	default:
		return 0, errors.Wrapf(ErrUnknownCodecType, "codec byte %d", b)
	}
}

// GetCodec returns the codec for codecType. JSON always resolves to the
// shared instance; anything that is not JSON falls back to binary, so bytes
// from the wire must go through ParseCodecType first.
func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return Shared()
	}

	return BinaryCodec{}
}
