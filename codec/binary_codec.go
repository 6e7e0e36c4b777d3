package codec

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"retrosheet/message"
)

// BinaryCodec lays an RPCMessage out as length-prefixed fields:
//
//	methodLen(2) method payloadLen(4) payload errorLen(2) error
//
// All lengths are big-endian.
type BinaryCodec struct{}

var _ Codec = BinaryCodec{}

func (BinaryCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(*message.RPCMessage)
	if !ok || msg == nil {
		return nil, errors.Wrapf(ErrNotRPCMessage, "got %T", v)
	}
	if len(msg.ServiceMethod) > math.MaxUint16 {
		return nil, errors.Wrap(ErrFieldTooLong, "service method")
	}
	if uint64(len(msg.Payload)) > math.MaxUint32 {
		return nil, errors.Wrap(ErrFieldTooLong, "payload")
	}
	if len(msg.Error) > math.MaxUint16 {
		return nil, errors.Wrap(ErrFieldTooLong, "error")
	}

	buf := make([]byte, 0, 2+len(msg.ServiceMethod)+4+len(msg.Payload)+2+len(msg.Error))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg.ServiceMethod)))
	buf = append(buf, msg.ServiceMethod...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.Payload)))
	buf = append(buf, msg.Payload...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg.Error)))
	buf = append(buf, msg.Error...)
	return buf, nil
}

func (BinaryCodec) Decode(data []byte, v any) error {
	msg, ok := v.(*message.RPCMessage)
	if !ok || msg == nil {
		return errors.Wrapf(ErrNotRPCMessage, "got %T", v)
	}

	r := binReader{buf: data}
	method := r.next(int(r.uint16()))
	payload := r.next(int(r.uint32()))
	errText := r.next(int(r.uint16()))
	if r.short {
		return errors.Wrapf(ErrShortBuffer, "%d bytes", len(data))
	}

	msg.ServiceMethod = string(method)
	msg.Payload = append([]byte(nil), payload...)
	msg.Error = string(errText)
	return nil
}

func (BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

// binReader walks buf and remembers whether it ever ran past the end.
type binReader struct {
	buf   []byte
	off   int
	short bool
}

func (r *binReader) next(n int) []byte {
	if r.short || n < 0 || n > len(r.buf)-r.off {
		r.short = true
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *binReader) uint16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *binReader) uint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}
