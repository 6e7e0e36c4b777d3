// Package protocol implements the binary frame that carries encoded messages.
//
// A fixed 14-byte header is followed by a variable-length body. The receiver
// reads the header first to learn the body length, then reads exactly that
// many bytes.
//
// Frame format:
//
//	0      3  4  5  6         10        14
//	┌──────┬──┬──┬──┬─────────┬─────────┬───────────────┐
//	│magic │v │ct│mt│   seq   │ bodyLen │    body ...    │
//	│ mrp  │01│  │  │ uint32  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴─────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"retrosheet/codec"
	"retrosheet/message"
)

const (
	MagicNumber byte = 0x6d // 'm'
	MagicByte2  byte = 0x72 // 'r'
	MagicByte3  byte = 0x70 // 'p'
	Version     byte = 0x01
	HeaderSize  int  = 14 // 3 (magic) + 1 (version) + 1 (codec) + 1 (msgType) + 4 (seq) + 4 (bodyLen)

	// MaxBodyLen caps the allocation a single frame can ask for.
	MaxBodyLen uint32 = 16 << 20
)

// MsgType distinguishes request, response, and heartbeat frames.
type MsgType byte

const (
	MsgTypeRequest   MsgType = 0
	MsgTypeResponse  MsgType = 1
	MsgTypeHeartbeat MsgType = 2 // no body
)

var (
	ErrInvalidMagic       = errors.New("invalid magic number")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrUnsupportedMsgType = errors.New("unsupported message type")
	ErrBodyTooLarge       = errors.New("body too large")
	ErrNilMessage         = errors.New("nil message in non-heartbeat frame")
)

// Header represents the fixed 14-byte frame header.
type Header struct {
	CodecType codec.CodecType
	MsgType   MsgType
	Seq       uint32 // matches a response to its request
	BodyLen   uint32
}

func (t MsgType) valid() bool {
	return t == MsgTypeRequest || t == MsgTypeResponse || t == MsgTypeHeartbeat
}

// validate applies the same codec and message type checks Decode does.
func (h *Header) validate() error {
	if _, err := codec.ParseCodecType(byte(h.CodecType)); err != nil {
		return err
	}
	if !h.MsgType.valid() {
		return errors.Wrapf(ErrUnsupportedMsgType, "%d", byte(h.MsgType))
	}
	return nil
}

// Encode writes a complete frame (header + body) to w. BodyLen is taken from
// body, not from h.
// The caller must serialize writers that share w, otherwise frames interleave.
func Encode(w io.Writer, h *Header, body []byte) error {
	if err := h.validate(); err != nil {
		return err
	}
	if uint64(len(body)) > uint64(MaxBodyLen) {
		return errors.Wrapf(ErrBodyTooLarge, "%d bytes", len(body))
	}

	buf := make([]byte, HeaderSize, HeaderSize+len(body))
	buf[0], buf[1], buf[2] = MagicNumber, MagicByte2, MagicByte3
	buf[3] = Version
	buf[4] = byte(h.CodecType)
	buf[5] = byte(h.MsgType)
	binary.BigEndian.PutUint32(buf[6:10], h.Seq)
	binary.BigEndian.PutUint32(buf[10:14], uint32(len(body)))
	buf = append(buf, body...)

	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return nil
}

// Decode reads a complete frame (header + body) from r and validates the
// magic number, version, codec type, message type and body length.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, errors.Wrapf(ErrInvalidMagic, "%x", headerBuf[0:3])
	}
	if headerBuf[3] != Version {
		return nil, nil, errors.Wrapf(ErrUnsupportedVersion, "%d", headerBuf[3])
	}
	codecType, err := codec.ParseCodecType(headerBuf[4])
	if err != nil {
		return nil, nil, err
	}
	msgType := MsgType(headerBuf[5])
	if !msgType.valid() {
		return nil, nil, errors.Wrapf(ErrUnsupportedMsgType, "%d", headerBuf[5])
	}

	h := &Header{
		CodecType: codecType,
		MsgType:   msgType,
		Seq:       binary.BigEndian.Uint32(headerBuf[6:10]),
		BodyLen:   binary.BigEndian.Uint32(headerBuf[10:14]),
	}
	if h.BodyLen > MaxBodyLen {
		return nil, nil, errors.Wrapf(ErrBodyTooLarge, "%d bytes", h.BodyLen)
	}

	body := make([]byte, h.BodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, errors.Wrap(err, "read body")
	}
	return h, body, nil
}

// WriteMessage encodes msg with the codec named by h.CodecType and writes it
// as one frame. Heartbeats carry no body and msg may be nil.
func WriteMessage(w io.Writer, h *Header, msg *message.RPCMessage) error {
	if err := h.validate(); err != nil {
		return err
	}
	var body []byte
	if h.MsgType != MsgTypeHeartbeat {
		if msg == nil {
			return errors.Wrapf(ErrNilMessage, "seq %d", h.Seq)
		}
		var err error
		body, err = codec.GetCodec(h.CodecType).Encode(msg)
		if err != nil {
			return errors.Wrapf(err, "encode %s", h.CodecType)
		}
	}
	return Encode(w, h, body)
}

// ReadMessage reads one frame and decodes its body with the codec the header
// names. For heartbeats the returned message is nil.
func ReadMessage(r io.Reader) (*Header, *message.RPCMessage, error) {
	h, body, err := Decode(r)
	if err != nil {
		return nil, nil, err
	}
	if h.MsgType == MsgTypeHeartbeat {
		return h, nil, nil
	}

	msg := new(message.RPCMessage)
	if err := codec.GetCodec(h.CodecType).Decode(body, msg); err != nil {
		return nil, nil, errors.Wrapf(err, "decode %s frame seq %d", h.CodecType, h.Seq)
	}
	return h, msg, nil
}
