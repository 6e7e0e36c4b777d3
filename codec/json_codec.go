package codec

import (
	"io"

	jsoniter "github.com/json-iterator/go"
)

// JSONCodec serializes with a frozen jsoniter configuration.
// Pros: human-readable, cross-language, easy to debug.
// Cons: larger payload than binary (field names repeated).
//
// A JSONCodec never changes after Build and is safe for concurrent use.
type JSONCodec struct {
	cfg Config
	api jsoniter.API
}

var _ Codec = (*JSONCodec)(nil)

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return c.api.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return c.api.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}

func (c *JSONCodec) MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return c.api.MarshalIndent(v, prefix, indent)
}

func (c *JSONCodec) NewEncoder(w io.Writer) *jsoniter.Encoder {
	return c.api.NewEncoder(w)
}

func (c *JSONCodec) NewDecoder(r io.Reader) *jsoniter.Decoder {
	return c.api.NewDecoder(r)
}

// API exposes the underlying jsoniter API for callers that need the
// streaming or Get helpers.
func (c *JSONCodec) API() jsoniter.API {
	return c.api
}

// Config returns the configuration the codec was frozen with.
func (c *JSONCodec) Config() Config {
	return c.cfg
}
