package codec

import "sync"

// Provider hands out one lazily built JSONCodec.
//
// The build function runs on the first call to Codec and never again, even
// when several goroutines race on that first call; all of them get the same
// pointer. A panic in build reaches the caller and is repeated on every later
// call without running build a second time.
type Provider struct {
	codec func() *JSONCodec
}

func NewProvider(build func() *JSONCodec) *Provider {
	return &Provider{codec: sync.OnceValue(build)}
}

func (p *Provider) Codec() *JSONCodec {
	return p.codec()
}

func buildDefault() *JSONCodec {
	return NewBuilder().Build()
}

var shared = NewProvider(buildDefault)

// Shared returns the process-wide JSON codec, built from DefaultConfig on
// first use.
func Shared() *JSONCodec {
	return shared.Codec()
}
