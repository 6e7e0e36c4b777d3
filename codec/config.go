package codec

import jsoniter "github.com/json-iterator/go"

// Config is the JSON configuration a JSONCodec is frozen with.
//
// The zero value is not the default; use DefaultConfig. Adding a field here
// is how the shared codec gets a new behaviour.
type Config struct {
	EscapeHTML            bool
	SortMapKeys           bool
	UseNumber             bool
	DisallowUnknownFields bool
	// TagKey is the struct tag read for field names. Empty means "json".
	TagKey string
}

// DefaultConfig mirrors encoding/json: HTML escaped, map keys sorted,
// raw messages validated, numbers decoded as float64.
func DefaultConfig() Config {
	return Config{
		EscapeHTML:  true,
		SortMapKeys: true,
	}
}

func (c Config) iterConfig() jsoniter.Config {
	return jsoniter.Config{
		EscapeHTML:             c.EscapeHTML,
		SortMapKeys:            c.SortMapKeys,
		UseNumber:              c.UseNumber,
		DisallowUnknownFields:  c.DisallowUnknownFields,
		TagKey:                 c.TagKey,
		ValidateJsonRawMessage: true,
	}
}

// Builder collects a Config and freezes it into a JSONCodec.
// A Builder is not safe for concurrent use; the codecs it builds are.
type Builder struct {
	cfg Config
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// EscapeHTML controls escaping of <, > and & inside strings.
func (b *Builder) EscapeHTML(on bool) *Builder {
	b.cfg.EscapeHTML = on
	return b
}

// SortMapKeys makes map output deterministic.
func (b *Builder) SortMapKeys(on bool) *Builder {
	b.cfg.SortMapKeys = on
	return b
}

// UseNumber decodes numbers in interface values as json.Number.
func (b *Builder) UseNumber(on bool) *Builder {
	b.cfg.UseNumber = on
	return b
}

// DisallowUnknownFields fails decoding on object keys with no matching field.
func (b *Builder) DisallowUnknownFields(on bool) *Builder {
	b.cfg.DisallowUnknownFields = on
	return b
}

// TagKey sets the struct tag read for field names.
func (b *Builder) TagKey(key string) *Builder {
	b.cfg.TagKey = key
	return b
}

// Build returns a new codec. Every call freezes a fresh jsoniter API, so
// callers that want sharing go through a Provider.
func (b *Builder) Build() *JSONCodec {
	return &JSONCodec{
		cfg: b.cfg,
		api: b.cfg.iterConfig().Froze(),
	}
}
