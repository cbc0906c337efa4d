package pipeline

import (
	"log/slog"
)

// Compiler turns model descriptors and requests into aggregation pipelines.
// A Compiler holds no per-request state and is safe for concurrent use.
type Compiler struct {
	codec  IdentifierCodec
	logger *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithIdentifierCodec sets the codec used to coerce Id-format values.
// The default is ObjectIDCodec.
func WithIdentifierCodec(codec IdentifierCodec) Option {
	return func(c *Compiler) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a Compiler with the given options applied.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		codec:  ObjectIDCodec{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Codec returns the identifier codec in use.
func (c *Compiler) Codec() IdentifierCodec {
	return c.codec
}
