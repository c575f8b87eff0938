// Package brainlift provides a Brainfuck toolchain: a tree-walking
// interpreter and an ahead-of-time compiler that lowers programs to a
// block-parameterized control-flow graph and emits relocatable x86-64
// objects. This package is the convenience surface; the subpackages do the
// work.
package brainlift

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/thymoze/brainlift/backend"
	"github.com/thymoze/brainlift/backend/amd64"
	"github.com/thymoze/brainlift/compiler"
	"github.com/thymoze/brainlift/interp"
	"github.com/thymoze/brainlift/parser"
	"github.com/thymoze/brainlift/rt"
)

// Option configures Run or Build.
type Option func(*options)

type options struct {
	maxTapeSize int
	eofPolicy   rt.EOFPolicy
	input       io.Reader
	output      io.Writer
	debug       io.Writer
	logger      *zerolog.Logger
	target      backend.Target
}

// WithMaxTapeSize sets the maximum tape size in cells.
func WithMaxTapeSize(n int) Option {
	return func(o *options) { o.maxTapeSize = n }
}

// WithEOFPolicy sets the end-of-stream behavior for Input instructions.
func WithEOFPolicy(p rt.EOFPolicy) Option {
	return func(o *options) { o.eofPolicy = p }
}

// WithInput sets the interpreted program's input stream.
func WithInput(r io.Reader) Option {
	return func(o *options) { o.input = r }
}

// WithOutput sets the interpreted program's output stream.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithDebugOutput sets the stream Debug instructions dump to.
func WithDebugOutput(w io.Writer) Option {
	return func(o *options) { o.debug = w }
}

// WithLogger sets the logger the compiler driver reports to.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTarget overrides the default amd64 backend.
func WithTarget(t backend.Target) Option {
	return func(o *options) { o.target = t }
}

func collect(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Run parses and interprets source.
func Run(source string, opts ...Option) error {
	o := collect(opts)
	program, err := parser.Parse(source)
	if err != nil {
		return err
	}
	var interpOpts []interp.Option
	if o.maxTapeSize != 0 {
		interpOpts = append(interpOpts, interp.WithMaxTapeSize(o.maxTapeSize))
	}
	interpOpts = append(interpOpts, interp.WithEOFPolicy(o.eofPolicy))
	if o.input != nil {
		interpOpts = append(interpOpts, interp.WithInput(o.input))
	}
	if o.output != nil {
		interpOpts = append(interpOpts, interp.WithOutput(o.output))
	}
	if o.debug != nil {
		interpOpts = append(interpOpts, interp.WithDebugOutput(o.debug))
	}
	return interp.New(interpOpts...).Run(program)
}

// Build parses and compiles source, writing a relocatable object file to
// outputPath.
func Build(source, outputPath string, opts ...Option) error {
	o := collect(opts)
	program, err := parser.Parse(source)
	if err != nil {
		return err
	}
	c, err := compiler.New(&compiler.Config{
		MaxTapeSize: o.maxTapeSize,
		EOFPolicy:   o.eofPolicy,
		Logger:      o.logger,
	})
	if err != nil {
		return err
	}
	target := o.target
	if target == nil {
		target = amd64.New()
	}
	return c.Compile(program, target, outputPath)
}
