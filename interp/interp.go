// Package interp provides the tree-walking interpreter. It defines the
// reference semantics for program execution: a growable zero-initialized
// tape with amortized doubling, fatal bounds errors on either end, 8-bit
// wraparound arithmetic, and configurable end-of-stream behavior.
package interp

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/thymoze/brainlift/ast"
	"github.com/thymoze/brainlift/errz"
	"github.com/thymoze/brainlift/rt"
)

// Interpreter executes a program against a mutable tape. Each Run owns its
// tape exclusively; execution is single-threaded and fully synchronous.
type Interpreter struct {
	maxTapeSize int
	eofPolicy   rt.EOFPolicy
	input       io.ByteReader
	output      io.Writer
	debug       io.Writer

	tape   []byte
	cursor int
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithMaxTapeSize sets the maximum tape size in cells. Values below 1 are
// ignored in favor of the default.
func WithMaxTapeSize(n int) Option {
	return func(i *Interpreter) {
		if n >= 1 {
			i.maxTapeSize = n
		}
	}
}

// WithEOFPolicy sets the end-of-stream behavior for Input instructions.
func WithEOFPolicy(p rt.EOFPolicy) Option {
	return func(i *Interpreter) {
		i.eofPolicy = p
	}
}

// WithInput sets the program's input stream. Reads are buffered unless the
// reader already supports byte-at-a-time reads.
func WithInput(r io.Reader) Option {
	return func(i *Interpreter) {
		if br, ok := r.(io.ByteReader); ok {
			i.input = br
		} else {
			i.input = bufio.NewReader(r)
		}
	}
}

// WithOutput sets the program's output stream.
func WithOutput(w io.Writer) Option {
	return func(i *Interpreter) {
		i.output = w
	}
}

// WithDebugOutput sets the stream that Debug instructions dump to.
func WithDebugOutput(w io.Writer) Option {
	return func(i *Interpreter) {
		i.debug = w
	}
}

// New creates an Interpreter. By default it reads from stdin, writes to
// stdout, dumps debug state to stderr, uses a 30000-cell maximum tape and
// leaves the current cell unchanged on end-of-stream.
func New(options ...Option) *Interpreter {
	i := &Interpreter{
		maxTapeSize: rt.DefaultMaxTapeSize,
		eofPolicy:   rt.EOFIgnore,
		input:       bufio.NewReader(os.Stdin),
		output:      os.Stdout,
		debug:       os.Stderr,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// Run executes the program to completion. The tape starts as a single zeroed
// cell with the cursor on it. A bounds or I/O error halts execution
// immediately; no error kind is recoverable.
func (i *Interpreter) Run(program *ast.Program) error {
	i.tape = make([]byte, 1)
	i.cursor = 0
	for _, ins := range program.Instructions {
		if err := i.execute(ins); err != nil {
			return err
		}
	}
	return nil
}

func (i *Interpreter) execute(ins ast.Instruction) error {
	switch ins.Op {
	case ast.Increment:
		i.tape[i.cursor]++
		return nil
	case ast.Decrement:
		i.tape[i.cursor]--
		return nil
	case ast.MoveRight:
		return i.moveRight()
	case ast.MoveLeft:
		return i.moveLeft()
	case ast.Output:
		return i.writeByte()
	case ast.Input:
		return i.readByte()
	case ast.Debug:
		return i.dump()
	case ast.Loop:
		return i.loop(ins.Body)
	default:
		return errz.Newf(errz.ErrBackend, "unknown instruction %q", ins.Op)
	}
}

func (i *Interpreter) moveRight() error {
	next := i.cursor + 1
	if next >= i.maxTapeSize {
		return errz.Newf(errz.ErrBounds, "cursor moved right past the maximum tape size (%d)", i.maxTapeSize)
	}
	// Grow by doubling when stepping off the last allocated cell. New cells
	// are zeroed and the tape never shrinks.
	if i.cursor == len(i.tape)-1 && len(i.tape) < i.maxTapeSize {
		newSize := min(i.maxTapeSize, 2*len(i.tape))
		i.tape = append(i.tape, make([]byte, newSize-len(i.tape))...)
	}
	i.cursor = next
	return nil
}

func (i *Interpreter) moveLeft() error {
	if i.cursor == 0 {
		return errz.New(errz.ErrBounds, "cursor moved left past the start of the tape")
	}
	i.cursor--
	return nil
}

func (i *Interpreter) writeByte() error {
	// The compiled path sign-extends the cell and hands it to putchar, which
	// truncates back to one byte. Both paths emit the same byte.
	if _, err := i.output.Write([]byte{i.tape[i.cursor]}); err != nil {
		return errz.New(errz.ErrIO, "failed to write output").WithCause(err)
	}
	return nil
}

func (i *Interpreter) readByte() error {
	b, err := i.input.ReadByte()
	if err == io.EOF {
		if i.eofPolicy == rt.EOFZero {
			i.tape[i.cursor] = 0
		}
		return nil
	}
	if err != nil {
		return errz.New(errz.ErrIO, "failed to read input").WithCause(err)
	}
	i.tape[i.cursor] = b
	return nil
}

func (i *Interpreter) dump() error {
	if _, err := fmt.Fprintf(i.debug, "cursor=%d tape=%v\n", i.cursor, i.tape); err != nil {
		return errz.New(errz.ErrIO, "failed to write debug dump").WithCause(err)
	}
	return nil
}

func (i *Interpreter) loop(body []ast.Instruction) error {
	for i.tape[i.cursor] != 0 {
		for _, ins := range body {
			if err := i.execute(ins); err != nil {
				return err
			}
		}
	}
	return nil
}
