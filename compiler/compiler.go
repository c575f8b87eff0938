// Package compiler lowers the abstract program tree into the block-structured
// intermediate representation and drives object emission.
//
// # Threading the cursor
//
// The IR forbids mutable state across block boundaries, so the tape cursor is
// not a variable: it is a value the emitter carries, passed as a block
// parameter on every block entry and supplied as a jump argument on every
// edge. Wherever control flow forks (a loop test, the end-of-stream branch of
// an Input), each path carries its own cursor value and the join block merges
// them back into a single parameter.
//
// # Divergence from the interpreter
//
// The compiled path allocates the full tape (max size, zero-initialized) once
// at entry and emits no bounds checks on cursor movement. The interpreter's
// dynamic growth and bounds faults have no compiled equivalent; a program
// that would fault in the interpreter has undefined behavior at run time when
// compiled. Debug instructions lower to nothing. Both differences are
// deliberate and load-bearing; see DESIGN.md.
package compiler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/thymoze/brainlift/ast"
	"github.com/thymoze/brainlift/errz"
	"github.com/thymoze/brainlift/ir"
	"github.com/thymoze/brainlift/rt"
)

// Config holds compiler configuration.
type Config struct {
	// MaxTapeSize is the number of tape cells the compiled program allocates
	// at entry. Defaults to rt.DefaultMaxTapeSize; must be at least 1.
	MaxTapeSize int

	// EOFPolicy selects the end-of-stream behavior compiled into Input
	// instructions.
	EOFPolicy rt.EOFPolicy

	// Logger receives one event per emitted object. Nil disables logging.
	Logger *zerolog.Logger
}

// Compiler lowers programs and emits objects. Each Compile call owns its own
// IR construction context; a Compiler is cheap and may be reused.
type Compiler struct {
	maxTapeSize int
	eofPolicy   rt.EOFPolicy
	logger      zerolog.Logger
}

// New creates a Compiler. Pass nil for cfg to use defaults.
func New(cfg *Config) (*Compiler, error) {
	c := &Compiler{
		maxTapeSize: rt.DefaultMaxTapeSize,
		eofPolicy:   rt.EOFIgnore,
		logger:      zerolog.Nop(),
	}
	if cfg != nil {
		if cfg.MaxTapeSize != 0 {
			if cfg.MaxTapeSize < 1 {
				return nil, fmt.Errorf("max tape size must be at least 1, got %d", cfg.MaxTapeSize)
			}
			c.maxTapeSize = cfg.MaxTapeSize
		}
		c.eofPolicy = cfg.EOFPolicy
		if cfg.Logger != nil {
			c.logger = *cfg.Logger
		}
	}
	return c, nil
}

// Lower translates a program into the entry function: allocate the tape,
// thread the base address through the lowered instruction sequence as the
// initial cursor, free the original base, return status 0. Lowering cannot
// fail on a well-formed program; a verifier failure indicates a builder
// defect and surfaces as a backend error.
func (c *Compiler) Lower(program *ast.Program) (*ir.Func, error) {
	fn := ir.NewFunc(rt.SymbolEntry, ir.I32)

	calloc := fn.DeclareExtern(rt.SymbolCalloc, []ir.Type{ir.I64, ir.I64}, []ir.Type{ir.I64})
	free := fn.DeclareExtern(rt.SymbolFree, []ir.Type{ir.I64}, nil)
	getchar := fn.DeclareExtern(rt.SymbolGetchar, nil, []ir.Type{ir.I32})
	putchar := fn.DeclareExtern(rt.SymbolPutchar, []ir.Type{ir.I32}, []ir.Type{ir.I32})

	b := ir.NewBuilder(fn)
	entry := b.CreateBlock()
	b.SwitchToBlock(entry)
	b.SealBlock(entry)

	cells := b.Iconst(ir.I64, int64(c.maxTapeSize))
	cellSize := b.Iconst(ir.I64, 1)
	base := b.Call(calloc, cells, cellSize)[0]

	e := &emitter{
		b:         b,
		getchar:   getchar,
		putchar:   putchar,
		eofPolicy: c.eofPolicy,
		cursor:    base,
	}
	for _, ins := range program.Instructions {
		e.emit(ins)
	}

	// The deallocator gets the original allocation base, never the threaded
	// cursor, which may have advanced.
	b.Call(free, base)
	status := b.Iconst(ir.I32, 0)
	b.Return(status)

	if err := ir.Verify(fn); err != nil {
		return nil, errz.New(errz.ErrBackend, "lowering produced an inconsistent function").WithCause(err)
	}
	return fn, nil
}

// emitter holds the per-lowering state: the builder and the current cursor
// value within the block being filled.
type emitter struct {
	b         *ir.Builder
	getchar   ir.FuncRef
	putchar   ir.FuncRef
	eofPolicy rt.EOFPolicy
	cursor    ir.Value
}

func (e *emitter) emit(ins ast.Instruction) {
	switch ins.Op {
	case ast.Debug:
		// No compiled equivalent; the interpreter performs the dump.
	case ast.Increment:
		e.addToCell(1)
	case ast.Decrement:
		e.addToCell(-1)
	case ast.MoveRight:
		e.cursor = e.b.IaddImm(e.cursor, 1)
	case ast.MoveLeft:
		e.cursor = e.b.IaddImm(e.cursor, -1)
	case ast.Output:
		val := e.b.Sload8(ir.I32, e.cursor)
		e.b.Call(e.putchar, val)
	case ast.Input:
		e.emitInput()
	case ast.Loop:
		e.emitLoop(ins.Body)
	}
}

func (e *emitter) addToCell(delta int64) {
	val := e.b.Load8(ir.I8, e.cursor)
	next := e.b.IaddImm(val, delta)
	e.b.Store8(next, e.cursor)
}

// emitInput produces the canonical three-block fork: the read branches on the
// end-of-stream sentinel into a store path and an eof path, which merge at an
// exit block with a single cursor parameter.
func (e *emitter) emitInput() {
	b := e.b
	val := b.Call(e.getchar)[0]

	eofBlock := b.CreateBlock()
	eofCursor := b.AppendBlockParam(eofBlock, ir.I64)
	storeBlock := b.CreateBlock()
	storeCursor := b.AppendBlockParam(storeBlock, ir.I64)
	storeVal := b.AppendBlockParam(storeBlock, ir.I32)

	sentinel := b.Iconst(ir.I32, int64(rt.EOF))
	isEOF := b.IcmpEq(val, sentinel)
	b.Brif(isEOF, eofBlock, []ir.Value{e.cursor}, storeBlock, []ir.Value{e.cursor, val})

	b.SealBlock(eofBlock)
	b.SwitchToBlock(eofBlock)

	exitBlock := b.CreateBlock()
	exitCursor := b.AppendBlockParam(exitBlock, ir.I64)

	switch e.eofPolicy {
	case rt.EOFZero:
		// Redirect into the store path with a literal 0.
		zero := b.Iconst(ir.I32, 0)
		b.Jump(storeBlock, eofCursor, zero)
	default:
		// Ignore: the cell is left untouched.
		b.Jump(exitBlock, eofCursor)
	}

	b.SealBlock(storeBlock)
	b.SwitchToBlock(storeBlock)
	b.Store8(storeVal, storeCursor)
	b.Jump(exitBlock, storeCursor)

	b.SealBlock(exitBlock)
	b.SwitchToBlock(exitBlock)
	e.cursor = exitCursor
}

// emitLoop produces the test/body/exit triangle. The test block is the sole
// merge point: it stays pending until the body's trailing back-edge is
// emitted, and only then is its predecessor set closed.
func (e *emitter) emitLoop(body []ast.Instruction) {
	b := e.b

	test := b.CreateBlock()
	testCursor := b.AppendBlockParam(test, ir.I64)
	b.Jump(test, e.cursor)
	b.SwitchToBlock(test)

	bodyBlock := b.CreateBlock()
	bodyCursor := b.AppendBlockParam(bodyBlock, ir.I64)
	exitBlock := b.CreateBlock()
	exitCursor := b.AppendBlockParam(exitBlock, ir.I64)

	val := b.Load8(ir.I8, testCursor)
	b.Brif(val, bodyBlock, []ir.Value{testCursor}, exitBlock, []ir.Value{testCursor})
	b.SealBlock(bodyBlock)
	b.SealBlock(exitBlock)

	b.SwitchToBlock(bodyBlock)
	e.cursor = bodyCursor
	for _, ins := range body {
		e.emit(ins)
	}
	b.Jump(test, e.cursor)
	b.SealBlock(test)

	b.SwitchToBlock(exitBlock)
	e.cursor = exitCursor
}
