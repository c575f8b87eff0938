package ir

import "fmt"

// Builder appends blocks and instructions to a function. Construction
// mistakes (emitting past a terminator, jumping to an already-sealed block,
// branch argument arity mismatches) are builder defects and panic; Verify
// catches anything left structurally incomplete.
type Builder struct {
	fn      *Func
	current Block
}

// NewBuilder creates a Builder for the given function.
func NewBuilder(fn *Func) *Builder {
	return &Builder{fn: fn, current: BlockInvalid}
}

// Func returns the function under construction.
func (b *Builder) Func() *Func {
	return b.fn
}

// CreateBlock creates a new, pending block. The first block created is the
// function's entry block.
func (b *Builder) CreateBlock() Block {
	b.fn.blocks = append(b.fn.blocks, &blockData{})
	return Block(len(b.fn.blocks) - 1)
}

// AppendBlockParam adds a parameter of the given type to a block and returns
// the value it binds inside the block.
func (b *Builder) AppendBlockParam(blk Block, t Type) Value {
	v := b.newValue(t)
	data := b.fn.blocks[blk]
	data.params = append(data.params, v)
	return v
}

// BlockParams returns the parameter values of a block.
func (b *Builder) BlockParams(blk Block) []Value {
	return b.fn.blocks[blk].params
}

// SwitchToBlock makes blk the insertion point for subsequent instructions.
func (b *Builder) SwitchToBlock(blk Block) {
	b.current = blk
}

// CurrentBlock returns the current insertion block.
func (b *Builder) CurrentBlock() Block {
	return b.current
}

// SealBlock declares that all predecessors of blk are known. Jumping to a
// sealed block afterwards is a defect.
func (b *Builder) SealBlock(blk Block) {
	data := b.fn.blocks[blk]
	if data.sealed {
		panic(fmt.Sprintf("ir: %s sealed twice", blk))
	}
	data.sealed = true
}

func (b *Builder) newValue(t Type) Value {
	b.fn.values = append(b.fn.values, valueData{typ: t})
	return Value(len(b.fn.values) - 1)
}

func (b *Builder) emit(ins Instr) {
	if b.current == BlockInvalid {
		panic("ir: no current block")
	}
	data := b.fn.blocks[b.current]
	if data.terminated {
		panic(fmt.Sprintf("ir: instruction after terminator in %s", b.current))
	}
	if ins.Op.IsTerminator() {
		data.terminated = true
	}
	data.instrs = append(data.instrs, ins)
}

// addPred records an incoming edge, panicking if the target was sealed.
func (b *Builder) addPred(target Block) {
	data := b.fn.blocks[target]
	if data.sealed {
		panic(fmt.Sprintf("ir: jump to sealed %s from %s", target, b.current))
	}
	data.preds = append(data.preds, b.current)
}

func (b *Builder) checkBranchArgs(target Block, args []Value) {
	params := b.fn.blocks[target].params
	if len(args) != len(params) {
		panic(fmt.Sprintf("ir: %s expects %d arguments, got %d", target, len(params), len(args)))
	}
}

// Iconst emits an integer constant of the given type.
func (b *Builder) Iconst(t Type, imm int64) Value {
	v := b.newValue(t)
	b.emit(Instr{Op: OpIconst, Type: t, Imm: imm, Results: []Value{v}})
	return v
}

// Load8 emits a byte load from [ptr], zero-extended to t.
func (b *Builder) Load8(t Type, ptr Value) Value {
	v := b.newValue(t)
	b.emit(Instr{Op: OpLoad8, Type: t, Args: []Value{ptr}, Results: []Value{v}})
	return v
}

// Sload8 emits a byte load from [ptr], sign-extended to t.
func (b *Builder) Sload8(t Type, ptr Value) Value {
	v := b.newValue(t)
	b.emit(Instr{Op: OpSload8, Type: t, Args: []Value{ptr}, Results: []Value{v}})
	return v
}

// Store8 emits a store of the low byte of val to [ptr].
func (b *Builder) Store8(val, ptr Value) {
	b.emit(Instr{Op: OpStore8, Args: []Value{val, ptr}})
}

// IaddImm emits val + imm, wrapping at the width of val's type.
func (b *Builder) IaddImm(val Value, imm int64) Value {
	t := b.fn.values[val].typ
	v := b.newValue(t)
	b.emit(Instr{Op: OpIaddImm, Type: t, Imm: imm, Args: []Value{val}, Results: []Value{v}})
	return v
}

// IcmpEq emits an equality comparison producing 1 or 0 as an i8.
func (b *Builder) IcmpEq(x, y Value) Value {
	v := b.newValue(I8)
	b.emit(Instr{Op: OpIcmpEq, Type: I8, Args: []Value{x, y}, Results: []Value{v}})
	return v
}

// Call emits a call to a declared extern and returns its result values.
func (b *Builder) Call(ref FuncRef, args ...Value) []Value {
	ext := b.fn.Externs[ref]
	if len(args) != len(ext.Params) {
		panic(fmt.Sprintf("ir: call to %s expects %d arguments, got %d", ext.Name, len(ext.Params), len(args)))
	}
	results := make([]Value, len(ext.Results))
	for i, t := range ext.Results {
		results[i] = b.newValue(t)
	}
	b.emit(Instr{Op: OpCall, Func: ref, Args: args, Results: results})
	return results
}

// Jump emits an unconditional jump carrying one argument per parameter of the
// target block.
func (b *Builder) Jump(target Block, args ...Value) {
	b.checkBranchArgs(target, args)
	b.addPred(target)
	b.emit(Instr{Op: OpJump, Then: target, ThenArgs: args})
}

// Brif branches to then (with thenArgs) when cond is nonzero, and to els
// (with elseArgs) otherwise.
func (b *Builder) Brif(cond Value, then Block, thenArgs []Value, els Block, elseArgs []Value) {
	b.checkBranchArgs(then, thenArgs)
	b.checkBranchArgs(els, elseArgs)
	b.addPred(then)
	b.addPred(els)
	b.emit(Instr{Op: OpBrif, Args: []Value{cond}, Then: then, ThenArgs: thenArgs, Else: els, ElseArgs: elseArgs})
}

// Return emits a return of the given values.
func (b *Builder) Return(args ...Value) {
	if len(args) != len(b.fn.Results) {
		panic(fmt.Sprintf("ir: function %s returns %d values, got %d", b.fn.Name, len(b.fn.Results), len(args)))
	}
	b.emit(Instr{Op: OpReturn, Args: args})
}
