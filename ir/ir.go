// Package ir defines a block-structured intermediate representation used by
// the compiler. There are no free-standing mutable registers: any state that
// must survive a control-flow edge is passed as a block parameter, and every
// jump supplies an argument for each parameter of its target. Join points
// merge divergent values back into a single parameter.
//
// Blocks follow a pending/sealed discipline. A block may be targeted by jumps
// that are emitted after the block was created, so its predecessor set stays
// open ("pending") until SealBlock declares it complete. The verifier rejects
// any function that still contains unsealed or unterminated blocks; such a
// function is a builder defect, never a user-facing error.
package ir

import (
	"fmt"
	"strings"
)

// Type is the type of an IR value.
type Type uint8

const (
	// TypeInvalid is the zero Type and marks an absent value.
	TypeInvalid Type = iota
	// I8 is an 8-bit integer.
	I8
	// I32 is a 32-bit integer.
	I32
	// I64 is a 64-bit integer, also used for pointers.
	I64
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case I8:
		return "i8"
	case I32:
		return "i32"
	case I64:
		return "i64"
	default:
		return "invalid"
	}
}

// Bits returns the width of the type in bits.
func (t Type) Bits() int {
	switch t {
	case I8:
		return 8
	case I32:
		return 32
	case I64:
		return 64
	default:
		return 0
	}
}

// Value is a handle to an SSA value: either a block parameter or an
// instruction result.
type Value int32

// ValueInvalid marks an absent value.
const ValueInvalid Value = -1

func (v Value) String() string {
	return fmt.Sprintf("v%d", int32(v))
}

// Block is a handle to a basic block.
type Block int32

// BlockInvalid marks an absent block.
const BlockInvalid Block = -1

func (b Block) String() string {
	return fmt.Sprintf("block%d", int32(b))
}

// FuncRef is a handle to a declared external function.
type FuncRef int32

// Extern describes a function the emitted object imports and calls. At most
// one result is supported.
type Extern struct {
	Name    string
	Params  []Type
	Results []Type
}

// Opcode identifies an IR instruction.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	OpIconst  // Results[0] = Imm, typed Type
	OpLoad8   // Results[0] = zero-extended byte at [Args[0]]
	OpSload8  // Results[0] = sign-extended byte at [Args[0]]
	OpStore8  // store low byte of Args[0] at [Args[1]]
	OpIaddImm // Results[0] = Args[0] + Imm, wrapping at the width of Type
	OpIcmpEq  // Results[0] = 1 if Args[0] == Args[1] else 0 (i8)
	OpCall    // call Func with Args, results in Results
	OpJump    // jump to Then with ThenArgs
	OpBrif    // if Args[0] != 0 jump Then(ThenArgs) else Else(ElseArgs)
	OpReturn  // return Args
)

func (op Opcode) String() string {
	switch op {
	case OpIconst:
		return "iconst"
	case OpLoad8:
		return "load8"
	case OpSload8:
		return "sload8"
	case OpStore8:
		return "store8"
	case OpIaddImm:
		return "iadd_imm"
	case OpIcmpEq:
		return "icmp_eq"
	case OpCall:
		return "call"
	case OpJump:
		return "jump"
	case OpBrif:
		return "brif"
	case OpReturn:
		return "return"
	default:
		return "invalid"
	}
}

// IsTerminator reports whether the opcode ends a block.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpJump, OpBrif, OpReturn:
		return true
	}
	return false
}

// Instr is a single IR instruction. Which fields are meaningful depends on
// the opcode; see the Opcode constants.
type Instr struct {
	Op       Opcode
	Type     Type
	Imm      int64
	Args     []Value
	Results  []Value
	Func     FuncRef
	Then     Block
	Else     Block
	ThenArgs []Value
	ElseArgs []Value
}

type blockData struct {
	params     []Value
	instrs     []Instr
	preds      []Block
	sealed     bool
	terminated bool
}

type valueData struct {
	typ Type
}

// Func is one function under construction or ready for a backend: a name, a
// signature, a table of referenced externals, and a graph of blocks. The
// first created block is the entry block.
type Func struct {
	Name    string
	Results []Type
	Externs []Extern

	blocks []*blockData
	values []valueData
}

// NewFunc creates an empty function with the given name and result types.
func NewFunc(name string, results ...Type) *Func {
	return &Func{Name: name, Results: results}
}

// DeclareExtern registers an external function and returns a reference that
// Call instructions use. Externs with more than one result are not supported.
func (f *Func) DeclareExtern(name string, params []Type, results []Type) FuncRef {
	if len(results) > 1 {
		panic(fmt.Sprintf("ir: extern %q declares %d results, at most 1 supported", name, len(results)))
	}
	f.Externs = append(f.Externs, Extern{Name: name, Params: params, Results: results})
	return FuncRef(len(f.Externs) - 1)
}

// Entry returns the entry block.
func (f *Func) Entry() Block {
	if len(f.blocks) == 0 {
		return BlockInvalid
	}
	return Block(0)
}

// NumBlocks returns the number of blocks in the function.
func (f *Func) NumBlocks() int {
	return len(f.blocks)
}

// NumValues returns the number of distinct SSA values in the function.
func (f *Func) NumValues() int {
	return len(f.values)
}

// BlockParams returns the parameter values of a block.
func (f *Func) BlockParams(b Block) []Value {
	return f.blocks[b].params
}

// BlockInstrs returns the instructions of a block in order.
func (f *Func) BlockInstrs(b Block) []Instr {
	return f.blocks[b].instrs
}

// Preds returns the recorded predecessors of a block.
func (f *Func) Preds(b Block) []Block {
	return f.blocks[b].preds
}

// IsSealed reports whether the block's predecessor set has been closed.
func (f *Func) IsSealed(b Block) bool {
	return f.blocks[b].sealed
}

// ValueType returns the type of a value.
func (f *Func) ValueType(v Value) Type {
	return f.values[v].typ
}

// String renders the function in a readable text form, one block per
// paragraph.
func (f *Func) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "function %s(", f.Name)
	sb.WriteString(") -> ")
	for i, t := range f.Results {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(t.String())
	}
	sb.WriteString(" {\n")
	for i, blk := range f.blocks {
		fmt.Fprintf(&sb, "%s", Block(i))
		if len(blk.params) > 0 {
			sb.WriteByte('(')
			for j, p := range blk.params {
				if j > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(&sb, "%s: %s", p, f.values[p].typ)
			}
			sb.WriteByte(')')
		}
		sb.WriteString(":\n")
		for _, ins := range blk.instrs {
			sb.WriteString("  ")
			sb.WriteString(f.formatInstr(ins))
			sb.WriteByte('\n')
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (f *Func) formatInstr(ins Instr) string {
	var sb strings.Builder
	if len(ins.Results) > 0 {
		for i, r := range ins.Results {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(r.String())
		}
		sb.WriteString(" = ")
	}
	switch ins.Op {
	case OpIconst:
		fmt.Fprintf(&sb, "iconst.%s %d", ins.Type, ins.Imm)
	case OpLoad8, OpSload8:
		fmt.Fprintf(&sb, "%s.%s %s", ins.Op, ins.Type, ins.Args[0])
	case OpStore8:
		fmt.Fprintf(&sb, "store8 %s, %s", ins.Args[0], ins.Args[1])
	case OpIaddImm:
		fmt.Fprintf(&sb, "iadd_imm.%s %s, %d", ins.Type, ins.Args[0], ins.Imm)
	case OpIcmpEq:
		fmt.Fprintf(&sb, "icmp_eq %s, %s", ins.Args[0], ins.Args[1])
	case OpCall:
		fmt.Fprintf(&sb, "call %s(%s)", f.Externs[ins.Func].Name, formatValues(ins.Args))
	case OpJump:
		fmt.Fprintf(&sb, "jump %s(%s)", ins.Then, formatValues(ins.ThenArgs))
	case OpBrif:
		fmt.Fprintf(&sb, "brif %s, %s(%s), %s(%s)",
			ins.Args[0], ins.Then, formatValues(ins.ThenArgs), ins.Else, formatValues(ins.ElseArgs))
	case OpReturn:
		fmt.Fprintf(&sb, "return %s", formatValues(ins.Args))
	default:
		sb.WriteString(ins.Op.String())
	}
	return sb.String()
}

func formatValues(values []Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
