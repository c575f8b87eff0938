// Package ast defines the abstract program representation shared by the
// interpreter and the compiler. A program is an ordered sequence of
// instructions; Loop is the only instruction with a body, and nesting depth
// is bounded only by source bracket nesting.
package ast

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Op identifies one of the eight instructions.
type Op uint8

const (
	Invalid Op = iota

	Increment // +
	Decrement // -
	MoveRight // >
	MoveLeft  // <
	Output    // .
	Input     // ,
	Debug     // #
	Loop      // [ ... ]
)

// String returns the source character for the op. Loop renders as "[".
func (op Op) String() string {
	switch op {
	case Increment:
		return "+"
	case Decrement:
		return "-"
	case MoveRight:
		return ">"
	case MoveLeft:
		return "<"
	case Output:
		return "."
	case Input:
		return ","
	case Debug:
		return "#"
	case Loop:
		return "["
	default:
		return "?"
	}
}

// Name returns the op's symbolic name, as used in JSON dumps.
func (op Op) Name() string {
	switch op {
	case Increment:
		return "increment"
	case Decrement:
		return "decrement"
	case MoveRight:
		return "move_right"
	case MoveLeft:
		return "move_left"
	case Output:
		return "output"
	case Input:
		return "input"
	case Debug:
		return "debug"
	case Loop:
		return "loop"
	default:
		return "invalid"
	}
}

// MarshalJSON renders the op as its symbolic name.
func (op Op) MarshalJSON() ([]byte, error) {
	return json.Marshal(op.Name())
}

// Instruction is one node of the program tree. Body is non-nil only for Loop
// instructions and never references anything outside its own subtree.
// Instructions are immutable once parsed.
type Instruction struct {
	Op   Op            `json:"op"`
	Body []Instruction `json:"body,omitempty"`
}

// String returns a source-equivalent rendering of the instruction.
func (ins Instruction) String() string {
	if ins.Op != Loop {
		return ins.Op.String()
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for _, nested := range ins.Body {
		sb.WriteString(nested.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// Program is an ordered sequence of top-level instructions. It is immutable
// after construction; engines consume it read-only.
type Program struct {
	Instructions []Instruction `json:"instructions"`
}

// String returns a source-equivalent rendering of the whole program, with
// comment bytes stripped.
func (p *Program) String() string {
	var sb strings.Builder
	for _, ins := range p.Instructions {
		sb.WriteString(ins.String())
	}
	return sb.String()
}

// GoString lets %#v produce something readable in test failures.
func (p *Program) GoString() string {
	return fmt.Sprintf("ast.Program(%q)", p.String())
}
