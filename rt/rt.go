// Package rt defines the runtime-support contract shared by the interpreter
// and the compiled path: the symbols a compiled program imports, the entry
// symbol it exports, the end-of-stream sentinel, and the end-of-stream policy.
//
// Any environment that links the four imported symbols against functions with
// the documented shapes is a valid runtime for a compiled program. No engine
// depends on how they are implemented.
package rt

// Symbol names linked against a compiled object. Getchar and Putchar exchange
// single bytes widened to int32; Calloc must return zero-initialized memory.
const (
	SymbolEntry   = "main"
	SymbolGetchar = "getchar"
	SymbolPutchar = "putchar"
	SymbolCalloc  = "calloc"
	SymbolFree    = "free"
)

// EOF is the value Getchar returns when the input stream has no more data.
const EOF int32 = -1

// DefaultMaxTapeSize is the tape size used when the caller does not configure
// one. Matches the conventional 30000-cell Brainfuck tape.
const DefaultMaxTapeSize = 30000

// EOFPolicy selects what an Input instruction does with the current cell when
// the input stream is exhausted.
type EOFPolicy int

const (
	// EOFIgnore leaves the current cell unchanged.
	EOFIgnore EOFPolicy = iota
	// EOFZero sets the current cell to 0.
	EOFZero
)

// String returns the policy name as accepted on the command line.
func (p EOFPolicy) String() string {
	switch p {
	case EOFIgnore:
		return "ignore"
	case EOFZero:
		return "zero"
	default:
		return "invalid"
	}
}
