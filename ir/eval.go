package ir

import "fmt"

// Evaluator executes a verified function directly, without going through a
// machine backend. It owns a small linear memory that stands in for the heap
// the compiled program would get from its allocator, and dispatches extern
// calls to caller-supplied Go functions. The compiler's tests use it to check
// that lowering preserves the interpreter's observable semantics.
type Evaluator struct {
	// Externs maps extern names to their implementations. Every extern the
	// function calls must be present.
	Externs map[string]func(args []int64) ([]int64, error)

	mem []byte
}

// NewEvaluator creates an Evaluator with an empty extern table.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		Externs: map[string]func(args []int64) ([]int64, error){},
		// Address 0 stays unused so a zero value is never a valid pointer.
		mem: make([]byte, 8),
	}
}

// Alloc reserves n zero-initialized bytes of evaluator memory and returns
// their base address.
func (e *Evaluator) Alloc(n int64) int64 {
	base := int64(len(e.mem))
	e.mem = append(e.mem, make([]byte, n)...)
	return base
}

// Mem returns the byte at the given address.
func (e *Evaluator) Mem(addr int64) (byte, error) {
	if addr < 0 || addr >= int64(len(e.mem)) {
		return 0, fmt.Errorf("memory access out of range: %d", addr)
	}
	return e.mem[addr], nil
}

// Run executes the function from its entry block and returns the values of
// the Return instruction that ends execution. The entry block must have no
// parameters.
func (e *Evaluator) Run(f *Func) ([]int64, error) {
	entry := f.Entry()
	if entry == BlockInvalid {
		return nil, fmt.Errorf("function %s has no entry block", f.Name)
	}
	if len(f.blocks[entry].params) != 0 {
		return nil, fmt.Errorf("entry block of %s has parameters", f.Name)
	}

	values := make([]int64, len(f.values))
	current := entry

	for {
		next := BlockInvalid
		for _, ins := range f.blocks[current].instrs {
			switch ins.Op {
			case OpIconst:
				values[ins.Results[0]] = ins.Imm

			case OpLoad8:
				b, err := e.Mem(values[ins.Args[0]])
				if err != nil {
					return nil, err
				}
				values[ins.Results[0]] = int64(b)

			case OpSload8:
				b, err := e.Mem(values[ins.Args[0]])
				if err != nil {
					return nil, err
				}
				values[ins.Results[0]] = int64(int8(b))

			case OpStore8:
				addr := values[ins.Args[1]]
				if addr < 0 || addr >= int64(len(e.mem)) {
					return nil, fmt.Errorf("memory access out of range: %d", addr)
				}
				e.mem[addr] = byte(values[ins.Args[0]])

			case OpIaddImm:
				values[ins.Results[0]] = wrap(values[ins.Args[0]]+ins.Imm, ins.Type)

			case OpIcmpEq:
				if values[ins.Args[0]] == values[ins.Args[1]] {
					values[ins.Results[0]] = 1
				} else {
					values[ins.Results[0]] = 0
				}

			case OpCall:
				ext := f.Externs[ins.Func]
				impl, ok := e.Externs[ext.Name]
				if !ok {
					return nil, fmt.Errorf("extern %q is not provided", ext.Name)
				}
				args := make([]int64, len(ins.Args))
				for i, a := range ins.Args {
					args[i] = values[a]
				}
				results, err := impl(args)
				if err != nil {
					return nil, fmt.Errorf("extern %q: %w", ext.Name, err)
				}
				if len(results) != len(ins.Results) {
					return nil, fmt.Errorf("extern %q returned %d values, want %d", ext.Name, len(results), len(ins.Results))
				}
				for i, r := range ins.Results {
					values[r] = results[i]
				}

			case OpJump:
				e.bindParams(f, ins.Then, ins.ThenArgs, values)
				next = ins.Then

			case OpBrif:
				if values[ins.Args[0]] != 0 {
					e.bindParams(f, ins.Then, ins.ThenArgs, values)
					next = ins.Then
				} else {
					e.bindParams(f, ins.Else, ins.ElseArgs, values)
					next = ins.Else
				}

			case OpReturn:
				results := make([]int64, len(ins.Args))
				for i, a := range ins.Args {
					results[i] = values[a]
				}
				return results, nil

			default:
				return nil, fmt.Errorf("unknown opcode %s", ins.Op)
			}
		}
		if next == BlockInvalid {
			return nil, fmt.Errorf("%s fell through without a terminator", current)
		}
		current = next
	}
}

// bindParams copies branch arguments into the target block's parameters.
// Arguments are all read before any parameter is written, so an edge may
// permute values that are both arguments and parameters.
func (e *Evaluator) bindParams(f *Func, target Block, args []Value, values []int64) {
	params := f.blocks[target].params
	tmp := make([]int64, len(args))
	for i, a := range args {
		tmp[i] = values[a]
	}
	for i, p := range params {
		values[p] = tmp[i]
	}
}

// wrap truncates x to the width of t, preserving two's-complement sign for
// i32 so comparisons against negative sentinels behave like the machine.
func wrap(x int64, t Type) int64 {
	switch t {
	case I8:
		return int64(uint8(x))
	case I32:
		return int64(int32(x))
	default:
		return x
	}
}
