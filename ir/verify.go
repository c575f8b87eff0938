package ir

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Verify checks the structural integrity of a constructed function and
// returns every violation it finds, aggregated. A non-nil result means the
// builder produced a defective graph; it is never a user-facing error.
func Verify(f *Func) error {
	var result *multierror.Error

	if len(f.blocks) == 0 {
		result = multierror.Append(result, fmt.Errorf("function %s has no blocks", f.Name))
		return result.ErrorOrNil()
	}

	edges := make(map[Block][]Block)

	for i, blk := range f.blocks {
		b := Block(i)
		if !blk.sealed {
			result = multierror.Append(result, fmt.Errorf("%s is not sealed", b))
		}
		if len(blk.instrs) == 0 {
			result = multierror.Append(result, fmt.Errorf("%s is empty", b))
			continue
		}
		for j, ins := range blk.instrs {
			last := j == len(blk.instrs)-1
			if ins.Op.IsTerminator() != last {
				if last {
					result = multierror.Append(result, fmt.Errorf("%s does not end with a terminator", b))
				} else {
					result = multierror.Append(result, fmt.Errorf("%s has a terminator before its last instruction", b))
				}
			}
			switch ins.Op {
			case OpJump:
				result = verifyEdge(result, f, b, ins.Then, ins.ThenArgs)
				edges[ins.Then] = append(edges[ins.Then], b)
			case OpBrif:
				result = verifyEdge(result, f, b, ins.Then, ins.ThenArgs)
				result = verifyEdge(result, f, b, ins.Else, ins.ElseArgs)
				edges[ins.Then] = append(edges[ins.Then], b)
				edges[ins.Else] = append(edges[ins.Else], b)
			case OpReturn:
				if len(ins.Args) != len(f.Results) {
					result = multierror.Append(result, fmt.Errorf(
						"%s returns %d values, function %s declares %d", b, len(ins.Args), f.Name, len(f.Results)))
				}
			case OpCall:
				if int(ins.Func) >= len(f.Externs) {
					result = multierror.Append(result, fmt.Errorf("%s calls undeclared extern %d", b, ins.Func))
				}
			}
		}
	}

	// Recorded predecessor sets must agree with the actual edges.
	for i, blk := range f.blocks {
		b := Block(i)
		if len(blk.preds) != len(edges[b]) {
			result = multierror.Append(result, fmt.Errorf(
				"%s records %d predecessors but has %d incoming edges", b, len(blk.preds), len(edges[b])))
		}
	}

	return result.ErrorOrNil()
}

func verifyEdge(result *multierror.Error, f *Func, from, to Block, args []Value) *multierror.Error {
	if int(to) < 0 || int(to) >= len(f.blocks) {
		return multierror.Append(result, fmt.Errorf("%s jumps to nonexistent block %d", from, to))
	}
	params := f.blocks[to].params
	if len(args) != len(params) {
		return multierror.Append(result, fmt.Errorf(
			"%s passes %d arguments to %s, which has %d parameters", from, len(args), to, len(params)))
	}
	for i := range args {
		if f.values[args[i]].typ != f.values[params[i]].typ {
			result = multierror.Append(result, fmt.Errorf(
				"%s passes %s %s for parameter %s %s of %s",
				from, f.values[args[i]].typ, args[i], f.values[params[i]].typ, params[i], to))
		}
	}
	return result
}
