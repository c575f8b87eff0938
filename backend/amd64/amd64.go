// Package amd64 emits x86-64 System V machine code from the intermediate
// representation and packages it as a relocatable ELF64 object.
//
// Code generation is deliberately naive: every IR value lives in an 8-byte
// stack slot addressed off rbp, jumps copy their branch arguments into the
// target block's parameter slots, and calls go through rel32 call sites that
// carry PLT32 relocations against the imported symbols. No register
// allocation, no peephole work; correctness over cleverness.
package amd64

import (
	"encoding/binary"
	"fmt"

	"github.com/thymoze/brainlift/ir"
)

// Target implements backend.Target for x86-64 Linux-style objects.
type Target struct{}

// New creates the amd64 target.
func New() *Target {
	return &Target{}
}

// Name identifies the target.
func (t *Target) Name() string {
	return "amd64"
}

// Object lowers the function to machine code and wraps it in an ELF64
// relocatable object. The function is re-verified first; emitting from an
// inconsistent graph is a defect.
func (t *Target) Object(fn *ir.Func) ([]byte, error) {
	if err := ir.Verify(fn); err != nil {
		return nil, fmt.Errorf("refusing to emit from an unverified function: %w", err)
	}
	a := &assembler{
		fn:           fn,
		blockOffsets: make(map[ir.Block]int),
	}
	text, relocs, err := a.assemble()
	if err != nil {
		return nil, err
	}
	imports := make([]string, len(fn.Externs))
	for i, ext := range fn.Externs {
		imports[i] = ext.Name
	}
	return writeObject(fn.Name, text, imports, relocs)
}

// System V integer argument registers, in order.
var argRegs = []reg{rdi, rsi, rdx, rcx, r8, r9}

type reg uint8

const (
	rax reg = 0
	rcx reg = 1
	rdx reg = 2
	rsp reg = 4
	rbp reg = 5
	rsi reg = 6
	rdi reg = 7
	r8  reg = 8
	r9  reg = 9
)

// jumpFixup is a rel32 branch site awaiting its target block's offset.
type jumpFixup struct {
	at     int // offset of the rel32 field
	target ir.Block
}

type assembler struct {
	fn           *ir.Func
	buf          []byte
	blockOffsets map[ir.Block]int
	fixups       []jumpFixup
	relocs       []reloc
}

// slotDisp returns the rbp-relative displacement of a value's stack slot.
func slotDisp(v ir.Value) int32 {
	return -8 * (int32(v) + 1)
}

func (a *assembler) assemble() ([]byte, []reloc, error) {
	// Prologue. The frame holds one 8-byte slot per IR value, padded so rsp
	// stays 16-byte aligned at every call site.
	frame := 8 * a.fn.NumValues()
	if frame%16 != 0 {
		frame += 16 - frame%16
	}
	a.emit(0x55)             // push rbp
	a.emit(0x48, 0x89, 0xe5) // mov rbp, rsp
	if frame > 0 {
		a.emit(0x48, 0x81, 0xec) // sub rsp, imm32
		a.emit32(uint32(frame))
	}

	for i := 0; i < a.fn.NumBlocks(); i++ {
		blk := ir.Block(i)
		a.blockOffsets[blk] = len(a.buf)
		for _, ins := range a.fn.BlockInstrs(blk) {
			if err := a.instr(ins); err != nil {
				return nil, nil, err
			}
		}
	}

	for _, fix := range a.fixups {
		off, ok := a.blockOffsets[fix.target]
		if !ok {
			return nil, nil, fmt.Errorf("unresolved jump to %s", fix.target)
		}
		binary.LittleEndian.PutUint32(a.buf[fix.at:], uint32(off-(fix.at+4)))
	}
	return a.buf, a.relocs, nil
}

func (a *assembler) instr(ins ir.Instr) error {
	switch ins.Op {
	case ir.OpIconst:
		a.emit(0x48, 0xb8) // mov rax, imm64
		a.emit64(uint64(ins.Imm))
		a.storeSlot(ins.Results[0], rax)

	case ir.OpLoad8:
		a.loadSlot(rax, ins.Args[0])
		a.emit(0x0f, 0xb6, 0x00) // movzx eax, byte [rax]
		a.storeSlot(ins.Results[0], rax)

	case ir.OpSload8:
		a.loadSlot(rax, ins.Args[0])
		a.emit(0x48, 0x0f, 0xbe, 0x00) // movsx rax, byte [rax]
		a.storeSlot(ins.Results[0], rax)

	case ir.OpStore8:
		a.loadSlot(rax, ins.Args[0])
		a.loadSlot(rcx, ins.Args[1])
		a.emit(0x88, 0x01) // mov [rcx], al

	case ir.OpIaddImm:
		a.loadSlot(rax, ins.Args[0])
		a.emit(0x48, 0x81, 0xc0) // add rax, imm32 (sign-extended)
		a.emit32(uint32(int32(ins.Imm)))
		switch ins.Type {
		case ir.I8:
			a.emit(0x0f, 0xb6, 0xc0) // movzx eax, al
		case ir.I32:
			a.emit(0x48, 0x63, 0xc0) // movsxd rax, eax
		}
		a.storeSlot(ins.Results[0], rax)

	case ir.OpIcmpEq:
		a.loadSlot(rax, ins.Args[0])
		a.loadSlot(rcx, ins.Args[1])
		a.emit(0x48, 0x39, 0xc8) // cmp rax, rcx
		a.emit(0x0f, 0x94, 0xc0) // sete al
		a.emit(0x0f, 0xb6, 0xc0) // movzx eax, al
		a.storeSlot(ins.Results[0], rax)

	case ir.OpCall:
		if len(ins.Args) > len(argRegs) {
			return fmt.Errorf("call to %s passes %d arguments, at most %d supported",
				a.fn.Externs[ins.Func].Name, len(ins.Args), len(argRegs))
		}
		for i, arg := range ins.Args {
			a.loadSlot(argRegs[i], arg)
		}
		a.emit(0xe8) // call rel32
		a.relocs = append(a.relocs, reloc{
			offset: uint64(len(a.buf)),
			symbol: a.fn.Externs[ins.Func].Name,
		})
		a.emit32(0)
		if len(ins.Results) == 1 {
			// The ABI leaves the bits above a sub-64-bit return value
			// unspecified. Normalize to the declared type before storing so
			// full-width slot compares see the real value.
			switch a.fn.ValueType(ins.Results[0]) {
			case ir.I8:
				a.emit(0x0f, 0xb6, 0xc0) // movzx eax, al
			case ir.I32:
				a.emit(0x48, 0x63, 0xc0) // movsxd rax, eax
			}
			a.storeSlot(ins.Results[0], rax)
		}

	case ir.OpJump:
		a.copyBranchArgs(ins.Then, ins.ThenArgs)
		a.emit(0xe9) // jmp rel32
		a.branchTo(ins.Then)

	case ir.OpBrif:
		// Parameter slots of both targets are distinct fresh values, so the
		// copies cannot clobber each other's sources.
		a.copyBranchArgs(ins.Then, ins.ThenArgs)
		a.copyBranchArgs(ins.Else, ins.ElseArgs)
		a.loadSlot(rax, ins.Args[0])
		a.emit(0x48, 0x85, 0xc0) // test rax, rax
		a.emit(0x0f, 0x85)       // jnz rel32
		a.branchTo(ins.Then)
		a.emit(0xe9) // jmp rel32
		a.branchTo(ins.Else)

	case ir.OpReturn:
		if len(ins.Args) == 1 {
			a.loadSlot(rax, ins.Args[0])
		}
		a.emit(0xc9) // leave
		a.emit(0xc3) // ret

	default:
		return fmt.Errorf("unknown opcode %s", ins.Op)
	}
	return nil
}

// copyBranchArgs moves the jump arguments into the target block's parameter
// slots, realizing the block-parameter merge.
func (a *assembler) copyBranchArgs(target ir.Block, args []ir.Value) {
	params := a.fn.BlockParams(target)
	for i, arg := range args {
		a.loadSlot(rax, arg)
		a.storeSlot(params[i], rax)
	}
}

// branchTo emits the rel32 field of a branch, resolving it immediately for
// back-edges and deferring forward edges to the fixup pass.
func (a *assembler) branchTo(target ir.Block) {
	if off, ok := a.blockOffsets[target]; ok {
		a.emit32(uint32(off - (len(a.buf) + 4)))
		return
	}
	a.fixups = append(a.fixups, jumpFixup{at: len(a.buf), target: target})
	a.emit32(0)
}

// loadSlot emits mov r, [rbp+disp32].
func (a *assembler) loadSlot(r reg, v ir.Value) {
	a.movSlot(0x8b, r, v)
}

// storeSlot emits mov [rbp+disp32], r.
func (a *assembler) storeSlot(v ir.Value, r reg) {
	a.movSlot(0x89, r, v)
}

func (a *assembler) movSlot(opcode byte, r reg, v ir.Value) {
	rex := byte(0x48)
	if r >= 8 {
		rex |= 0x04 // REX.R
	}
	modrm := byte(0x80) | byte(r&7)<<3 | 0x05 // [rbp]+disp32
	a.emit(rex, opcode, modrm)
	a.emit32(uint32(slotDisp(v)))
}

func (a *assembler) emit(bs ...byte) {
	a.buf = append(a.buf, bs...)
}

func (a *assembler) emit32(v uint32) {
	a.buf = binary.LittleEndian.AppendUint32(a.buf, v)
}

func (a *assembler) emit64(v uint64) {
	a.buf = binary.LittleEndian.AppendUint64(a.buf, v)
}
