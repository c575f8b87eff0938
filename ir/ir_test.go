package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildCountdown constructs the canonical reducible-loop shape: a test block
// that is the sole target of the back-edge, threading the counter as a block
// parameter.
func buildCountdown(start int64) *Func {
	fn := NewFunc("countdown", I64)
	b := NewBuilder(fn)

	entry := b.CreateBlock()
	b.SwitchToBlock(entry)
	b.SealBlock(entry)

	test := b.CreateBlock()
	counter := b.AppendBlockParam(test, I64)
	body := b.CreateBlock()
	bodyCounter := b.AppendBlockParam(body, I64)
	exit := b.CreateBlock()
	exitCounter := b.AppendBlockParam(exit, I64)

	v := b.Iconst(I64, start)
	b.Jump(test, v)

	b.SwitchToBlock(test)
	b.Brif(counter, body, []Value{counter}, exit, []Value{counter})
	b.SealBlock(body)
	b.SealBlock(exit)

	b.SwitchToBlock(body)
	next := b.IaddImm(bodyCounter, -1)
	b.Jump(test, next)
	b.SealBlock(test)

	b.SwitchToBlock(exit)
	b.Return(exitCounter)
	return fn
}

func TestCountdownLoop(t *testing.T) {
	fn := buildCountdown(5)
	require.NoError(t, Verify(fn))

	results, err := NewEvaluator().Run(fn)
	require.NoError(t, err)
	require.Equal(t, []int64{0}, results)
}

func TestZeroIterationLoop(t *testing.T) {
	fn := buildCountdown(0)
	require.NoError(t, Verify(fn))

	results, err := NewEvaluator().Run(fn)
	require.NoError(t, err)
	require.Equal(t, []int64{0}, results)
}

func TestLoadStoreExterns(t *testing.T) {
	fn := NewFunc("memtest", I32, I32)
	calloc := fn.DeclareExtern("calloc", []Type{I64, I64}, []Type{I64})

	b := NewBuilder(fn)
	entry := b.CreateBlock()
	b.SwitchToBlock(entry)
	b.SealBlock(entry)

	n := b.Iconst(I64, 4)
	one := b.Iconst(I64, 1)
	ptr := b.Call(calloc, n, one)[0]
	v := b.Iconst(I32, 200)
	b.Store8(v, ptr)
	unsigned := b.Load8(I32, ptr)
	signed := b.Sload8(I32, ptr)
	b.Return(unsigned, signed)

	require.NoError(t, Verify(fn))

	e := NewEvaluator()
	e.Externs["calloc"] = func(args []int64) ([]int64, error) {
		return []int64{e.Alloc(args[0] * args[1])}, nil
	}
	results, err := e.Run(fn)
	require.NoError(t, err)
	require.Equal(t, []int64{200, -56}, results)
}

func TestByteWraparound(t *testing.T) {
	fn := NewFunc("wrap", I64)
	b := NewBuilder(fn)
	entry := b.CreateBlock()
	b.SwitchToBlock(entry)
	b.SealBlock(entry)

	v := b.Iconst(I8, 255)
	w := b.IaddImm(v, 1)
	b.Return(w)

	require.NoError(t, Verify(fn))
	results, err := NewEvaluator().Run(fn)
	require.NoError(t, err)
	require.Equal(t, []int64{0}, results)
}

func TestVerifyUnsealedBlock(t *testing.T) {
	fn := NewFunc("bad")
	b := NewBuilder(fn)
	entry := b.CreateBlock()
	b.SwitchToBlock(entry)
	b.Return()

	err := Verify(fn)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not sealed")
}

func TestVerifyUnterminatedBlock(t *testing.T) {
	fn := NewFunc("bad")
	b := NewBuilder(fn)
	entry := b.CreateBlock()
	b.SwitchToBlock(entry)
	b.SealBlock(entry)
	b.Iconst(I64, 1)

	err := Verify(fn)
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not end with a terminator")
}

func TestVerifyAggregatesViolations(t *testing.T) {
	fn := NewFunc("bad")
	b := NewBuilder(fn)
	entry := b.CreateBlock()
	b.SwitchToBlock(entry)
	b.Iconst(I64, 1)

	err := Verify(fn)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not sealed")
	require.Contains(t, err.Error(), "does not end with a terminator")
}

func TestJumpToSealedBlockPanics(t *testing.T) {
	fn := NewFunc("bad")
	b := NewBuilder(fn)
	entry := b.CreateBlock()
	target := b.CreateBlock()
	b.SealBlock(target)
	b.SwitchToBlock(entry)
	b.SealBlock(entry)
	require.Panics(t, func() {
		b.Jump(target)
	})
}

func TestInstructionAfterTerminatorPanics(t *testing.T) {
	fn := NewFunc("bad")
	b := NewBuilder(fn)
	entry := b.CreateBlock()
	b.SwitchToBlock(entry)
	b.SealBlock(entry)
	b.Return()
	require.Panics(t, func() {
		b.Iconst(I64, 1)
	})
}

func TestBranchArityPanics(t *testing.T) {
	fn := NewFunc("bad")
	b := NewBuilder(fn)
	entry := b.CreateBlock()
	target := b.CreateBlock()
	b.AppendBlockParam(target, I64)
	b.SwitchToBlock(entry)
	b.SealBlock(entry)
	require.Panics(t, func() {
		b.Jump(target)
	})
}

func TestFuncString(t *testing.T) {
	fn := buildCountdown(3)
	dump := fn.String()
	require.Contains(t, dump, "function countdown() -> i64")
	require.Contains(t, dump, "block1(v0: i64):")
	require.Contains(t, dump, "brif v0, block2(v0), block3(v0)")
	require.True(t, strings.HasSuffix(dump, "}\n"))
}
