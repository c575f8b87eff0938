package amd64

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thymoze/brainlift/compiler"
	"github.com/thymoze/brainlift/ir"
	"github.com/thymoze/brainlift/parser"
	"github.com/thymoze/brainlift/rt"
)

func lower(t *testing.T, src string) *ir.Func {
	t.Helper()
	program, err := parser.Parse(src)
	require.NoError(t, err)
	c, err := compiler.New(nil)
	require.NoError(t, err)
	fn, err := c.Lower(program)
	require.NoError(t, err)
	return fn
}

func TestObjectIsValidELF(t *testing.T) {
	obj, err := New().Object(lower(t, "++++++[>++++++<-]>."))
	require.NoError(t, err)

	f, err := elf.NewFile(bytes.NewReader(obj))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, elf.ET_REL, f.Type)
	require.Equal(t, elf.EM_X86_64, f.Machine)
	require.Equal(t, elf.ELFCLASS64, f.Class)
	require.Equal(t, elf.ELFDATA2LSB, f.Data)

	text := f.Section(".text")
	require.NotNil(t, text)
	require.NotZero(t, text.Size)
	require.Equal(t, elf.SHF_ALLOC|elf.SHF_EXECINSTR, text.Flags)

	code, err := text.Data()
	require.NoError(t, err)
	require.Equal(t, byte(0x55), code[0]) // push rbp
}

func TestObjectSymbols(t *testing.T) {
	obj, err := New().Object(lower(t, ",."))
	require.NoError(t, err)

	f, err := elf.NewFile(bytes.NewReader(obj))
	require.NoError(t, err)
	defer f.Close()

	symbols, err := f.Symbols()
	require.NoError(t, err)

	byName := map[string]elf.Symbol{}
	for _, sym := range symbols {
		byName[sym.Name] = sym
	}

	entry, ok := byName[rt.SymbolEntry]
	require.True(t, ok, "exported entry symbol missing")
	require.Equal(t, elf.STT_FUNC, elf.ST_TYPE(entry.Info))
	require.Equal(t, elf.STB_GLOBAL, elf.ST_BIND(entry.Info))
	require.NotZero(t, entry.Size)

	for _, name := range []string{rt.SymbolCalloc, rt.SymbolFree, rt.SymbolGetchar, rt.SymbolPutchar} {
		sym, ok := byName[name]
		require.True(t, ok, "imported symbol %s missing", name)
		require.Equal(t, elf.STB_GLOBAL, elf.ST_BIND(sym.Info))
		require.Equal(t, elf.SectionIndex(elf.SHN_UNDEF), sym.Section)
	}
}

func TestObjectRelocations(t *testing.T) {
	// ",." calls calloc, getchar, putchar and free: four call sites minimum.
	obj, err := New().Object(lower(t, ",."))
	require.NoError(t, err)

	f, err := elf.NewFile(bytes.NewReader(obj))
	require.NoError(t, err)
	defer f.Close()

	rela := f.Section(".rela.text")
	require.NotNil(t, rela)
	require.Equal(t, elf.SHT_RELA, rela.Type)
	data, err := rela.Data()
	require.NoError(t, err)
	count := len(data) / 24
	require.GreaterOrEqual(t, count, 4)

	text := f.Section(".text")
	code, err := text.Data()
	require.NoError(t, err)
	rd := bytes.NewReader(data)
	for i := 0; i < count; i++ {
		var r elf.Rela64
		require.NoError(t, binary.Read(rd, binary.LittleEndian, &r))
		require.Equal(t, uint32(elf.R_X86_64_PLT32), elf.R_TYPE64(r.Info))
		require.Equal(t, int64(-4), r.Addend)
		// Every relocation patches the rel32 of a call opcode.
		require.Equal(t, byte(0xe8), code[r.Off-1])
	}
}

func TestCallResultNormalizedToReturnType(t *testing.T) {
	// getchar returns a 32-bit value and the ABI leaves the bits above eax
	// unspecified, so the call site must sign-extend before storing. Without
	// it, the full-width compare against the -1 sentinel misses EOF whenever
	// the runtime leaves garbage in the upper half of rax.
	obj, err := New().Object(lower(t, ","))
	require.NoError(t, err)

	f, err := elf.NewFile(bytes.NewReader(obj))
	require.NoError(t, err)
	defer f.Close()

	symbols, err := f.Symbols()
	require.NoError(t, err)
	code, err := f.Section(".text").Data()
	require.NoError(t, err)
	data, err := f.Section(".rela.text").Data()
	require.NoError(t, err)

	// Map each call site to the three bytes that follow its rel32 field.
	// Symbols() omits the null entry, hence the index shift.
	after := map[string][]byte{}
	rd := bytes.NewReader(data)
	for i := 0; i < len(data)/24; i++ {
		var r elf.Rela64
		require.NoError(t, binary.Read(rd, binary.LittleEndian, &r))
		name := symbols[elf.R_SYM64(r.Info)-1].Name
		after[name] = code[r.Off+4 : r.Off+7]
	}

	// movsxd rax, eax
	require.Equal(t, []byte{0x48, 0x63, 0xc0}, after[rt.SymbolGetchar])
	// calloc returns a full 64-bit pointer; the result is stored as-is
	// (mov [rbp+disp32], rax).
	require.Equal(t, []byte{0x48, 0x89, 0x85}, after[rt.SymbolCalloc])
}

func TestObjectDeterministic(t *testing.T) {
	fn := lower(t, "+[>+<-]")
	a, err := New().Object(fn)
	require.NoError(t, err)
	b, err := New().Object(fn)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestObjectRejectsUnverifiedFunction(t *testing.T) {
	fn := ir.NewFunc("broken", ir.I32)
	b := ir.NewBuilder(fn)
	blk := b.CreateBlock()
	b.SwitchToBlock(blk)
	b.Iconst(ir.I64, 1) // unsealed and unterminated

	_, err := New().Object(fn)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unverified")
}
