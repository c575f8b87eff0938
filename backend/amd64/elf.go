package amd64

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// reloc is a call site in .text that must be patched to reach an imported
// symbol. All relocations are R_X86_64_PLT32 with addend -4, matching the
// rel32 call encoding.
type reloc struct {
	offset uint64
	symbol string
}

const (
	elfClass64   = 2
	elfDataLSB   = 1
	elfVersion   = 1
	etRel        = 1
	emX8664      = 62
	shtProgbits  = 1
	shtSymtab    = 2
	shtStrtab    = 3
	shtRela      = 4
	shfAlloc     = 0x2
	shfExecinstr = 0x4
	stbGlobal    = 1
	sttNotype    = 0
	sttFunc      = 2
	rPLT32       = 4
)

type elf64Ehdr struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type elf64Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Off       uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

type elf64Sym struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

type elf64Rela struct {
	Off    uint64
	Info   uint64
	Addend int64
}

// stringTable accumulates a NUL-separated string table.
type stringTable struct {
	buf     bytes.Buffer
	offsets map[string]uint32
}

func newStringTable() *stringTable {
	t := &stringTable{offsets: map[string]uint32{}}
	t.buf.WriteByte(0)
	return t
}

func (t *stringTable) add(s string) uint32 {
	if off, ok := t.offsets[s]; ok {
		return off
	}
	off := uint32(t.buf.Len())
	t.buf.WriteString(s)
	t.buf.WriteByte(0)
	t.offsets[s] = off
	return off
}

// writeObject assembles an ELF64 relocatable object with one .text section,
// a single exported function symbol covering it, one undefined global per
// import, and the call-site relocations.
func writeObject(entryName string, text []byte, imports []string, relocs []reloc) ([]byte, error) {
	const (
		ehdrSize = 64
		shdrSize = 64
		symSize  = 24
		relaSize = 24
	)

	// Symbol table: null, exported entry, then imports in declaration order.
	strtab := newStringTable()
	syms := []elf64Sym{
		{},
		{
			Name:  strtab.add(entryName),
			Info:  stbGlobal<<4 | sttFunc,
			Shndx: 1, // .text
			Value: 0,
			Size:  uint64(len(text)),
		},
	}
	symIndex := map[string]uint64{entryName: 1}
	for _, name := range imports {
		symIndex[name] = uint64(len(syms))
		syms = append(syms, elf64Sym{
			Name: strtab.add(name),
			Info: stbGlobal<<4 | sttNotype,
		})
	}

	relas := make([]elf64Rela, len(relocs))
	for i, r := range relocs {
		idx, ok := symIndex[r.symbol]
		if !ok {
			return nil, fmt.Errorf("relocation against undeclared symbol %q", r.symbol)
		}
		relas[i] = elf64Rela{
			Off:    r.offset,
			Info:   idx<<32 | rPLT32,
			Addend: -4,
		}
	}

	shstrtab := newStringTable()
	nameText := shstrtab.add(".text")
	nameRela := shstrtab.add(".rela.text")
	nameSymtab := shstrtab.add(".symtab")
	nameStrtab := shstrtab.add(".strtab")
	nameShstrtab := shstrtab.add(".shstrtab")

	textOff := uint64(ehdrSize)
	relaOff := align8(textOff + uint64(len(text)))
	symtabOff := relaOff + uint64(relaSize*len(relas))
	strtabOff := symtabOff + uint64(symSize*len(syms))
	shstrtabOff := strtabOff + uint64(strtab.buf.Len())
	shoff := align8(shstrtabOff + uint64(shstrtab.buf.Len()))

	shdrs := []elf64Shdr{
		{},
		{
			Name: nameText, Type: shtProgbits, Flags: shfAlloc | shfExecinstr,
			Off: textOff, Size: uint64(len(text)), Addralign: 16,
		},
		{
			Name: nameRela, Type: shtRela,
			Off: relaOff, Size: uint64(relaSize * len(relas)),
			Link: 3, Info: 1, Addralign: 8, Entsize: relaSize,
		},
		{
			Name: nameSymtab, Type: shtSymtab,
			Off: symtabOff, Size: uint64(symSize * len(syms)),
			Link: 4, Info: 1, // first global symbol index
			Addralign: 8, Entsize: symSize,
		},
		{
			Name: nameStrtab, Type: shtStrtab,
			Off: strtabOff, Size: uint64(strtab.buf.Len()), Addralign: 1,
		},
		{
			Name: nameShstrtab, Type: shtStrtab,
			Off: shstrtabOff, Size: uint64(shstrtab.buf.Len()), Addralign: 1,
		},
	}

	ehdr := elf64Ehdr{
		Type:      etRel,
		Machine:   emX8664,
		Version:   elfVersion,
		Shoff:     shoff,
		Ehsize:    ehdrSize,
		Shentsize: shdrSize,
		Shnum:     uint16(len(shdrs)),
		Shstrndx:  uint16(len(shdrs) - 1),
	}
	copy(ehdr.Ident[:], []byte{0x7f, 'E', 'L', 'F', elfClass64, elfDataLSB, elfVersion})

	var out bytes.Buffer
	le := binary.LittleEndian
	if err := binary.Write(&out, le, ehdr); err != nil {
		return nil, err
	}
	out.Write(text)
	pad(&out, relaOff)
	if err := binary.Write(&out, le, relas); err != nil {
		return nil, err
	}
	if err := binary.Write(&out, le, syms); err != nil {
		return nil, err
	}
	out.Write(strtab.buf.Bytes())
	out.Write(shstrtab.buf.Bytes())
	pad(&out, shoff)
	if err := binary.Write(&out, le, shdrs); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func align8(n uint64) uint64 {
	return (n + 7) &^ 7
}

func pad(out *bytes.Buffer, to uint64) {
	for uint64(out.Len()) < to {
		out.WriteByte(0)
	}
}
