package elfx

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// buildMiniELF assembles a minimal well-formed 32-bit little-endian ARM ELF
// with one PT_LOAD segment covering a ".text"-like blob and one FUNC symbol
// named "foo" pointing at the start of it. There is no cross-ARM toolchain
// available to produce a real fixture, so the bytes are synthesized by hand
// the way debug/elf's own tests build minimal fixtures.
func buildMiniELF(t *testing.T, machine uint16, class byte, code []byte) []byte {
	t.Helper()

	const (
		ehsize = 52
		phsize = 32
		shsize = 40
		symsize = 16
	)

	textOff := uint32(ehsize + phsize) // place .text right after the single phdr
	textVA := uint32(0x1000) + textOff
	textLen := uint32(len(code))

	// .shstrtab contents: "\0.shstrtab\0.symtab\0.strtab\0"
	shstrtab := []byte("\x00.shstrtab\x00.symtab\x00.strtab\x00")
	shstrtabOff := textOff + textLen
	// .strtab contents: "\0foo\0"
	strtab := []byte("\x00foo\x00")
	strtabOff := shstrtabOff + uint32(len(shstrtab))

	// one symbol: foo, STT_FUNC, bound to section 1 (.text's section index, see below)
	symtabOff := strtabOff + uint32(len(strtab))
	var symtab bytes.Buffer
	// null symbol
	binary.Write(&symtab, binary.LittleEndian, struct {
		NameOff uint32
		Value   uint32
		Size    uint32
		Info    uint8
		Other   uint8
		Shndx   uint16
	}{0, 0, 0, 0, 0, 0})
	binary.Write(&symtab, binary.LittleEndian, struct {
		NameOff uint32
		Value   uint32
		Size    uint32
		Info    uint8
		Other   uint8
		Shndx   uint16
	}{1, textVA, textLen, (1 << 4) | 2, 0, 1}) // STB_GLOBAL<<4|STT_FUNC, shndx=1(.text)

	shOff := symtabOff + uint32(symtab.Len())

	var buf bytes.Buffer

	// e_ident
	buf.Write([]byte{0x7f, 'E', 'L', 'F', class, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	binary.Write(&buf, binary.LittleEndian, uint16(2))      // e_type ET_EXEC
	binary.Write(&buf, binary.LittleEndian, machine)        // e_machine
	binary.Write(&buf, binary.LittleEndian, uint32(1))      // e_version
	binary.Write(&buf, binary.LittleEndian, textVA)         // e_entry
	binary.Write(&buf, binary.LittleEndian, uint32(ehsize)) // e_phoff
	binary.Write(&buf, binary.LittleEndian, shOff)          // e_shoff
	binary.Write(&buf, binary.LittleEndian, uint32(0))      // e_flags
	binary.Write(&buf, binary.LittleEndian, uint16(ehsize))
	binary.Write(&buf, binary.LittleEndian, uint16(phsize))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // e_phnum
	binary.Write(&buf, binary.LittleEndian, uint16(shsize))
	binary.Write(&buf, binary.LittleEndian, uint16(4)) // e_shnum: null, .text, .symtab, .strtab... plus shstrtab = 5
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // e_shstrndx fixed below

	if buf.Len() != ehsize {
		t.Fatalf("ehdr size mismatch: %d", buf.Len())
	}

	// program header: PT_LOAD covering [0x1000, 0x1000+ehsize+phsize+textLen)
	segLen := uint32(ehsize) + uint32(phsize) + textLen
	binary.Write(&buf, binary.LittleEndian, uint32(1))      // p_type PT_LOAD
	binary.Write(&buf, binary.LittleEndian, uint32(0))      // p_offset
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000)) // p_vaddr
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000)) // p_paddr
	binary.Write(&buf, binary.LittleEndian, segLen)         // p_filesz
	binary.Write(&buf, binary.LittleEndian, segLen)         // p_memsz
	binary.Write(&buf, binary.LittleEndian, uint32(5))      // p_flags R+X
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000)) // p_align

	buf.Write(code)
	buf.Write(shstrtab)
	buf.Write(strtab)
	buf.Write(symtab.Bytes())

	// section headers: [0]=null [1]=.text [2]=.symtab [3]=.strtab [4]=.shstrtab
	// name offsets into shstrtab: "\0.shstrtab\0.symtab\0.strtab\0"
	nameShstrtab := uint32(1)
	nameSymtab := nameShstrtab + uint32(len(".shstrtab\x00"))
	nameStrtab := nameSymtab + uint32(len(".symtab\x00"))

	type shdr struct {
		Name, Type, Flags, Addr, Off, Size, Link, Info, Align, Entsize uint32
	}
	write := func(s shdr) {
		binary.Write(&buf, binary.LittleEndian, s.Name)
		binary.Write(&buf, binary.LittleEndian, s.Type)
		binary.Write(&buf, binary.LittleEndian, s.Flags)
		binary.Write(&buf, binary.LittleEndian, s.Addr)
		binary.Write(&buf, binary.LittleEndian, s.Off)
		binary.Write(&buf, binary.LittleEndian, s.Size)
		binary.Write(&buf, binary.LittleEndian, s.Link)
		binary.Write(&buf, binary.LittleEndian, s.Info)
		binary.Write(&buf, binary.LittleEndian, s.Align)
		binary.Write(&buf, binary.LittleEndian, s.Entsize)
	}
	write(shdr{}) // null
	write(shdr{Name: 0, Type: 1 /*PROGBITS*/, Flags: 0x6 /*ALLOC+EXEC*/, Addr: textVA, Off: textOff, Size: textLen, Align: 4})
	write(shdr{Name: nameSymtab, Type: 2 /*SYMTAB*/, Off: symtabOff, Size: uint32(symtab.Len()), Link: 3, Info: 1, Align: 4, Entsize: symsize})
	write(shdr{Name: nameStrtab, Type: 3 /*STRTAB*/, Off: strtabOff, Size: uint32(len(strtab)), Align: 1})
	write(shdr{Name: nameShstrtab, Type: 3 /*STRTAB*/, Off: shstrtabOff, Size: uint32(len(shstrtab)), Align: 1})

	out := buf.Bytes()
	// patch e_shstrndx (offset 50, Half) to 4 and e_shnum to 5
	binary.LittleEndian.PutUint16(out[48:50], 5) // e_shnum
	binary.LittleEndian.PutUint16(out[50:52], 4) // e_shstrndx
	return out
}

func writeSample(t *testing.T, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "sample.elf")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestOpenValid(t *testing.T) {
	const emARM = 40
	const classELF32 = 1
	path := writeSample(t, buildMiniELF(t, emARM, classELF32, []byte{0x00, 0x48, 0x70, 0x47}))

	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	if ef.FileSize() == 0 {
		t.Error("file size is 0")
	}
}

func TestOpenRejectsNonELF(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "notelf")
	if err := os.WriteFile(tmp, []byte("not an ELF file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(tmp); err == nil {
		t.Fatal("expected error for non-ELF file")
	}
}

func TestOpenRejectsWrongMachine(t *testing.T) {
	const emX86_64 = 62
	const classELF32 = 1
	path := writeSample(t, buildMiniELF(t, emX86_64, classELF32, []byte{0x90}))
	if _, err := Open(path); err == nil {
		t.Fatal("expected ErrNotARM")
	}
}

func TestSymbolLookup(t *testing.T) {
	const emARM = 40
	const classELF32 = 1
	path := writeSample(t, buildMiniELF(t, emARM, classELF32, []byte{0x00, 0x48, 0x70, 0x47}))
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	va, size, err := ef.Symbol("foo")
	if err != nil {
		t.Fatal(err)
	}
	if va == 0 {
		t.Error("VA is 0")
	}
	if size == 0 {
		t.Error("size is 0")
	}
}

func TestSymbolNotFound(t *testing.T) {
	const emARM = 40
	const classELF32 = 1
	path := writeSample(t, buildMiniELF(t, emARM, classELF32, []byte{0x00, 0x48, 0x70, 0x47}))
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	if _, _, err := ef.Symbol("does_not_exist"); err == nil {
		t.Fatal("expected error for missing symbol")
	}
}

func TestVAToFileOffset(t *testing.T) {
	const emARM = 40
	const classELF32 = 1
	path := writeSample(t, buildMiniELF(t, emARM, classELF32, []byte{0x00, 0x48, 0x70, 0x47}))
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	va, _, err := ef.Symbol("foo")
	if err != nil {
		t.Fatal(err)
	}
	off, err := ef.VAToFileOffset(va)
	if err != nil {
		t.Fatal(err)
	}
	if off != uint64(va-0x1000) {
		t.Errorf("VA=0x%x FileOff=0x%x, want 0x%x", va, off, va-0x1000)
	}
}

func TestVAToFileOffsetInvalid(t *testing.T) {
	const emARM = 40
	const classELF32 = 1
	path := writeSample(t, buildMiniELF(t, emARM, classELF32, []byte{0x00, 0x48, 0x70, 0x47}))
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	if _, err := ef.VAToFileOffset(0xDEADBEEF); err == nil {
		t.Fatal("expected error for invalid VA")
	}
}

func TestLoadSegments(t *testing.T) {
	const emARM = 40
	const classELF32 = 1
	path := writeSample(t, buildMiniELF(t, emARM, classELF32, []byte{0x00, 0x48, 0x70, 0x47}))
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	segs := ef.LoadSegments()
	if len(segs) == 0 {
		t.Fatal("no PT_LOAD segments")
	}
}

func TestFuncSymbols(t *testing.T) {
	const emARM = 40
	const classELF32 = 1
	path := writeSample(t, buildMiniELF(t, emARM, classELF32, []byte{0x00, 0x48, 0x70, 0x47}))
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	syms, err := ef.FuncSymbols()
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 1 || syms[0].Name != "foo" {
		t.Errorf("FuncSymbols = %+v, want one symbol named foo", syms)
	}
}

func FuzzELFOpen(f *testing.F) {
	f.Add([]byte("\x7fELF\x01\x01\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00"))
	f.Add([]byte("not an elf at all"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		tmp := filepath.Join(t.TempDir(), "fuzz.elf")
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			t.Fatal(err)
		}
		ef, err := Open(tmp)
		if err != nil {
			return
		}
		ef.FileSize()
		ef.LoadSegments()
		ef.Symbol("foo")
		ef.VAToFileOffset(0)
		ef.Close()
	})
}
