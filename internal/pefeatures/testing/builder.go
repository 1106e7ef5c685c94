//go:build test

// Package pefeaturestesting builds small synthetic PE images for tests of
// the pefeatures package and its consumers.
package pefeaturestesting

import (
	"debug/pe"
	"encoding/binary"
)

// Layout constants of every generated image.
const (
	Lfanew           = 0x80
	HeadersSize      = 0x400
	FileAlignment    = 0x200
	SectionAlignment = 0x1000
	DefaultImageBase = 0x400000

	optionalHeader32Size = 224
	optionalHeader64Size = 240
	sectionHeaderSize    = 40
	importDescSize       = 20
	exportDirSize        = 40
)

var le = binary.LittleEndian

// Import describes one imported library.
type Import struct {
	Library   string
	Functions []string
	// Ordinals are imported by ordinal after the named functions.
	Ordinals []uint16
}

// Builder describes a synthetic PE image. The zero value builds a valid
// PE32 image with two zero-filled sections.
type Builder struct {
	Machine            uint16
	Timestamp          uint32
	Characteristics    uint16
	DllCharacteristics uint16
	Subsystem          uint16
	PE32Plus           bool

	MajorLinkerVersion, MinorLinkerVersion       uint8
	MajorOSVersion, MinorOSVersion               uint16
	MajorImageVersion, MinorImageVersion         uint16
	MajorSubsystemVersion, MinorSubsystemVersion uint16
	SizeOfHeapCommit                             uint64

	// Code and Data fill .text and .data; the entry point is the start of .text.
	Code []byte
	Data []byte

	Imports []Import
	Exports []string

	// Directories sets extra data directory entries by index, for example
	// pe.IMAGE_DIRECTORY_ENTRY_DEBUG, without generating their contents.
	Directories map[int]pe.DataDirectory
}

type section struct {
	name    string
	content []byte
	chars   uint32
	va      uint32
	rawOff  uint32
	rawSize uint32
}

// Build returns the encoded image.
func (b Builder) Build() []byte {
	machine := b.Machine
	if machine == 0 {
		machine = pe.IMAGE_FILE_MACHINE_I386
		if b.PE32Plus {
			machine = pe.IMAGE_FILE_MACHINE_AMD64
		}
	}

	sections := []*section{
		{name: ".text", content: b.Code, chars: pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ},
		{name: ".data", content: b.Data, chars: pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_WRITE},
	}
	for i, s := range sections {
		s.va = uint32(SectionAlignment * (i + 1))
	}

	var dirs [16]pe.DataDirectory
	if len(b.Imports) > 0 {
		va := uint32(SectionAlignment * (len(sections) + 1))
		content, dir := buildImports(va, b.Imports, b.PE32Plus)
		sections = append(sections, &section{name: ".idata", content: content, chars: pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ, va: va})
		dirs[pe.IMAGE_DIRECTORY_ENTRY_IMPORT] = dir
	}
	if len(b.Exports) > 0 {
		va := uint32(SectionAlignment * (len(sections) + 1))
		content, dir := buildExports(va, b.Exports, sections[0].va)
		sections = append(sections, &section{name: ".edata", content: content, chars: pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ, va: va})
		dirs[pe.IMAGE_DIRECTORY_ENTRY_EXPORT] = dir
	}
	for idx, dir := range b.Directories {
		dirs[idx] = dir
	}

	rawOff := uint32(HeadersSize)
	for _, s := range sections {
		s.rawOff = rawOff
		s.rawSize = alignUp(uint32(max(len(s.content), 1)), FileAlignment)
		rawOff += s.rawSize
	}
	last := sections[len(sections)-1]
	sizeOfImage := last.va + alignUp(last.rawSize, SectionAlignment)

	out := make([]byte, rawOff)
	copy(out, "MZ")
	le.PutUint32(out[0x3c:], Lfanew)
	copy(out[Lfanew:], "PE\x00\x00")

	optSize := optionalHeader32Size
	if b.PE32Plus {
		optSize = optionalHeader64Size
	}

	fh := Lfanew + 4
	le.PutUint16(out[fh:], machine)
	le.PutUint16(out[fh+2:], uint16(len(sections)))
	le.PutUint32(out[fh+4:], b.Timestamp)
	le.PutUint16(out[fh+16:], uint16(optSize))
	le.PutUint16(out[fh+18:], b.Characteristics)

	oh := out[fh+20 : fh+20+optSize]
	text := sections[0]
	if b.PE32Plus {
		le.PutUint16(oh[0:], 0x20b)
	} else {
		le.PutUint16(oh[0:], 0x10b)
	}
	oh[2] = b.MajorLinkerVersion
	oh[3] = b.MinorLinkerVersion
	le.PutUint32(oh[4:], text.rawSize)
	le.PutUint32(oh[8:], sections[1].rawSize)
	le.PutUint32(oh[16:], text.va)
	le.PutUint32(oh[20:], text.va)
	if b.PE32Plus {
		le.PutUint64(oh[24:], DefaultImageBase)
	} else {
		le.PutUint32(oh[24:], sections[1].va)
		le.PutUint32(oh[28:], DefaultImageBase)
	}
	le.PutUint32(oh[32:], SectionAlignment)
	le.PutUint32(oh[36:], FileAlignment)
	le.PutUint16(oh[40:], b.MajorOSVersion)
	le.PutUint16(oh[42:], b.MinorOSVersion)
	le.PutUint16(oh[44:], b.MajorImageVersion)
	le.PutUint16(oh[46:], b.MinorImageVersion)
	le.PutUint16(oh[48:], b.MajorSubsystemVersion)
	le.PutUint16(oh[50:], b.MinorSubsystemVersion)
	le.PutUint32(oh[56:], sizeOfImage)
	le.PutUint32(oh[60:], HeadersSize)
	le.PutUint16(oh[68:], b.Subsystem)
	le.PutUint16(oh[70:], b.DllCharacteristics)

	var ddOff int
	if b.PE32Plus {
		le.PutUint64(oh[96:], b.SizeOfHeapCommit)
		le.PutUint32(oh[108:], 16)
		ddOff = 112
	} else {
		le.PutUint32(oh[84:], uint32(b.SizeOfHeapCommit))
		le.PutUint32(oh[92:], 16)
		ddOff = 96
	}
	for i, dir := range dirs {
		le.PutUint32(oh[ddOff+8*i:], dir.VirtualAddress)
		le.PutUint32(oh[ddOff+8*i+4:], dir.Size)
	}

	sh := fh + 20 + optSize
	for i, s := range sections {
		hdr := out[sh+i*sectionHeaderSize : sh+(i+1)*sectionHeaderSize]
		copy(hdr[0:8], s.name)
		le.PutUint32(hdr[8:], s.rawSize)
		le.PutUint32(hdr[12:], s.va)
		le.PutUint32(hdr[16:], s.rawSize)
		le.PutUint32(hdr[20:], s.rawOff)
		le.PutUint32(hdr[36:], s.chars)
		copy(out[s.rawOff:], s.content)
	}
	return out
}

func buildImports(va uint32, imports []Import, pe32plus bool) ([]byte, pe.DataDirectory) {
	descSize := (len(imports) + 1) * importDescSize
	buf := make([]byte, descSize)
	put := func(b []byte) uint32 {
		rva := va + uint32(len(buf))
		buf = append(buf, b...)
		return rva
	}
	thunkSize := 4
	ordinalFlag := uint64(1) << 31
	if pe32plus {
		thunkSize = 8
		ordinalFlag = uint64(1) << 63
	}
	putThunks := func(entries []uint64) uint32 {
		for len(buf)%thunkSize != 0 {
			buf = append(buf, 0)
		}
		rva := va + uint32(len(buf))
		for _, e := range append(entries, 0) {
			b := make([]byte, thunkSize)
			if pe32plus {
				le.PutUint64(b, e)
			} else {
				le.PutUint32(b, uint32(e))
			}
			buf = append(buf, b...)
		}
		return rva
	}

	for i, imp := range imports {
		nameRVA := put(append([]byte(imp.Library), 0))
		var entries []uint64
		for _, fn := range imp.Functions {
			hintName := append([]byte{0, 0}, fn...)
			hintName = append(hintName, 0)
			entries = append(entries, uint64(put(hintName)))
		}
		for _, ord := range imp.Ordinals {
			entries = append(entries, ordinalFlag|uint64(ord))
		}
		lookup := putThunks(entries)
		iat := putThunks(entries)

		desc := buf[i*importDescSize : (i+1)*importDescSize]
		le.PutUint32(desc[0:], lookup)
		le.PutUint32(desc[12:], nameRVA)
		le.PutUint32(desc[16:], iat)
	}
	return buf, pe.DataDirectory{VirtualAddress: va, Size: uint32(descSize)}
}

func buildExports(va uint32, names []string, target uint32) ([]byte, pe.DataDirectory) {
	buf := make([]byte, exportDirSize)
	put := func(b []byte) uint32 {
		rva := va + uint32(len(buf))
		buf = append(buf, b...)
		return rva
	}

	dllName := put([]byte("synthetic.dll\x00"))
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	functions := va + uint32(len(buf))
	for range names {
		buf = le.AppendUint32(buf, target)
	}
	namePtrs := va + uint32(len(buf))
	buf = append(buf, make([]byte, 4*len(names))...)
	ordinals := va + uint32(len(buf))
	for i := range names {
		buf = le.AppendUint16(buf, uint16(i))
	}
	for i, name := range names {
		rva := put(append([]byte(name), 0))
		le.PutUint32(buf[namePtrs-va+uint32(4*i):], rva)
	}

	le.PutUint32(buf[12:], dllName)
	le.PutUint32(buf[16:], 1)
	le.PutUint32(buf[20:], uint32(len(names)))
	le.PutUint32(buf[24:], uint32(len(names)))
	le.PutUint32(buf[28:], functions)
	le.PutUint32(buf[32:], namePtrs)
	le.PutUint32(buf[36:], ordinals)
	return buf, pe.DataDirectory{VirtualAddress: va, Size: uint32(len(buf))}
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) / align * align
}
