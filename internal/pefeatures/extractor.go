package pefeatures

import (
	"bytes"
	"debug/pe"
	"fmt"
	"strings"

	"github.com/isseis/go-pe-scorer/internal/attributes"
)

const (
	dosMagic        = "MZ"
	peSignature     = "PE\x00\x00"
	lfanewOffset    = 0x3c
	fileHeaderSize  = 20
	signatureLength = len(peSignature)
)

// optionalHeader is the subset of the PE32/PE32+ optional headers the
// extractor reads, widened to common types.
type optionalHeader struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	BaseOfData                  uint32
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfHeapCommit            uint64
	NumberOfRvaAndSizes         uint32
	DataDirectory               [16]pe.DataDirectory
}

// parsed bundles everything Extract and DisassembleEntry need from a sample.
type parsed struct {
	file   *pe.File
	opt    optionalHeader
	img    *image
	lfanew uint32
}

// Extract parses sample as a PE image and returns its attribute record.
// The sample is never modified. Any structural problem is reported as a
// *ParseError.
func Extract(sample []byte) (*attributes.Record, error) {
	p, err := parse(sample)
	if err != nil {
		return nil, err
	}

	libs, err := p.img.imports(p.opt.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_IMPORT])
	if err != nil {
		return nil, &ParseError{Stage: StageImports, Err: err}
	}
	exports, err := p.img.exports(p.opt.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT])
	if err != nil {
		return nil, &ParseError{Stage: StageExports, Err: err}
	}

	fh := p.file.FileHeader
	opt := p.opt
	patterns := CountPatterns(sample)

	libraryNames := make([]string, 0, len(libs))
	var functionNames []string
	for _, lib := range libs {
		libraryNames = append(libraryNames, lib.Name)
		functionNames = append(functionNames, lib.Functions...)
	}

	headersEnd := uint64(p.lfanew) + uint64(signatureLength+fileHeaderSize) + uint64(fh.SizeOfOptionalHeader)

	return &attributes.Record{
		Size:           int64(len(sample)),
		VirtualSize:    virtualSize(headersEnd, p.file.Sections, uint64(opt.SectionAlignment)),
		HasDebug:       attributes.Bool(present(opt.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_DEBUG])),
		Imports:        int64(len(functionNames)),
		Exports:        int64(len(exports)),
		HasRelocations: attributes.Bool(present(opt.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_BASERELOC])),
		HasResources:   attributes.Bool(present(opt.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_RESOURCE])),
		HasSignature:   attributes.Bool(present(opt.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_SECURITY])),
		HasTLS:         attributes.Bool(present(opt.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_TLS])),
		Symbols:        int64(len(p.file.Symbols)),

		Timestamp:            int64(fh.TimeDateStamp),
		Machine:              lookupName(machineNames, fh.Machine),
		NumberOfSections:     int64(fh.NumberOfSections),
		NumberOfSymbols:      int64(fh.NumberOfSymbols),
		PointerToSymbolTable: int64(fh.PointerToSymbolTable),
		SizeOfOptionalHeader: int64(fh.SizeOfOptionalHeader),
		Characteristics:      int64(fh.Characteristics),
		CharacteristicsList:  flagList(fh.Characteristics, characteristicNames),

		BaseOfCode:                  int64(opt.BaseOfCode),
		BaseOfData:                  int64(opt.BaseOfData),
		DllCharacteristics:          int64(opt.DllCharacteristics),
		DllCharacteristicsList:      flagList(opt.DllCharacteristics, dllCharacteristicNames),
		FileAlignment:               int64(opt.FileAlignment),
		ImageBase:                   clampInt64(opt.ImageBase),
		Magic:                       lookupName(magicNames, opt.Magic),
		PEType:                      int64(opt.Magic),
		MajorImageVersion:           int64(opt.MajorImageVersion),
		MinorImageVersion:           int64(opt.MinorImageVersion),
		MajorLinkerVersion:          int64(opt.MajorLinkerVersion),
		MinorLinkerVersion:          int64(opt.MinorLinkerVersion),
		MajorOperatingSystemVersion: int64(opt.MajorOperatingSystemVersion),
		MinorOperatingSystemVersion: int64(opt.MinorOperatingSystemVersion),
		MajorSubsystemVersion:       int64(opt.MajorSubsystemVersion),
		MinorSubsystemVersion:       int64(opt.MinorSubsystemVersion),
		NumberOfRvaAndSizes:         int64(opt.NumberOfRvaAndSizes),
		SizeOfCode:                  int64(opt.SizeOfCode),
		SizeOfHeaders:               int64(opt.SizeOfHeaders),
		SizeOfHeapCommit:            clampInt64(opt.SizeOfHeapCommit),
		SizeOfImage:                 int64(opt.SizeOfImage),
		SizeOfInitializedData:       int64(opt.SizeOfInitializedData),
		SizeOfUninitializedData:     int64(opt.SizeOfUninitializedData),
		Subsystem:                   lookupName(subsystemNames, opt.Subsystem),

		Entropy:        Entropy(sample),
		StringPaths:    patterns.Paths,
		StringURLs:     patterns.URLs,
		StringRegistry: patterns.Registry,
		StringMZ:       patterns.MZ,

		Functions:   strings.Join(functionNames, " "),
		Libraries:   strings.Join(libraryNames, " "),
		ExportsList: strings.Join(exports, " "),
	}, nil
}

func parse(sample []byte) (*parsed, error) {
	lfanew, err := checkSignature(sample)
	if err != nil {
		return nil, &ParseError{Stage: StageSignature, Err: err}
	}

	f, err := openPE(sample, lfanew)
	if err != nil {
		return nil, &ParseError{Stage: StageHeaders, Err: err}
	}

	opt, err := readOptionalHeader(f)
	if err != nil {
		return nil, &ParseError{Stage: StageHeaders, Err: err}
	}

	return &parsed{
		file: f,
		opt:  opt,
		img: &image{
			data:          sample,
			sections:      f.Sections,
			sizeOfHeaders: uint64(opt.SizeOfHeaders),
			pe32plus:      opt.Magic == magicPE32Plus,
		},
		lfanew: lfanew,
	}, nil
}

// openPE runs debug/pe over sample. debug/pe only accepts a handful of
// machine types, so for any other machine it parses a copy whose machine
// field reads UNKNOWN and then restores the real value. The caller's buffer
// is never written.
func openPE(sample []byte, lfanew uint32) (*pe.File, error) {
	machineOff := uint64(lfanew) + uint64(signatureLength)
	if machineOff+2 > uint64(len(sample)) {
		return nil, fmt.Errorf("%w: COFF header", ErrTruncated)
	}
	machine := le.Uint16(sample[machineOff:])
	if acceptedByDebugPE(machine) {
		return pe.NewFile(bytes.NewReader(sample))
	}

	patched := bytes.Clone(sample)
	le.PutUint16(patched[machineOff:], pe.IMAGE_FILE_MACHINE_UNKNOWN)
	f, err := pe.NewFile(bytes.NewReader(patched))
	if err != nil {
		return nil, err
	}
	f.Machine = machine
	return f, nil
}

func acceptedByDebugPE(machine uint16) bool {
	switch machine {
	case pe.IMAGE_FILE_MACHINE_AMD64,
		pe.IMAGE_FILE_MACHINE_ARM64,
		pe.IMAGE_FILE_MACHINE_ARMNT,
		pe.IMAGE_FILE_MACHINE_I386,
		pe.IMAGE_FILE_MACHINE_RISCV32,
		pe.IMAGE_FILE_MACHINE_RISCV64,
		pe.IMAGE_FILE_MACHINE_RISCV128,
		pe.IMAGE_FILE_MACHINE_UNKNOWN:
		return true
	}
	return false
}

// checkSignature verifies the MZ header and the PE signature it points to,
// returning the signature offset.
func checkSignature(sample []byte) (uint32, error) {
	if !bytes.HasPrefix(sample, []byte(dosMagic)) {
		return 0, ErrNotPE
	}
	if len(sample) < lfanewOffset+4 {
		return 0, fmt.Errorf("%w: DOS header", ErrTruncated)
	}
	lfanew := le.Uint32(sample[lfanewOffset:])
	end := uint64(lfanew) + uint64(signatureLength)
	if end > uint64(len(sample)) {
		return 0, fmt.Errorf("%w: PE signature offset 0x%x", ErrTruncated, lfanew)
	}
	if string(sample[lfanew:end]) != peSignature {
		return 0, ErrNotPE
	}
	return lfanew, nil
}

func readOptionalHeader(f *pe.File) (optionalHeader, error) {
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		return optionalHeader{
			Magic:                       oh.Magic,
			MajorLinkerVersion:          oh.MajorLinkerVersion,
			MinorLinkerVersion:          oh.MinorLinkerVersion,
			SizeOfCode:                  oh.SizeOfCode,
			SizeOfInitializedData:       oh.SizeOfInitializedData,
			SizeOfUninitializedData:     oh.SizeOfUninitializedData,
			AddressOfEntryPoint:         oh.AddressOfEntryPoint,
			BaseOfCode:                  oh.BaseOfCode,
			BaseOfData:                  oh.BaseOfData,
			ImageBase:                   uint64(oh.ImageBase),
			SectionAlignment:            oh.SectionAlignment,
			FileAlignment:               oh.FileAlignment,
			MajorOperatingSystemVersion: oh.MajorOperatingSystemVersion,
			MinorOperatingSystemVersion: oh.MinorOperatingSystemVersion,
			MajorImageVersion:           oh.MajorImageVersion,
			MinorImageVersion:           oh.MinorImageVersion,
			MajorSubsystemVersion:       oh.MajorSubsystemVersion,
			MinorSubsystemVersion:       oh.MinorSubsystemVersion,
			SizeOfImage:                 oh.SizeOfImage,
			SizeOfHeaders:               oh.SizeOfHeaders,
			Subsystem:                   oh.Subsystem,
			DllCharacteristics:          oh.DllCharacteristics,
			SizeOfHeapCommit:            uint64(oh.SizeOfHeapCommit),
			NumberOfRvaAndSizes:         oh.NumberOfRvaAndSizes,
			DataDirectory:               oh.DataDirectory,
		}, nil
	case *pe.OptionalHeader64:
		return optionalHeader{
			Magic:                       oh.Magic,
			MajorLinkerVersion:          oh.MajorLinkerVersion,
			MinorLinkerVersion:          oh.MinorLinkerVersion,
			SizeOfCode:                  oh.SizeOfCode,
			SizeOfInitializedData:       oh.SizeOfInitializedData,
			SizeOfUninitializedData:     oh.SizeOfUninitializedData,
			AddressOfEntryPoint:         oh.AddressOfEntryPoint,
			BaseOfCode:                  oh.BaseOfCode,
			ImageBase:                   oh.ImageBase,
			SectionAlignment:            oh.SectionAlignment,
			FileAlignment:               oh.FileAlignment,
			MajorOperatingSystemVersion: oh.MajorOperatingSystemVersion,
			MinorOperatingSystemVersion: oh.MinorOperatingSystemVersion,
			MajorImageVersion:           oh.MajorImageVersion,
			MinorImageVersion:           oh.MinorImageVersion,
			MajorSubsystemVersion:       oh.MajorSubsystemVersion,
			MinorSubsystemVersion:       oh.MinorSubsystemVersion,
			SizeOfImage:                 oh.SizeOfImage,
			SizeOfHeaders:               oh.SizeOfHeaders,
			Subsystem:                   oh.Subsystem,
			DllCharacteristics:          oh.DllCharacteristics,
			SizeOfHeapCommit:            oh.SizeOfHeapCommit,
			NumberOfRvaAndSizes:         oh.NumberOfRvaAndSizes,
			DataDirectory:               oh.DataDirectory,
		}, nil
	default:
		return optionalHeader{}, ErrNoOptionalHeader
	}
}

func present(dir pe.DataDirectory) bool {
	return dir.VirtualAddress != 0 && dir.Size != 0
}
