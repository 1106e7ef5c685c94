package pefeatures

import (
	"debug/pe"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

const (
	x86BitMode    = 32
	x86_64BitMode = 64

	// maxInstructionLen is the longest valid x86 instruction encoding.
	maxInstructionLen = 15
)

// Instruction is one decoded instruction at the image entry point.
type Instruction struct {
	// Address is the virtual address (image base + RVA) of the instruction.
	Address uint64
	Len     int
	Text    string
}

// DisassembleEntry decodes up to limit instructions starting at the entry
// point of an I386 or AMD64 image. Decoding stops early at the first invalid
// encoding or at the end of the sample.
func DisassembleEntry(sample []byte, limit int) ([]Instruction, error) {
	p, err := parse(sample)
	if err != nil {
		return nil, err
	}

	var mode int
	switch p.file.Machine {
	case pe.IMAGE_FILE_MACHINE_I386:
		mode = x86BitMode
	case pe.IMAGE_FILE_MACHINE_AMD64:
		mode = x86_64BitMode
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMachine, lookupName(machineNames, p.file.Machine))
	}

	rva := uint64(p.opt.AddressOfEntryPoint)
	off, err := p.img.offset(rva)
	if err != nil {
		return nil, &ParseError{Stage: StageHeaders, Err: fmt.Errorf("entry point: %w", err)}
	}
	code := p.img.data[off:min(uint64(len(p.img.data)), off+uint64(limit*maxInstructionLen))]

	var out []Instruction
	pc := p.opt.ImageBase + rva
	for len(out) < limit && len(code) > 0 {
		inst, err := x86asm.Decode(code, mode)
		if err != nil {
			break
		}
		out = append(out, Instruction{
			Address: pc,
			Len:     inst.Len,
			Text:    x86asm.IntelSyntax(inst, pc, nil),
		})
		code = code[inst.Len:]
		pc += uint64(inst.Len)
	}
	return out, nil
}
