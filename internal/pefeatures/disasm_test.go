//go:build test

package pefeatures

import (
	"debug/pe"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pefeaturestesting "github.com/isseis/go-pe-scorer/internal/pefeatures/testing"
)

func TestDisassembleEntry_I386(t *testing.T) {
	sample := pefeaturestesting.Builder{
		// push ebp; mov ebp, esp; ret
		Code: []byte{0x55, 0x89, 0xe5, 0xc3},
	}.Build()

	insts, err := DisassembleEntry(sample, 3)
	require.NoError(t, err)
	require.Len(t, insts, 3)

	base := uint64(pefeaturestesting.DefaultImageBase + pefeaturestesting.SectionAlignment)
	assert.Equal(t, Instruction{Address: base, Len: 1, Text: "push ebp"}, insts[0])
	assert.Equal(t, base+1, insts[1].Address)
	assert.Equal(t, 2, insts[1].Len)
	assert.Contains(t, insts[1].Text, "mov")
	assert.Equal(t, Instruction{Address: base + 3, Len: 1, Text: "ret"}, insts[2])
}

func TestDisassembleEntry_AMD64(t *testing.T) {
	sample := pefeaturestesting.Builder{
		PE32Plus: true,
		// push rbp; ret
		Code: []byte{0x55, 0xc3},
	}.Build()

	insts, err := DisassembleEntry(sample, 2)
	require.NoError(t, err)
	require.Len(t, insts, 2)
	assert.Equal(t, "push rbp", insts[0].Text)
	assert.Equal(t, "ret", insts[1].Text)
}

func TestDisassembleEntry_StopsAtLimit(t *testing.T) {
	sample := pefeaturestesting.Builder{Code: []byte{0x90, 0x90, 0x90, 0x90, 0x90}}.Build()

	insts, err := DisassembleEntry(sample, 2)
	require.NoError(t, err)
	assert.Len(t, insts, 2)

	insts, err = DisassembleEntry(sample, 0)
	require.NoError(t, err)
	assert.Empty(t, insts)
}

func TestDisassembleEntry_UnsupportedMachine(t *testing.T) {
	sample := pefeaturestesting.Builder{Machine: pe.IMAGE_FILE_MACHINE_ARM64}.Build()

	_, err := DisassembleEntry(sample, 4)
	assert.ErrorIs(t, err, ErrUnsupportedMachine)
	assert.False(t, IsParseFailure(err))
}

func TestDisassembleEntry_NotPE(t *testing.T) {
	_, err := DisassembleEntry([]byte("plain text"), 4)
	assert.True(t, IsParseFailure(err))
}
