//go:build test

package pefeatures

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntropy(t *testing.T) {
	uniform := make([]byte, 0, 256*64)
	for range 64 {
		for b := range 256 {
			uniform = append(uniform, byte(b))
		}
	}

	tests := []struct {
		name string
		data []byte
		want float64
	}{
		{name: "empty", data: nil, want: 0},
		{name: "single byte value", data: bytes.Repeat([]byte{0x90}, 1000), want: 0},
		{name: "two values in equal share", data: []byte("abababab"), want: 1},
		{name: "every byte value equally often", data: uniform, want: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Entropy(tt.data), 1e-9)
		})
	}
}

func TestEntropy_RandomDataIsNearMaximum(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	data := make([]byte, 1<<20)
	for i := range data {
		data[i] = byte(rng.UintN(256))
	}

	h := Entropy(data)
	assert.Greater(t, h, 7.99)
	assert.LessOrEqual(t, h, 8.0)
}

func TestCountPatterns(t *testing.T) {
	tests := []struct {
		name string
		data string
		want PatternCounts
	}{
		{name: "empty", data: "", want: PatternCounts{}},
		{name: "urls in any case", data: "http://a https://b HTTP://c hTtPs://d", want: PatternCounts{URLs: 4}},
		{name: "paths in any case", data: `C:\Windows c:\temp D:\other`, want: PatternCounts{Paths: 2}},
		{name: "registry is case sensitive", data: "HKEY_LOCAL_MACHINE hkey_current_user", want: PatternCounts{Registry: 1}},
		{name: "MZ is case sensitive", data: "MZ mz Mz", want: PatternCounts{MZ: 1}},
		{name: "adjacent MZ", data: "MZMZ", want: PatternCounts{MZ: 2}},
		{name: "MZ inside a run", data: "MMZZ", want: PatternCounts{MZ: 1}},
		{name: "mixed", data: "MZ..http://x\\HKEY_CLASSES_ROOT c:\\x", want: PatternCounts{Paths: 1, URLs: 1, Registry: 1, MZ: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountPatterns([]byte(tt.data)))
		})
	}
}

func TestCountPatterns_OnlyFoldsASCII(t *testing.T) {
	// U+212A KELVIN SIGN lowercases to 'k' under Unicode rules; it must
	// not turn into an ASCII letter here.
	data := []byte("HTTP://ok \u212a:\\ c:\\")

	got := CountPatterns(data)
	assert.Equal(t, int64(1), got.URLs)
	assert.Equal(t, int64(1), got.Paths)
	assert.Equal(t, []byte("HTTP://ok \u212a:\\ c:\\"), data)
}
