//go:build test

package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewColor(t *testing.T) {
	assert.Equal(t, "\033[31mERROR\033[0m", NewColor("\033[31m")("ERROR"))
}

func TestPredefinedColors(t *testing.T) {
	tests := []struct {
		name  string
		color Color
		want  string
	}{
		{"Red", Red, "\033[31mx\033[0m"},
		{"Green", Green, "\033[32mx\033[0m"},
		{"Yellow", Yellow, "\033[33mx\033[0m"},
		{"Gray", Gray, "\033[90mx\033[0m"},
		{"Cyan", Cyan, "\033[36mx\033[0m"},
		{"BoldRed", BoldRed, "\033[1m\033[31mx\033[0m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.color("x"))
		})
	}
}

func TestNewPalette(t *testing.T) {
	p := NewPalette(false)
	for _, c := range []Color{p.Malicious, p.Benign, p.ParseFailed, p.Error, p.Dim} {
		assert.Equal(t, "malicious", c("malicious"))
	}

	p = NewPalette(true)
	assert.Equal(t, BoldRed("malicious"), p.Malicious("malicious"))
	assert.Equal(t, Green("benign"), p.Benign("benign"))
	assert.Equal(t, Yellow("unparsable"), p.ParseFailed("unparsable"))
}
