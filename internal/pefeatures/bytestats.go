package pefeatures

import (
	"bytes"
	"math"
)

// Entropy returns the Shannon entropy, in bits, of the byte-value histogram
// of data. The result is in [0, 8] and is 0 for empty input.
func Entropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var freq [256]int
	for _, b := range data {
		freq[b]++
	}

	var entropy float64
	total := float64(len(data))
	for _, count := range freq {
		if count > 0 {
			p := float64(count) / total
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

// PatternCounts holds literal string occurrence counts over a sample.
type PatternCounts struct {
	Paths    int64 // `c:\`, case-insensitive
	URLs     int64 // `http://` or `https://`, case-insensitive
	Registry int64 // `HKEY_`
	MZ       int64 // `MZ`, anywhere in the sample
}

var (
	pathLiteral     = []byte(`c:\`)
	httpLiteral     = []byte("http://")
	httpsLiteral    = []byte("https://")
	registryLiteral = []byte("HKEY_")
	mzLiteral       = []byte("MZ")
)

// CountPatterns counts non-overlapping, left-to-right occurrences of the
// string patterns tracked as features. Case-insensitive matching folds ASCII
// letters only.
func CountPatterns(data []byte) PatternCounts {
	folded := asciiLower(data)
	return PatternCounts{
		Paths: int64(bytes.Count(folded, pathLiteral)),
		// An occurrence of one URL scheme never contains the other, so the
		// two counts add up to the count of the alternation.
		URLs:     int64(bytes.Count(folded, httpLiteral) + bytes.Count(folded, httpsLiteral)),
		Registry: int64(bytes.Count(data, registryLiteral)),
		MZ:       int64(bytes.Count(data, mzLiteral)),
	}
}

// asciiLower returns a copy of data with A-Z mapped to a-z and every other
// byte untouched.
func asciiLower(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		out[i] = b
	}
	return out
}
