package scorer

import (
	"fmt"
	"math"
)

// Labels produced by the scorer.
const (
	LabelBenign    = 0
	LabelMalicious = 1
)

// DefaultThreshold is the benign probability below which a sample is
// labelled malicious.
const DefaultThreshold = 0.8

// ValidateThreshold checks that t lies strictly between 0 and 1.
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || t <= 0 || t >= 1 {
		return &ConfigurationError{Field: "threshold", Value: t, Reason: "must be in the open interval (0, 1)"}
	}
	return nil
}

// Rescale maps a benign probability to a label and a confidence score in
// [0.5, 1] that is 0.5 exactly at the threshold t and 1 at either extreme:
//
//	pBenign <  t: malicious, 0.5 + 0.5*(t-pBenign)/t
//	pBenign >= t: benign,    0.5 + 0.5*(pBenign-t)/(1-t)
//
// t must satisfy ValidateThreshold. A probability outside [0, 1] is an
// error, not something to clamp.
func Rescale(pBenign, t float64) (int, float64, error) {
	if math.IsNaN(pBenign) || pBenign < 0 || pBenign > 1 {
		return 0, 0, fmt.Errorf("%w: %v", ErrProbabilityOutOfRange, pBenign)
	}
	if pBenign < t {
		return LabelMalicious, 0.5 + ((t-pBenign)/t)*0.5, nil
	}
	return LabelBenign, 0.5 + ((pBenign-t)/(1-t))*0.5, nil
}
