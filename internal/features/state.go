package features

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/isseis/go-pe-scorer/internal/attributes"
)

// pipelineState is the persisted form of a Pipeline.
type pipelineState struct {
	NumericFields []string      `json:"numeric_fields"`
	Categorical   []oneHotState `json:"categorical"`
	Textual       []tfidfState  `json:"textual"`
	Scaler        minMaxState   `json:"scaler"`
	Width         int           `json:"width"`
}

type oneHotState struct {
	Field      string   `json:"field"`
	Categories []string `json:"categories"`
}

type tfidfState struct {
	Field      string    `json:"field"`
	Vocabulary []string  `json:"vocabulary"`
	IDF        []float64 `json:"idf"`
}

type minMaxState struct {
	Min   []float64 `json:"min"`
	Scale []float64 `json:"scale"`
}

// MarshalJSON encodes the fitted state.
func (p *Pipeline) MarshalJSON() ([]byte, error) {
	st := pipelineState{
		NumericFields: attributes.NumericFields,
		Scaler:        minMaxState{Min: p.scaler.min, Scale: p.scaler.scale},
		Width:         p.width,
	}
	for _, e := range p.categorical {
		st.Categorical = append(st.Categorical, oneHotState{Field: e.field, Categories: nonNil(e.categories)})
	}
	for _, v := range p.textual {
		st.Textual = append(st.Textual, tfidfState{Field: v.field, Vocabulary: nonNil(v.vocabulary), IDF: nonNilFloats(v.idf)})
	}
	return json.Marshal(st)
}

// UnmarshalJSON restores a pipeline and rejects state that does not match
// the current attribute layout or is internally inconsistent.
func (p *Pipeline) UnmarshalJSON(data []byte) error {
	var st pipelineState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}

	if !slices.Equal(st.NumericFields, attributes.NumericFields) {
		return fmt.Errorf("%w: numeric fields differ from this build", ErrInvalidState)
	}
	if len(st.Categorical) != len(attributes.CategoricalFields) {
		return fmt.Errorf("%w: %d categorical encoders, expected %d", ErrInvalidState, len(st.Categorical), len(attributes.CategoricalFields))
	}
	if len(st.Textual) != len(attributes.TextualFields) {
		return fmt.Errorf("%w: %d text vectorizers, expected %d", ErrInvalidState, len(st.Textual), len(attributes.TextualFields))
	}

	restored := Pipeline{}
	for i, e := range st.Categorical {
		if e.Field != attributes.CategoricalFields[i] {
			return fmt.Errorf("%w: categorical encoder %d is for %q, expected %q", ErrInvalidState, i, e.Field, attributes.CategoricalFields[i])
		}
		if !strictlySorted(e.Categories) || slices.Contains(e.Categories, "") {
			return fmt.Errorf("%w: categories of %s are not sorted and unique", ErrInvalidState, e.Field)
		}
		restored.categorical = append(restored.categorical, &OneHotEncoder{field: e.Field, categories: e.Categories})
	}
	for i, v := range st.Textual {
		if v.Field != attributes.TextualFields[i] {
			return fmt.Errorf("%w: text vectorizer %d is for %q, expected %q", ErrInvalidState, i, v.Field, attributes.TextualFields[i])
		}
		if len(v.Vocabulary) != len(v.IDF) {
			return fmt.Errorf("%w: %s has %d terms and %d weights", ErrInvalidState, v.Field, len(v.Vocabulary), len(v.IDF))
		}
		if !strictlySorted(v.Vocabulary) {
			return fmt.Errorf("%w: vocabulary of %s is not sorted and unique", ErrInvalidState, v.Field)
		}
		if !allFinite(v.IDF) {
			return fmt.Errorf("%w: non-finite weight in %s", ErrInvalidState, v.Field)
		}
		restored.textual = append(restored.textual, newTfidf(v.Field, v.Vocabulary, v.IDF))
	}

	restored.width = restored.unscaledWidth()
	if st.Width != restored.width {
		return fmt.Errorf("%w: declared width %d, encoders give %d", ErrInvalidState, st.Width, restored.width)
	}
	if len(st.Scaler.Min) != restored.width || len(st.Scaler.Scale) != restored.width {
		return fmt.Errorf("%w: scaler covers %d/%d columns, expected %d", ErrInvalidState, len(st.Scaler.Min), len(st.Scaler.Scale), restored.width)
	}
	if !allFinite(st.Scaler.Min) || !allFinite(st.Scaler.Scale) {
		return fmt.Errorf("%w: non-finite scaler parameter", ErrInvalidState)
	}
	restored.scaler = &MinMaxScaler{min: st.Scaler.Min, scale: st.Scaler.Scale}

	*p = restored
	return nil
}

func strictlySorted(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] >= s[i] {
			return false
		}
	}
	return true
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilFloats(s []float64) []float64 {
	if s == nil {
		return []float64{}
	}
	return s
}
