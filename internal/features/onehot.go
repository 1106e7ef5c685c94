package features

import (
	"slices"
)

// UnseenColumn names the trailing bucket of a OneHotEncoder.
const UnseenColumn = "<unseen>"

// OneHotEncoder maps one categorical field to K+1 indicator columns: one per
// category observed at fit time, sorted, and a trailing column for values
// never seen. The empty string is never a category.
type OneHotEncoder struct {
	field      string
	categories []string
}

func fitOneHot(field string, values []string) *OneHotEncoder {
	var cats []string
	for _, v := range values {
		if v != "" {
			cats = append(cats, v)
		}
	}
	slices.Sort(cats)
	return &OneHotEncoder{field: field, categories: slices.Compact(cats)}
}

// Field returns the attribute the encoder was fitted on.
func (e *OneHotEncoder) Field() string { return e.field }

// Width is the number of columns the encoder produces.
func (e *OneHotEncoder) Width() int { return len(e.categories) + 1 }

// encode writes the indicator columns of v into dst, which must be Width()
// long and zeroed.
func (e *OneHotEncoder) encode(v string, dst []float64) {
	if i, found := slices.BinarySearch(e.categories, v); found {
		dst[i] = 1
		return
	}
	dst[len(e.categories)] = 1
}

func (e *OneHotEncoder) columns() []string {
	out := make([]string, 0, e.Width())
	for _, c := range e.categories {
		out = append(out, e.field+"="+c)
	}
	return append(out, e.field+"="+UnseenColumn)
}
