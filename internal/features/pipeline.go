package features

import (
	"fmt"

	"github.com/isseis/go-pe-scorer/internal/attributes"
)

// Options controls Fit.
type Options struct {
	// VocabularySize bounds every TF-IDF vocabulary. Zero selects
	// DefaultVocabularySize.
	VocabularySize int
}

// Pipeline is a fitted feature transformation. It is safe for concurrent use.
type Pipeline struct {
	categorical []*OneHotEncoder
	textual     []*TfidfVectorizer
	scaler      *MinMaxScaler
	width       int
}

// Fit builds a pipeline from records and returns it with the scaled feature
// matrix of the same records.
func Fit(records []attributes.Record, opts Options) (*Pipeline, [][]float64, error) {
	if len(records) == 0 {
		return nil, nil, ErrEmptyBatch
	}
	vocab := opts.VocabularySize
	if vocab == 0 {
		vocab = DefaultVocabularySize
	}
	if vocab < 0 {
		return nil, nil, fmt.Errorf("%w: vocabulary size %d", ErrInvalidOptions, vocab)
	}

	p := &Pipeline{}
	categorical := make([][]string, len(attributes.CategoricalFields))
	textual := make([][]string, len(attributes.TextualFields))
	for i := range records {
		for j, v := range records[i].Categorical() {
			categorical[j] = append(categorical[j], v)
		}
		for j, v := range records[i].Textual() {
			textual[j] = append(textual[j], v)
		}
	}
	for j, field := range attributes.CategoricalFields {
		p.categorical = append(p.categorical, fitOneHot(field, categorical[j]))
	}
	for j, field := range attributes.TextualFields {
		p.textual = append(p.textual, fitTfidf(field, textual[j], vocab))
	}
	p.width = p.unscaledWidth()

	rows := make([][]float64, len(records))
	for i := range records {
		rows[i] = p.assemble(&records[i])
	}
	p.scaler = fitMinMax(rows, p.width)
	for _, row := range rows {
		p.scaler.apply(row)
	}
	return p, rows, nil
}

// Transform maps records onto the fitted columns. Unseen categories go to
// the unseen bucket and unknown terms are dropped; neither is an error.
func (p *Pipeline) Transform(records []attributes.Record) ([][]float64, error) {
	rows := make([][]float64, len(records))
	for i := range records {
		row, err := p.TransformOne(&records[i])
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

// TransformOne maps a single record onto the fitted columns.
func (p *Pipeline) TransformOne(rec *attributes.Record) ([]float64, error) {
	row := p.assemble(rec)
	if len(row) != p.width {
		return nil, &DimensionMismatchError{Stage: "assemble", Want: p.width, Got: len(row)}
	}
	if p.scaler.Width() != p.width {
		return nil, &DimensionMismatchError{Stage: "scale", Want: p.width, Got: p.scaler.Width()}
	}
	p.scaler.apply(row)
	return row, nil
}

// Width is the number of columns of every transformed row.
func (p *Pipeline) Width() int { return p.width }

// Columns names every output column in order, for diagnostics.
func (p *Pipeline) Columns() []string {
	cols := make([]string, 0, p.width)
	for _, f := range attributes.NumericFields {
		cols = append(cols, "numeric:"+f)
	}
	for _, e := range p.categorical {
		cols = append(cols, e.columns()...)
	}
	for _, v := range p.textual {
		cols = append(cols, v.columns()...)
	}
	return cols
}

// Encoders returns the fitted categorical encoders in column order.
func (p *Pipeline) Encoders() []*OneHotEncoder {
	return append([]*OneHotEncoder(nil), p.categorical...)
}

// Vectorizers returns the fitted TF-IDF vectorizers in column order.
func (p *Pipeline) Vectorizers() []*TfidfVectorizer {
	return append([]*TfidfVectorizer(nil), p.textual...)
}

func (p *Pipeline) unscaledWidth() int {
	w := len(attributes.NumericFields)
	for _, e := range p.categorical {
		w += e.Width()
	}
	for _, v := range p.textual {
		w += v.Width()
	}
	return w
}

// assemble builds the unscaled row of rec.
func (p *Pipeline) assemble(rec *attributes.Record) []float64 {
	row := make([]float64, 0, p.width)
	row = append(row, rec.Numeric()...)

	for j, v := range rec.Categorical() {
		if j >= len(p.categorical) {
			break
		}
		e := p.categorical[j]
		start := len(row)
		row = append(row, make([]float64, e.Width())...)
		e.encode(v, row[start:])
	}
	for j, text := range rec.Textual() {
		if j >= len(p.textual) {
			break
		}
		v := p.textual[j]
		start := len(row)
		row = append(row, make([]float64, v.Width())...)
		v.encode(text, row[start:])
	}
	return row
}
