package features

import (
	"cmp"
	"maps"
	"math"
	"slices"
	"strings"
	"unicode"
)

// DefaultVocabularySize is the per-field vocabulary bound used when Options
// leaves it unset.
const DefaultVocabularySize = 300

// TfidfVectorizer turns a space-joined token bag into TF-IDF weights over a
// bounded vocabulary.
//
// Text is lowercased and split into maximal runs of letters, digits and
// underscores; runs shorter than two characters are dropped. The vocabulary
// keeps the most frequent terms of the fitting corpus (ties broken
// alphabetically) and its columns are in alphabetical order. Weights are raw
// counts times the smoothed inverse document frequency
// ln((1+n)/(1+df))+1, and each row is scaled to unit L2 norm.
type TfidfVectorizer struct {
	field      string
	vocabulary []string
	idf        []float64
	index      map[string]int
}

// tokenize splits text into lowercase terms.
func tokenize(text string) []string {
	isWord := func(r rune) bool {
		return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
	}
	var terms []string
	for _, run := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !isWord(r) }) {
		if len([]rune(run)) >= 2 {
			terms = append(terms, run)
		}
	}
	return terms
}

func fitTfidf(field string, docs []string, maxTerms int) *TfidfVectorizer {
	termFreq := map[string]int{}
	docFreq := map[string]int{}
	for _, doc := range docs {
		seen := map[string]bool{}
		for _, term := range tokenize(doc) {
			termFreq[term]++
			if !seen[term] {
				seen[term] = true
				docFreq[term]++
			}
		}
	}

	terms := slices.Collect(maps.Keys(termFreq))
	slices.SortFunc(terms, func(a, b string) int {
		if c := cmp.Compare(termFreq[b], termFreq[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	slices.Sort(terms)

	n := float64(len(docs))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
	return newTfidf(field, terms, idf)
}

func newTfidf(field string, vocabulary []string, idf []float64) *TfidfVectorizer {
	index := make(map[string]int, len(vocabulary))
	for i, term := range vocabulary {
		index[term] = i
	}
	return &TfidfVectorizer{field: field, vocabulary: vocabulary, idf: idf, index: index}
}

// Field returns the attribute the vectorizer was fitted on.
func (v *TfidfVectorizer) Field() string { return v.field }

// Width is the vocabulary size. A field that was empty across the whole
// fitting batch has width 0.
func (v *TfidfVectorizer) Width() int { return len(v.vocabulary) }

// Vocabulary returns a copy of the fitted terms in column order.
func (v *TfidfVectorizer) Vocabulary() []string { return slices.Clone(v.vocabulary) }

// encode writes the weights of text into dst, which must be Width() long and
// zeroed. Terms outside the vocabulary are ignored.
func (v *TfidfVectorizer) encode(text string, dst []float64) {
	if len(v.vocabulary) == 0 {
		return
	}
	for _, term := range tokenize(text) {
		if i, ok := v.index[term]; ok {
			dst[i]++
		}
	}

	var sumSq float64
	for i := range dst {
		dst[i] *= v.idf[i]
		sumSq += dst[i] * dst[i]
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range dst {
		dst[i] /= norm
	}
}

func (v *TfidfVectorizer) columns() []string {
	out := make([]string, len(v.vocabulary))
	for i, term := range v.vocabulary {
		out[i] = v.field + ":" + term
	}
	return out
}
