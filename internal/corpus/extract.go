package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/isseis/go-pe-scorer/internal/attributes"
)

// Label values found in EMBER corpora. Samples labelled LabelUnknown are
// unlabelled and never reach training.
const (
	LabelBenign    = 0
	LabelMalicious = 1
	LabelUnknown   = -1
)

// Sample is one corpus record with its label.
type Sample struct {
	Record attributes.Record
	Label  int
	// SHA256 is the sample hash when the record carries one.
	SHA256 string
}

// Labelled reports whether the sample has a benign or malicious label.
func (s Sample) Labelled() bool {
	return s.Label == LabelBenign || s.Label == LabelMalicious
}

// Extract decodes one EMBER JSON object. A missing required key or a value
// of the wrong type yields a *SchemaViolationError naming the dotted field
// path; a line that is not a JSON object wraps ErrMalformedRecord.
func Extract(line []byte) (Sample, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(line, &root); err != nil {
		return Sample{}, &SchemaViolationError{Err: fmt.Errorf("%w: %v", ErrMalformedRecord, err)}
	}
	if root == nil {
		return Sample{}, &SchemaViolationError{Err: ErrMalformedRecord}
	}

	d := &document{raw: root, tree: map[string]any{}}

	var rec attributes.Record

	rec.Size = d.int("general", "size")
	rec.VirtualSize = d.int("general", "vsize")
	rec.HasDebug = d.int("general", "has_debug")
	rec.Imports = d.int("general", "imports")
	rec.Exports = d.int("general", "exports")
	rec.HasRelocations = d.int("general", "has_relocations")
	rec.HasResources = d.int("general", "has_resources")
	rec.HasSignature = d.int("general", "has_signature")
	rec.HasTLS = d.int("general", "has_tls")
	rec.Symbols = d.int("general", "symbols")

	rec.Timestamp = d.int("header", "coff", "timestamp")
	rec.Machine = d.str("header", "coff", "machine")
	rec.NumberOfSections = int64(len(d.list("section", "sections")))
	rec.CharacteristicsList = strings.Join(d.strs("header", "coff", "characteristics"), " ")

	rec.DllCharacteristicsList = strings.Join(d.strs("header", "optional", "dll_characteristics"), " ")
	rec.Magic = d.str("header", "optional", "magic")
	rec.MajorImageVersion = d.int("header", "optional", "major_image_version")
	rec.MinorImageVersion = d.int("header", "optional", "minor_image_version")
	rec.MajorLinkerVersion = d.int("header", "optional", "major_linker_version")
	rec.MinorLinkerVersion = d.int("header", "optional", "minor_linker_version")
	rec.MajorOperatingSystemVersion = d.int("header", "optional", "major_operating_system_version")
	rec.MinorOperatingSystemVersion = d.int("header", "optional", "minor_operating_system_version")
	rec.MajorSubsystemVersion = d.int("header", "optional", "major_subsystem_version")
	rec.MinorSubsystemVersion = d.int("header", "optional", "minor_subsystem_version")
	rec.SizeOfCode = d.int("header", "optional", "sizeof_code")
	rec.SizeOfHeaders = d.int("header", "optional", "sizeof_headers")
	rec.SizeOfHeapCommit = d.int("header", "optional", "sizeof_heap_commit")
	rec.Subsystem = d.optionalStr("header", "optional", "subsystem")

	rec.StringPaths = d.int("strings", "paths")
	rec.StringURLs = d.int("strings", "urls")
	rec.StringRegistry = d.int("strings", "registry")
	rec.StringMZ = d.int("strings", "MZ")

	libraries, functions := d.imports()
	rec.Libraries = strings.Join(libraries, " ")
	rec.Functions = strings.Join(functions, " ")
	rec.ExportsList = strings.Join(d.strs("exports"), " ")

	label := d.int("label")
	sha := d.optionalStr("sha256")

	if d.err != nil {
		return Sample{}, d.err
	}
	return Sample{Record: rec, Label: int(label), SHA256: sha}, nil
}

// document looks up dotted paths in a decoded record. The first failure is
// kept in err and later lookups return zero values.
type document struct {
	raw  map[string]json.RawMessage
	tree map[string]any
	err  *SchemaViolationError
}

func (d *document) fail(path []string, err error) {
	if d.err == nil {
		d.err = &SchemaViolationError{Field: strings.Join(path, "."), Err: err}
	}
}

// lookup returns the value at path, decoding the top-level section lazily.
func (d *document) lookup(path []string) (any, bool) {
	if d.err != nil {
		return nil, false
	}
	top, ok := d.tree[path[0]]
	if !ok {
		raw, present := d.raw[path[0]]
		if !present {
			return nil, false
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&top); err != nil {
			d.fail(path[:1], fmt.Errorf("%w: %v", ErrMalformedRecord, err))
			return nil, false
		}
		d.tree[path[0]] = top
	}

	v := top
	for i := 1; i < len(path); i++ {
		m, isMap := v.(map[string]any)
		if !isMap {
			d.fail(path[:i], fmt.Errorf("%w: want object, got %s", ErrWrongType, jsonType(v)))
			return nil, false
		}
		if v, ok = m[path[i]]; !ok {
			return nil, false
		}
	}
	return v, true
}

func (d *document) required(path []string) (any, bool) {
	v, ok := d.lookup(path)
	if !ok {
		d.fail(path, ErrMissingField)
	}
	return v, ok && d.err == nil
}

func (d *document) int(path ...string) int64 {
	v, ok := d.required(path)
	if !ok {
		return 0
	}
	n, err := toInt64(v)
	if err != nil {
		d.fail(path, err)
	}
	return n
}

func (d *document) str(path ...string) string {
	v, ok := d.required(path)
	if !ok {
		return ""
	}
	s, isString := v.(string)
	if !isString {
		d.fail(path, fmt.Errorf("%w: want string, got %s", ErrWrongType, jsonType(v)))
	}
	return s
}

// optionalStr returns "" for an absent or null key.
func (d *document) optionalStr(path ...string) string {
	v, ok := d.lookup(path)
	if !ok || v == nil {
		return ""
	}
	s, isString := v.(string)
	if !isString {
		d.fail(path, fmt.Errorf("%w: want string, got %s", ErrWrongType, jsonType(v)))
	}
	return s
}

func (d *document) list(path ...string) []any {
	v, ok := d.required(path)
	if !ok {
		return nil
	}
	l, isList := v.([]any)
	if !isList {
		d.fail(path, fmt.Errorf("%w: want array, got %s", ErrWrongType, jsonType(v)))
	}
	return l
}

func (d *document) strs(path ...string) []string {
	l := d.list(path...)
	out := make([]string, 0, len(l))
	for _, item := range l {
		s, isString := item.(string)
		if !isString {
			d.fail(path, fmt.Errorf("%w: want array of strings, found %s", ErrWrongType, jsonType(item)))
			return nil
		}
		out = append(out, s)
	}
	return out
}

// imports walks the "imports" object token by token to keep the key order
// of the record: libraries are the keys, functions the concatenated values.
func (d *document) imports() (libraries, functions []string) {
	path := []string{"imports"}
	if d.err != nil {
		return nil, nil
	}
	raw, ok := d.raw["imports"]
	if !ok {
		d.fail(path, ErrMissingField)
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		d.fail(path, fmt.Errorf("%w: %v", ErrMalformedRecord, err))
		return nil, nil
	}
	if delim, isDelim := tok.(json.Delim); !isDelim || delim != '{' {
		d.fail(path, fmt.Errorf("%w: want object", ErrWrongType))
		return nil, nil
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			d.fail(path, fmt.Errorf("%w: %v", ErrMalformedRecord, err))
			return nil, nil
		}
		library, _ := tok.(string)

		var names []string
		if err := dec.Decode(&names); err != nil {
			d.fail([]string{"imports", library}, fmt.Errorf("%w: want array of strings: %v", ErrWrongType, err))
			return nil, nil
		}
		libraries = append(libraries, library)
		functions = append(functions, names...)
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		d.fail(path, fmt.Errorf("%w: %v", ErrMalformedRecord, err))
		return nil, nil
	}
	return libraries, functions
}

// toInt64 accepts JSON integers, integral floats and booleans.
func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, fmt.Errorf("%w: %s is not an integer", ErrWrongType, x)
		}
		return int64(f), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: want number, got %s", ErrWrongType, jsonType(v))
	}
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
