//go:build test

package corpus

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isseis/go-pe-scorer/internal/attributes"
)

// emberLine is a trimmed EMBER 2018 record. Import keys are deliberately not
// in alphabetical order.
const emberLine = `{
  "sha256": "0abb4fda7d5b13801d63bee53e5e256be43e141faa077a6d149874242c3f02c2",
  "appeared": "2006-12",
  "label": 1,
  "histogram": [1, 2, 3],
  "general": {"size": 1032192, "vsize": 1130496, "has_debug": 0, "exports": 2,
    "imports": 3, "has_relocations": 1, "has_resources": 1, "has_signature": 0,
    "has_tls": 0, "symbols": 0},
  "header": {
    "coff": {"timestamp": 1124149349, "machine": "I386",
      "characteristics": ["CHARA_32BIT_MACHINE", "RELOCS_STRIPPED", "EXECUTABLE_IMAGE"]},
    "optional": {"subsystem": "WINDOWS_GUI",
      "dll_characteristics": ["DYNAMIC_BASE", "NX_COMPAT"], "magic": "PE32",
      "major_image_version": 1, "minor_image_version": 2,
      "major_linker_version": 8, "minor_linker_version": 0,
      "major_operating_system_version": 4, "minor_operating_system_version": 0,
      "major_subsystem_version": 4, "minor_subsystem_version": 1,
      "sizeof_code": 749568, "sizeof_headers": 4096, "sizeof_heap_commit": 4096}
  },
  "section": {"entry": ".text", "sections": [{"name": ".text"}, {"name": ".rdata"}, {"name": ".data"}]},
  "strings": {"numstrings": 14573, "paths": 3, "urls": 2, "registry": 1, "MZ": 51},
  "imports": {"USER32.dll": ["MessageBoxA"], "KERNEL32.dll": ["GetTickCount", "Sleep"]},
  "exports": ["Start", "Stop"]
}`

func compact(t *testing.T, s string) []byte {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return []byte(strings.Join(strings.Fields(s), " "))
}

func TestExtract_MapsEmberRecord(t *testing.T) {
	s, err := Extract(compact(t, emberLine))
	require.NoError(t, err)

	want := attributes.Record{
		Size:                        1032192,
		VirtualSize:                 1130496,
		Imports:                     3,
		Exports:                     2,
		HasRelocations:              1,
		HasResources:                1,
		Timestamp:                   1124149349,
		Machine:                     "I386",
		NumberOfSections:            3,
		CharacteristicsList:         "CHARA_32BIT_MACHINE RELOCS_STRIPPED EXECUTABLE_IMAGE",
		DllCharacteristicsList:      "DYNAMIC_BASE NX_COMPAT",
		Magic:                       "PE32",
		MajorImageVersion:           1,
		MinorImageVersion:           2,
		MajorLinkerVersion:          8,
		MajorOperatingSystemVersion: 4,
		MajorSubsystemVersion:       4,
		MinorSubsystemVersion:       1,
		SizeOfCode:                  749568,
		SizeOfHeaders:               4096,
		SizeOfHeapCommit:            4096,
		Subsystem:                   "WINDOWS_GUI",
		StringPaths:                 3,
		StringURLs:                  2,
		StringRegistry:              1,
		StringMZ:                    51,
		Libraries:                   "USER32.dll KERNEL32.dll",
		Functions:                   "MessageBoxA GetTickCount Sleep",
		ExportsList:                 "Start Stop",
	}
	assert.Equal(t, want, s.Record)
	assert.Equal(t, LabelMalicious, s.Label)
	assert.True(t, s.Labelled())
	assert.Equal(t, "0abb4fda7d5b13801d63bee53e5e256be43e141faa077a6d149874242c3f02c2", s.SHA256)
}

func TestExtract_ImportsKeepRecordOrder(t *testing.T) {
	line := strings.Replace(emberLine,
		`"imports": {"USER32.dll": ["MessageBoxA"], "KERNEL32.dll": ["GetTickCount", "Sleep"]}`,
		`"imports": {"ws2_32.dll": ["ordinal115"], "ADVAPI32.dll": [], "kernel32.dll": ["ExitProcess"]}`, 1)

	s, err := Extract([]byte(line))
	require.NoError(t, err)
	assert.Equal(t, "ws2_32.dll ADVAPI32.dll kernel32.dll", s.Record.Libraries)
	assert.Equal(t, "ordinal115 ExitProcess", s.Record.Functions)
}

func TestExtract_EmptyCollections(t *testing.T) {
	line := strings.NewReplacer(
		`"imports": {"USER32.dll": ["MessageBoxA"], "KERNEL32.dll": ["GetTickCount", "Sleep"]}`, `"imports": {}`,
		`"exports": ["Start", "Stop"]`, `"exports": []`,
		`"dll_characteristics": ["DYNAMIC_BASE", "NX_COMPAT"]`, `"dll_characteristics": []`,
	).Replace(emberLine)

	s, err := Extract([]byte(line))
	require.NoError(t, err)
	assert.Empty(t, s.Record.Libraries)
	assert.Empty(t, s.Record.Functions)
	assert.Empty(t, s.Record.ExportsList)
	assert.Empty(t, s.Record.DllCharacteristicsList)
}

func TestExtract_OptionalKeys(t *testing.T) {
	line := strings.NewReplacer(
		`"subsystem": "WINDOWS_GUI",`, ``,
		`"sha256": "0abb4fda7d5b13801d63bee53e5e256be43e141faa077a6d149874242c3f02c2",`, ``,
	).Replace(emberLine)

	s, err := Extract([]byte(line))
	require.NoError(t, err)
	assert.Empty(t, s.Record.Subsystem)
	assert.Empty(t, s.SHA256)
}

func TestExtract_LabelValues(t *testing.T) {
	for _, label := range []int{LabelBenign, LabelMalicious, LabelUnknown} {
		line := strings.Replace(emberLine, `"label": 1`, `"label": `+jsonInt(label), 1)

		s, err := Extract([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, label, s.Label)
		assert.Equal(t, label != LabelUnknown, s.Labelled())
	}
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestExtract_AcceptsIntegralFloatsAndBooleans(t *testing.T) {
	line := strings.NewReplacer(
		`"size": 1032192`, `"size": 1032192.0`,
		`"has_debug": 0`, `"has_debug": true`,
	).Replace(emberLine)

	s, err := Extract([]byte(line))
	require.NoError(t, err)
	assert.Equal(t, int64(1032192), s.Record.Size)
	assert.Equal(t, int64(1), s.Record.HasDebug)
}

func TestExtract_SchemaViolations(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantField string
		wantErr   error
	}{
		{name: "missing section", line: strings.Replace(emberLine, `"general"`, `"generic"`, 1), wantField: "general.size", wantErr: ErrMissingField},
		{name: "missing nested key", line: strings.Replace(emberLine, `"vsize"`, `"vsz"`, 1), wantField: "general.vsize", wantErr: ErrMissingField},
		{name: "missing optional header key", line: strings.Replace(emberLine, `"magic"`, `"magik"`, 1), wantField: "header.optional.magic", wantErr: ErrMissingField},
		{name: "missing sections list", line: strings.Replace(emberLine, `"sections"`, `"parts"`, 1), wantField: "section.sections", wantErr: ErrMissingField},
		{name: "missing MZ count", line: strings.Replace(emberLine, `"MZ": 51`, `"mz": 51`, 1), wantField: "strings.MZ", wantErr: ErrMissingField},
		{name: "missing imports", line: strings.Replace(emberLine, `"imports": {`, `"imported": {`, 1), wantField: "imports", wantErr: ErrMissingField},
		{name: "missing exports", line: strings.Replace(emberLine, `"exports": [`, `"exported": [`, 1), wantField: "exports", wantErr: ErrMissingField},
		{name: "missing label", line: strings.Replace(emberLine, `"label": 1,`, ``, 1), wantField: "label", wantErr: ErrMissingField},
		{name: "string where number expected", line: strings.Replace(emberLine, `"timestamp": 1124149349`, `"timestamp": "2005"`, 1), wantField: "header.coff.timestamp", wantErr: ErrWrongType},
		{name: "fractional number", line: strings.Replace(emberLine, `"symbols": 0`, `"symbols": 0.5`, 1), wantField: "general.symbols", wantErr: ErrWrongType},
		{name: "number where string expected", line: strings.Replace(emberLine, `"machine": "I386"`, `"machine": 332`, 1), wantField: "header.coff.machine", wantErr: ErrWrongType},
		{name: "section is not an object", line: strings.Replace(emberLine, `"strings": {`, `"strings": [], "x": {`, 1), wantField: "strings", wantErr: ErrWrongType},
		{name: "import list of numbers", line: strings.Replace(emberLine, `["MessageBoxA"]`, `[1]`, 1), wantField: "imports.USER32.dll", wantErr: ErrWrongType},
		{name: "characteristics not strings", line: strings.Replace(emberLine, `"RELOCS_STRIPPED"`, `2`, 1), wantField: "header.coff.characteristics", wantErr: ErrWrongType},
		{name: "not an object", line: `[1, 2, 3]`, wantErr: ErrMalformedRecord},
		{name: "null", line: `null`, wantErr: ErrMalformedRecord},
		{name: "truncated json", line: emberLine[:200], wantErr: ErrMalformedRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract([]byte(tt.line))
			require.Error(t, err)

			var sv *SchemaViolationError
			require.ErrorAs(t, err, &sv)
			assert.Equal(t, tt.wantField, sv.Field)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSchemaViolationError_Message(t *testing.T) {
	err := &SchemaViolationError{Path: "train.jsonl", Line: 7, Field: "general.size", Err: ErrMissingField}
	assert.Equal(t, "train.jsonl:7: general.size: required field missing", err.Error())

	err = &SchemaViolationError{Err: ErrMalformedRecord}
	assert.Equal(t, "record: malformed corpus record", err.Error())
}
