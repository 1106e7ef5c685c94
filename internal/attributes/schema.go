package attributes

// NumericFields lists the numeric attributes fed to the model, in column order.
var NumericFields = []string{
	"string_paths", "string_urls", "string_registry", "string_MZ", "size",
	"virtual_size", "has_debug", "imports", "exports", "has_relocations",
	"has_resources", "has_signature", "has_tls", "symbols", "timestamp",
	"numberof_sections", "major_image_version", "minor_image_version",
	"major_linker_version", "minor_linker_version", "major_operating_system_version",
	"minor_operating_system_version", "major_subsystem_version",
	"minor_subsystem_version", "sizeof_code", "sizeof_headers", "sizeof_heap_commit",
}

// CategoricalFields lists the categorical attributes fed to the model, in column order.
var CategoricalFields = []string{"machine", "magic"}

// TextualFields lists the token-bag attributes fed to the model, in column order.
var TextualFields = []string{
	"libraries", "functions", "exports_list",
	"dll_characteristics_list", "characteristics_list",
}

// Numeric returns the numeric attributes in NumericFields order.
func (r *Record) Numeric() []float64 {
	return []float64{
		float64(r.StringPaths),
		float64(r.StringURLs),
		float64(r.StringRegistry),
		float64(r.StringMZ),
		float64(r.Size),
		float64(r.VirtualSize),
		float64(r.HasDebug),
		float64(r.Imports),
		float64(r.Exports),
		float64(r.HasRelocations),
		float64(r.HasResources),
		float64(r.HasSignature),
		float64(r.HasTLS),
		float64(r.Symbols),
		float64(r.Timestamp),
		float64(r.NumberOfSections),
		float64(r.MajorImageVersion),
		float64(r.MinorImageVersion),
		float64(r.MajorLinkerVersion),
		float64(r.MinorLinkerVersion),
		float64(r.MajorOperatingSystemVersion),
		float64(r.MinorOperatingSystemVersion),
		float64(r.MajorSubsystemVersion),
		float64(r.MinorSubsystemVersion),
		float64(r.SizeOfCode),
		float64(r.SizeOfHeaders),
		float64(r.SizeOfHeapCommit),
	}
}

// Categorical returns the categorical attributes in CategoricalFields order.
func (r *Record) Categorical() []string {
	return []string{r.Machine, r.Magic}
}

// Textual returns the token-bag attributes in TextualFields order.
func (r *Record) Textual() []string {
	return []string{
		r.Libraries,
		r.Functions,
		r.ExportsList,
		r.DllCharacteristicsList,
		r.CharacteristicsList,
	}
}

// Bool converts a flag to the 0/1 encoding used by the record.
func Bool(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
