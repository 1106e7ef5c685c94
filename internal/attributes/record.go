// Package attributes defines the fixed-layout attribute record shared by the
// binary and corpus extractors and consumed by the feature pipeline.
//
// Every extractor fills the same struct, so the field set never depends on the
// input: structures missing from a sample (no exports, no optional header
// fields) leave zero values and empty strings behind, never absent keys.
package attributes

// Record holds the attributes extracted from a single PE sample.
//
// JSON tags carry the attribute names used by the training corpora, so a
// marshalled Record always contains every key.
type Record struct {
	// General information.
	Size           int64 `json:"size"`
	VirtualSize    int64 `json:"virtual_size"`
	HasDebug       int64 `json:"has_debug"`
	Imports        int64 `json:"imports"`
	Exports        int64 `json:"exports"`
	HasRelocations int64 `json:"has_relocations"`
	HasResources   int64 `json:"has_resources"`
	HasSignature   int64 `json:"has_signature"`
	HasTLS         int64 `json:"has_tls"`
	Symbols        int64 `json:"symbols"`

	// COFF header.
	Timestamp            int64  `json:"timestamp"`
	Machine              string `json:"machine"`
	NumberOfSections     int64  `json:"numberof_sections"`
	NumberOfSymbols      int64  `json:"numberof_symbols"`
	PointerToSymbolTable int64  `json:"pointerto_symbol_table"`
	SizeOfOptionalHeader int64  `json:"sizeof_optional_header"`
	Characteristics      int64  `json:"characteristics"`
	CharacteristicsList  string `json:"characteristics_list"`

	// Optional header.
	BaseOfCode                  int64  `json:"baseof_code"`
	BaseOfData                  int64  `json:"baseof_data"`
	DllCharacteristics          int64  `json:"dll_characteristics"`
	DllCharacteristicsList      string `json:"dll_characteristics_list"`
	FileAlignment               int64  `json:"file_alignment"`
	ImageBase                   int64  `json:"imagebase"`
	Magic                       string `json:"magic"`
	PEType                      int64  `json:"PE_TYPE"`
	MajorImageVersion           int64  `json:"major_image_version"`
	MinorImageVersion           int64  `json:"minor_image_version"`
	MajorLinkerVersion          int64  `json:"major_linker_version"`
	MinorLinkerVersion          int64  `json:"minor_linker_version"`
	MajorOperatingSystemVersion int64  `json:"major_operating_system_version"`
	MinorOperatingSystemVersion int64  `json:"minor_operating_system_version"`
	MajorSubsystemVersion       int64  `json:"major_subsystem_version"`
	MinorSubsystemVersion       int64  `json:"minor_subsystem_version"`
	NumberOfRvaAndSizes         int64  `json:"numberof_rva_and_size"`
	SizeOfCode                  int64  `json:"sizeof_code"`
	SizeOfHeaders               int64  `json:"sizeof_headers"`
	SizeOfHeapCommit            int64  `json:"sizeof_heap_commit"`
	SizeOfImage                 int64  `json:"sizeof_image"`
	SizeOfInitializedData       int64  `json:"sizeof_initialized_data"`
	SizeOfUninitializedData     int64  `json:"sizeof_uninitialized_data"`
	Subsystem                   string `json:"subsystem"`

	// Byte statistics.
	Entropy        float64 `json:"entropy"`
	StringPaths    int64   `json:"string_paths"`
	StringURLs     int64   `json:"string_urls"`
	StringRegistry int64   `json:"string_registry"`
	StringMZ       int64   `json:"string_MZ"`

	// Token bags (space-joined, order carries no meaning).
	Functions   string `json:"functions"`
	Libraries   string `json:"libraries"`
	ExportsList string `json:"exports_list"`
}
