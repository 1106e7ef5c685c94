package pefeatures

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"math"
)

// Walker limits. Real images stay far below them; crafted ones must not make
// the walker loop or allocate without bound.
const (
	maxImportDescriptors = 4096
	maxThunksPerLibrary  = 65536
	maxExportNames       = 65536
	maxNameLen           = 4096
)

const (
	importDescriptorSize = 20
	exportDirectorySize  = 40
	hintSize             = 2
	ordinalFlag32        = uint64(1) << 31
	ordinalFlag64        = uint64(1) << 63
	hintNameRVAMask      = uint64(0x7fffffff)
	ordinalMask          = uint64(0xffff)
)

var le = binary.LittleEndian

// image resolves RVAs of a parsed PE file against the raw sample bytes.
type image struct {
	data          []byte
	sections      []*pe.Section
	sizeOfHeaders uint64
	pe32plus      bool
}

// offset maps an RVA to a file offset. RVAs inside the headers map to
// themselves; others must fall into a section's raw data.
func (m *image) offset(rva uint64) (uint64, error) {
	if rva < m.sizeOfHeaders {
		if rva >= uint64(len(m.data)) {
			return 0, fmt.Errorf("%w: rva 0x%x", ErrTruncated, rva)
		}
		return rva, nil
	}
	for _, s := range m.sections {
		start := uint64(s.VirtualAddress)
		span := uint64(max(s.VirtualSize, s.Size))
		if rva < start || rva >= start+span {
			continue
		}
		delta := rva - start
		if delta >= uint64(s.Size) {
			// Inside the section's virtual extent but past its file data.
			return 0, fmt.Errorf("%w: rva 0x%x in uninitialized part of %s", ErrBadRVA, rva, s.Name)
		}
		off := uint64(s.Offset) + delta
		if off >= uint64(len(m.data)) {
			return 0, fmt.Errorf("%w: rva 0x%x maps past end of file", ErrTruncated, rva)
		}
		return off, nil
	}
	return 0, fmt.Errorf("%w: 0x%x", ErrBadRVA, rva)
}

func (m *image) read(rva uint64, n int) ([]byte, error) {
	off, err := m.offset(rva)
	if err != nil {
		return nil, err
	}
	end := off + uint64(n)
	if end > uint64(len(m.data)) {
		return nil, fmt.Errorf("%w: %d bytes at rva 0x%x", ErrTruncated, n, rva)
	}
	return m.data[off:end], nil
}

func (m *image) u32(rva uint64) (uint32, error) {
	b, err := m.read(rva, 4)
	if err != nil {
		return 0, err
	}
	return le.Uint32(b), nil
}

// cstring reads a NUL-terminated ASCII string at rva.
func (m *image) cstring(rva uint64) (string, error) {
	off, err := m.offset(rva)
	if err != nil {
		return "", err
	}
	limit := min(uint64(len(m.data)), off+maxNameLen)
	window := m.data[off:limit]
	if i := bytes.IndexByte(window, 0); i >= 0 {
		return string(window[:i]), nil
	}
	if limit == uint64(len(m.data)) {
		return "", fmt.Errorf("%w: unterminated string at rva 0x%x", ErrTruncated, rva)
	}
	return "", fmt.Errorf("%w: string at rva 0x%x longer than %d bytes", ErrTableTooLarge, rva, maxNameLen)
}

// importedLibrary is one import descriptor with its functions in thunk order.
type importedLibrary struct {
	Name      string
	Functions []string
}

// imports walks the import directory. An absent directory yields no libraries.
func (m *image) imports(dir pe.DataDirectory) ([]importedLibrary, error) {
	if dir.VirtualAddress == 0 {
		return nil, nil
	}

	var libs []importedLibrary
	for i := 0; ; i++ {
		if i >= maxImportDescriptors {
			return nil, fmt.Errorf("%w: more than %d import descriptors", ErrTableTooLarge, maxImportDescriptors)
		}
		desc, err := m.read(uint64(dir.VirtualAddress)+uint64(i*importDescriptorSize), importDescriptorSize)
		if err != nil {
			return nil, fmt.Errorf("import descriptor %d: %w", i, err)
		}
		lookupRVA := le.Uint32(desc[0:])
		nameRVA := le.Uint32(desc[12:])
		firstThunk := le.Uint32(desc[16:])
		if lookupRVA == 0 && nameRVA == 0 && firstThunk == 0 {
			break
		}

		name, err := m.cstring(uint64(nameRVA))
		if err != nil {
			return nil, fmt.Errorf("import descriptor %d name: %w", i, err)
		}

		// Bound images may have no lookup table; the IAT still holds the
		// original thunks on disk.
		thunks := lookupRVA
		if thunks == 0 {
			thunks = firstThunk
		}
		functions, err := m.importedFunctions(uint64(thunks))
		if err != nil {
			return nil, fmt.Errorf("imports of %s: %w", name, err)
		}
		libs = append(libs, importedLibrary{Name: name, Functions: functions})
	}
	return libs, nil
}

func (m *image) importedFunctions(rva uint64) ([]string, error) {
	thunkSize := 4
	ordinalFlag := ordinalFlag32
	if m.pe32plus {
		thunkSize = 8
		ordinalFlag = ordinalFlag64
	}

	var functions []string
	for j := 0; ; j++ {
		if j >= maxThunksPerLibrary {
			return nil, fmt.Errorf("%w: more than %d thunks", ErrTableTooLarge, maxThunksPerLibrary)
		}
		raw, err := m.read(rva+uint64(j*thunkSize), thunkSize)
		if err != nil {
			return nil, err
		}
		var thunk uint64
		if m.pe32plus {
			thunk = le.Uint64(raw)
		} else {
			thunk = uint64(le.Uint32(raw))
		}
		if thunk == 0 {
			return functions, nil
		}
		if thunk&ordinalFlag != 0 {
			functions = append(functions, fmt.Sprintf("ordinal%d", thunk&ordinalMask))
			continue
		}
		name, err := m.cstring((thunk & hintNameRVAMask) + hintSize)
		if err != nil {
			return nil, err
		}
		functions = append(functions, name)
	}
}

// exports returns the named exports in AddressOfNames order.
func (m *image) exports(dir pe.DataDirectory) ([]string, error) {
	if dir.VirtualAddress == 0 {
		return nil, nil
	}
	hdr, err := m.read(uint64(dir.VirtualAddress), exportDirectorySize)
	if err != nil {
		return nil, fmt.Errorf("export directory: %w", err)
	}
	numberOfNames := le.Uint32(hdr[24:])
	addressOfNames := uint64(le.Uint32(hdr[32:]))
	if numberOfNames > maxExportNames {
		return nil, fmt.Errorf("%w: %d export names", ErrTableTooLarge, numberOfNames)
	}

	names := make([]string, 0, numberOfNames)
	for i := range uint64(numberOfNames) {
		nameRVA, err := m.u32(addressOfNames + 4*i)
		if err != nil {
			return nil, fmt.Errorf("export name pointer %d: %w", i, err)
		}
		name, err := m.cstring(uint64(nameRVA))
		if err != nil {
			return nil, fmt.Errorf("export name %d: %w", i, err)
		}
		names = append(names, name)
	}
	return names, nil
}

// virtualSize is the end of the highest section in memory, aligned to the
// section alignment, starting from the end of the headers.
func virtualSize(headersEnd uint64, sections []*pe.Section, alignment uint64) int64 {
	size := headersEnd
	for _, s := range sections {
		size = max(size, uint64(s.VirtualAddress)+uint64(s.VirtualSize))
	}
	if alignment > 0 {
		size = (size + alignment - 1) / alignment * alignment
	}
	return clampInt64(size)
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
