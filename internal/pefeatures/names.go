package pefeatures

import (
	"debug/pe"
	"strings"
)

const unknownName = "UNKNOWN"

var machineNames = map[uint16]string{
	pe.IMAGE_FILE_MACHINE_UNKNOWN:   "UNKNOWN",
	pe.IMAGE_FILE_MACHINE_AM33:      "AM33",
	pe.IMAGE_FILE_MACHINE_AMD64:     "AMD64",
	pe.IMAGE_FILE_MACHINE_ARM:       "ARM",
	pe.IMAGE_FILE_MACHINE_ARMNT:     "ARMNT",
	pe.IMAGE_FILE_MACHINE_ARM64:     "ARM64",
	pe.IMAGE_FILE_MACHINE_EBC:       "EBC",
	pe.IMAGE_FILE_MACHINE_I386:      "I386",
	pe.IMAGE_FILE_MACHINE_IA64:      "IA64",
	pe.IMAGE_FILE_MACHINE_M32R:      "M32R",
	pe.IMAGE_FILE_MACHINE_MIPS16:    "MIPS16",
	pe.IMAGE_FILE_MACHINE_MIPSFPU:   "MIPSFPU",
	pe.IMAGE_FILE_MACHINE_MIPSFPU16: "MIPSFPU16",
	pe.IMAGE_FILE_MACHINE_POWERPC:   "POWERPC",
	pe.IMAGE_FILE_MACHINE_POWERPCFP: "POWERPCFP",
	pe.IMAGE_FILE_MACHINE_R4000:     "R4000",
	pe.IMAGE_FILE_MACHINE_RISCV32:   "RISCV32",
	pe.IMAGE_FILE_MACHINE_RISCV64:   "RISCV64",
	pe.IMAGE_FILE_MACHINE_SH3:       "SH3",
	pe.IMAGE_FILE_MACHINE_SH3DSP:    "SH3DSP",
	pe.IMAGE_FILE_MACHINE_SH4:       "SH4",
	pe.IMAGE_FILE_MACHINE_SH5:       "SH5",
	pe.IMAGE_FILE_MACHINE_THUMB:     "THUMB",
	pe.IMAGE_FILE_MACHINE_WCEMIPSV2: "WCEMIPSV2",
}

const (
	magicPE32     = 0x10b
	magicPE32Plus = 0x20b
)

var magicNames = map[uint16]string{
	magicPE32:     "PE32",
	magicPE32Plus: "PE32_PLUS",
}

var subsystemNames = map[uint16]string{
	pe.IMAGE_SUBSYSTEM_UNKNOWN:                  "UNKNOWN",
	pe.IMAGE_SUBSYSTEM_NATIVE:                   "NATIVE",
	pe.IMAGE_SUBSYSTEM_WINDOWS_GUI:              "WINDOWS_GUI",
	pe.IMAGE_SUBSYSTEM_WINDOWS_CUI:              "WINDOWS_CUI",
	pe.IMAGE_SUBSYSTEM_OS2_CUI:                  "OS2_CUI",
	pe.IMAGE_SUBSYSTEM_POSIX_CUI:                "POSIX_CUI",
	pe.IMAGE_SUBSYSTEM_NATIVE_WINDOWS:           "NATIVE_WINDOWS",
	pe.IMAGE_SUBSYSTEM_WINDOWS_CE_GUI:           "WINDOWS_CE_GUI",
	pe.IMAGE_SUBSYSTEM_EFI_APPLICATION:          "EFI_APPLICATION",
	pe.IMAGE_SUBSYSTEM_EFI_BOOT_SERVICE_DRIVER:  "EFI_BOOT_SERVICE_DRIVER",
	pe.IMAGE_SUBSYSTEM_EFI_RUNTIME_DRIVER:       "EFI_RUNTIME_DRIVER",
	pe.IMAGE_SUBSYSTEM_EFI_ROM:                  "EFI_ROM",
	pe.IMAGE_SUBSYSTEM_XBOX:                     "XBOX",
	pe.IMAGE_SUBSYSTEM_WINDOWS_BOOT_APPLICATION: "WINDOWS_BOOT_APPLICATION",
}

type flagName struct {
	bit  uint16
	name string
}

// characteristicNames is in ascending bit order.
var characteristicNames = []flagName{
	{pe.IMAGE_FILE_RELOCS_STRIPPED, "RELOCS_STRIPPED"},
	{pe.IMAGE_FILE_EXECUTABLE_IMAGE, "EXECUTABLE_IMAGE"},
	{pe.IMAGE_FILE_LINE_NUMS_STRIPPED, "LINE_NUMS_STRIPPED"},
	{pe.IMAGE_FILE_LOCAL_SYMS_STRIPPED, "LOCAL_SYMS_STRIPPED"},
	{pe.IMAGE_FILE_AGGRESIVE_WS_TRIM, "AGGRESSIVE_WS_TRIM"},
	{pe.IMAGE_FILE_LARGE_ADDRESS_AWARE, "LARGE_ADDRESS_AWARE"},
	{pe.IMAGE_FILE_BYTES_REVERSED_LO, "BYTES_REVERSED_LO"},
	{pe.IMAGE_FILE_32BIT_MACHINE, "CHARA_32BIT_MACHINE"},
	{pe.IMAGE_FILE_DEBUG_STRIPPED, "DEBUG_STRIPPED"},
	{pe.IMAGE_FILE_REMOVABLE_RUN_FROM_SWAP, "REMOVABLE_RUN_FROM_SWAP"},
	{pe.IMAGE_FILE_NET_RUN_FROM_SWAP, "NET_RUN_FROM_SWAP"},
	{pe.IMAGE_FILE_SYSTEM, "SYSTEM"},
	{pe.IMAGE_FILE_DLL, "DLL"},
	{pe.IMAGE_FILE_UP_SYSTEM_ONLY, "UP_SYSTEM_ONLY"},
	{pe.IMAGE_FILE_BYTES_REVERSED_HI, "BYTES_REVERSED_HI"},
}

// dllCharacteristicNames is in ascending bit order.
var dllCharacteristicNames = []flagName{
	{pe.IMAGE_DLLCHARACTERISTICS_HIGH_ENTROPY_VA, "HIGH_ENTROPY_VA"},
	{pe.IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE, "DYNAMIC_BASE"},
	{pe.IMAGE_DLLCHARACTERISTICS_FORCE_INTEGRITY, "FORCE_INTEGRITY"},
	{pe.IMAGE_DLLCHARACTERISTICS_NX_COMPAT, "NX_COMPAT"},
	{pe.IMAGE_DLLCHARACTERISTICS_NO_ISOLATION, "NO_ISOLATION"},
	{pe.IMAGE_DLLCHARACTERISTICS_NO_SEH, "NO_SEH"},
	{pe.IMAGE_DLLCHARACTERISTICS_NO_BIND, "NO_BIND"},
	{pe.IMAGE_DLLCHARACTERISTICS_APPCONTAINER, "APPCONTAINER"},
	{pe.IMAGE_DLLCHARACTERISTICS_WDM_DRIVER, "WDM_DRIVER"},
	{pe.IMAGE_DLLCHARACTERISTICS_GUARD_CF, "GUARD_CF"},
	{pe.IMAGE_DLLCHARACTERISTICS_TERMINAL_SERVER_AWARE, "TERMINAL_SERVER_AWARE"},
}

func lookupName(names map[uint16]string, v uint16) string {
	if name, ok := names[v]; ok {
		return name
	}
	return unknownName
}

// flagList renders the set bits of v as space-joined names in table order.
func flagList(v uint16, table []flagName) string {
	var names []string
	for _, f := range table {
		if v&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, " ")
}
