package tpm

import "strings"

// permittedVendors is the fixed set of TPM manufacturer IDs spec section 6
// recognizes, each a 4-character ASCII vendor code packed into a 4-byte
// big-endian word and rendered as 8 uppercase hex characters (TCG TPM
// vendor ID registry). Matching is case-insensitive on the hex string.
var permittedVendors = map[string]struct{}{
	"FFFFF1D0": {}, // Google (software TPM / emulator)
	"414D4400": {}, // AMD
	"41544D4C": {}, // Atmel
	"4252434D": {}, // Broadcom
	"4353434F": {}, // Cisco
	"464C5953": {}, // Flyslice Technologies
	"48504500": {}, // HPE
	"49424D00": {}, // IBM
	"49465800": {}, // Infineon
	"494E5443": {}, // Intel
	"4C454E00": {}, // Lenovo
	"4D534654": {}, // Microsoft
	"4E534D20": {}, // National Semiconductor
	"4E545A00": {}, // Nationz
	"4E544300": {}, // Nuvoton Technology
	"51434F4D": {}, // Qualcomm
	"534D5343": {}, // SMSC
	"53544D20": {}, // ST Microelectronics
	"534D534E": {}, // Samsung
	"534E5300": {}, // Sinosun
	"54584E00": {}, // Texas Instruments
	"57454300": {}, // Winbond
	"524F4343": {}, // Fuzhouk Rockchip
	"474F4F47": {}, // Google
}

// isPermittedVendor reports whether vendorID (the tpmManufacturer SAN value,
// e.g. "id:414D4400") names a recognized TPM vendor.
func isPermittedVendor(vendorID string) bool {
	hex := strings.TrimPrefix(vendorID, "id:")
	_, ok := permittedVendors[strings.ToUpper(hex)]
	return ok
}
