// Package checksum computes CRC-32C (Castagnoli) over arbitrary byte
// ranges. The standard library's Castagnoli table already dispatches
// to the hardware CRC32 instruction on amd64/arm64, so there is no
// third-party checksum package in the retrieval pack worth reaching
// for here.
package checksum

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Compute32C returns the CRC-32C checksum of data.
func Compute32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// VerifyFieldZeroed recomputes the CRC-32C of region with the 4-byte
// checksum field at fieldOffset treated as zero, and reports whether
// it matches the checksum already stored in that field (interpreted
// little-endian, as VHDX stores it). It never mutates region.
func VerifyFieldZeroed(region []byte, fieldOffset int) (stored uint32, computed uint32, ok bool) {
	stored = uint32(region[fieldOffset]) |
		uint32(region[fieldOffset+1])<<8 |
		uint32(region[fieldOffset+2])<<16 |
		uint32(region[fieldOffset+3])<<24

	scratch := make([]byte, len(region))
	copy(scratch, region)
	scratch[fieldOffset] = 0
	scratch[fieldOffset+1] = 0
	scratch[fieldOffset+2] = 0
	scratch[fieldOffset+3] = 0

	computed = Compute32C(scratch)
	return stored, computed, stored == computed
}
