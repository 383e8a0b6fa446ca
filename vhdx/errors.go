package vhdx

import "fmt"

func errChecksum() error {
	return fmt.Errorf("CRC-32C checksum mismatch")
}

func errShortRead(got, want int) error {
	return fmt.Errorf("short read: got %d of %d bytes", got, want)
}

func errSignature(got, want []byte) error {
	return fmt.Errorf("signature mismatch: got %x, want %x", got, want)
}

func errWrongSize(got, want int) error {
	return fmt.Errorf("region is %d bytes, want %d", got, want)
}

func errBothHeadersInvalid(err0, err1 error) error {
	return fmt.Errorf("both header slots are invalid: slot0: %v; slot1: %v", err0, err1)
}

func errBothRegionTablesInvalid(err0, err1 error) error {
	return fmt.Errorf("both region tables are invalid: slot0: %v; slot1: %v", err0, err1)
}

func errTooManyEntries(got, max int) error {
	return fmt.Errorf("entry count %d exceeds maximum %d", got, max)
}

func errUnknownRequiredRegion(id string) error {
	return fmt.Errorf("unknown required region %s", id)
}

func errMissingRegion(name string) error {
	return fmt.Errorf("required region %q not present in region table", name)
}

func errUnknownRequiredMetadataItem(id string) error {
	return fmt.Errorf("unknown required metadata item %s", id)
}

func errMissingMetadataItem(name string) error {
	return fmt.Errorf("required metadata item %q not present", name)
}

func errZeroBlockSize() error {
	return fmt.Errorf("file parameters block size is zero")
}

func errNoParentLinkage() error {
	return fmt.Errorf("differencing image has no parent_linkage in its parent locator")
}

func errBadBlockSize(size uint32) error {
	return fmt.Errorf("block size %d is not a power of two multiple of the sector size", size)
}

func errBadSectorSize(size uint32) error {
	return fmt.Errorf("logical sector size %d is not 512 or 4096", size)
}

func errMediaSizeAlignment(size uint64, sectorSize uint32) error {
	return fmt.Errorf("media size %d is not a multiple of the sector size %d", size, sectorSize)
}
