package vhd

import "fmt"

func errWrongSize(got, want int) error {
	return fmt.Errorf("region is %d bytes, want %d", got, want)
}

func errSignature(got, want []byte) error {
	return fmt.Errorf("signature %q does not match expected %q", got, want)
}

func errChecksum() error {
	return fmt.Errorf("checksum mismatch")
}

func errUnsupportedDiskType(t uint32) error {
	return fmt.Errorf("unsupported disk type %d", t)
}

func errBadBlockSize(size uint32) error {
	return fmt.Errorf("block size %d is not a power of two multiple of 512", size)
}

func errMediaSizeAlignment(size uint64) error {
	return fmt.Errorf("media size %d is not a multiple of the sector size", size)
}

func errNoParentIdentifier() error {
	return fmt.Errorf("differential image has no parent identifier")
}

func errInsufficientBATEntries(have uint32, want uint64) error {
	return fmt.Errorf("BAT has %d entries, need at least %d", have, want)
}

func errShortRegionRead(got, want int) error {
	return fmt.Errorf("short read: got %d bytes, want %d", got, want)
}
