package bat

import "fmt"

func errOutOfRange(block, count uint64) error {
	return fmt.Errorf("block %d out of range [0, %d)", block, count)
}

func errBlockBeyondSource(offset uint64, blockSize uint32, sourceSize uint64) error {
	return fmt.Errorf("block at offset %d + size %d exceeds source size %d", offset, blockSize, sourceSize)
}

func errShortRead(got, want int) error {
	return fmt.Errorf("short read: got %d bytes, want %d", got, want)
}

func errZeroOffset() error {
	return fmt.Errorf("present block has physical offset 0")
}

func errUnrecognizedState(state uint64) error {
	return fmt.Errorf("unrecognized BAT entry state %d", state)
}

func errMissingBitmap() error {
	return fmt.Errorf("partially present block has no valid sector-bitmap entry")
}
