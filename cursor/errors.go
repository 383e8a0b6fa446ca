package cursor

import "fmt"

func errBadWhence(whence int) error {
	return fmt.Errorf("unknown whence %d", whence)
}

func errNegativePosition(pos int64) error {
	return fmt.Errorf("seek would produce a negative position %d", pos)
}

func errAborted() error {
	return fmt.Errorf("read aborted")
}

func errNoParentAttached() error {
	return fmt.Errorf("block is not present and no parent is attached")
}

func errShortReadAtEOF(got, want int) error {
	return fmt.Errorf("short read: got %d of %d bytes at end of source", got, want)
}

func errRetriesExhausted(max int) error {
	return fmt.Errorf("short read persisted after %d retries", max)
}
