package resolver

import "fmt"

func errOutOfRange(offset, size uint64) error {
	return fmt.Errorf("logical offset %d is out of range [0, %d)", offset, size)
}

func errZeroLength() error {
	return fmt.Errorf("maxLen must be positive")
}

func errUnknownState(kind int) error {
	return fmt.Errorf("unknown BAT state kind %d", kind)
}
