package vhdx_test

import (
	"testing"

	"vhdi/bytesource"
	"vhdi/iosrc"
)

// memorySourceAt builds an in-memory source whose bytes at absolute
// offset `base` are exactly `data`, zero-padded before it.
func memorySourceAt(t *testing.T, base uint64, data []byte) iosrc.Source {
	t.Helper()
	buf := make([]byte, base+uint64(len(data)))
	copy(buf[base:], data)
	return bytesource.NewMemorySource(buf)
}
