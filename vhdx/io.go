package vhdx

import "vhdi/iosrc"

// readFull reads exactly len(buf) bytes from source at offset, or
// returns a short-read error.
func readFull(source iosrc.Source, offset uint64, buf []byte) (int, error) {
	n, err := source.ReadAt(offset, buf)
	if err != nil {
		return n, err
	}
	if n != len(buf) {
		return n, errShortRead(n, len(buf))
	}
	return n, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint64(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}
