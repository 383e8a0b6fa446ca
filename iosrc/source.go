// Package iosrc defines the abstract random-access reader every image
// is built on. It is a leaf package: concrete implementations live in
// vhdi/bytesource, and every parsing package (vhd, vhdx, bat, image,
// resolver, cursor) depends only on this interface, never on a
// concrete source.
package iosrc

// Source is the minimal contract an image needs from its backing
// storage: a fixed size, and the ability to read an arbitrary range.
// Reads may be short only at end of source; any other short read is
// an IoError (see vhdi/errs).
type Source interface {
	// Size returns the total addressable length of the source. It is
	// computed once, at construction, and never changes afterward.
	Size() uint64

	// ReadAt fills buf starting at offset and returns the number of
	// bytes read.
	ReadAt(offset uint64, buf []byte) (int, error)
}
