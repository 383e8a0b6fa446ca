package vhdi

import (
	"io"

	"vhdi/cursor"
	"vhdi/image"
)

// Image is an opened VHD or VHDX disk: an immutable Descriptor plus a
// Cursor positioned at offset 0. Reads and seeks go through the
// cursor; Descriptor accessors are safe to call concurrently from
// multiple goroutines, but an Image's own read/seek methods are not
// (see vhdi/cursor).
type Image struct {
	chain *image.Chain
	cur   *cursor.Cursor
}

// FileType reports which container format this image was loaded as.
func (img *Image) FileType() FileType { return img.chain.Descriptor().FileType }

// FormatVersion reports the container's major/minor format version.
func (img *Image) FormatVersion() (major, minor uint16) {
	d := img.chain.Descriptor()
	return d.FormatMajor, d.FormatMinor
}

// DiskType reports Fixed, Dynamic, or Differential.
func (img *Image) DiskType() DiskType { return img.chain.Descriptor().DiskType }

// MediaSize is the logical disk size in bytes.
func (img *Image) MediaSize() uint64 { return img.chain.Descriptor().MediaSize }

// BytesPerSector is the logical sector size.
func (img *Image) BytesPerSector() uint32 { return img.chain.Descriptor().BytesPerSector }

// Identifier returns this image's canonical identifier, re-encoded to
// its format's own wire order (big-endian-first-three for VHD,
// little-endian for VHDX).
func (img *Image) Identifier() [16]byte {
	d := img.chain.Descriptor()
	if d.FileType == FileTypeVHDX {
		return d.Identifier.EncodeVHDX()
	}
	return d.Identifier.EncodeVHD()
}

// ParentIdentifier returns the parent identifier a differencing image
// declares, and whether one is present.
func (img *Image) ParentIdentifier() ([16]byte, bool) {
	d := img.chain.Descriptor()
	if !d.HasParent {
		return [16]byte{}, false
	}
	if d.FileType == FileTypeVHDX {
		return d.ParentIdentifier.EncodeVHDX(), true
	}
	return d.ParentIdentifier.EncodeVHD(), true
}

// ParentFilenameUTF8 returns the decoded parent filename hint, if the
// image carries one that could be decoded.
func (img *Image) ParentFilenameUTF8() (string, bool) {
	d := img.chain.Descriptor()
	return d.ParentFilename, d.ParentFilenameOK
}

// ParentPlatformCode returns the VHD parent-locator platform code the
// parent filename hint was decoded from; zero for VHDX or when the
// image carries no decoded hint.
func (img *Image) ParentPlatformCode() [4]byte {
	return img.chain.Descriptor().ParentPlatformCode
}

// Creator, CreatorApplication, and CreatorHostOS are advisory-only
// diagnostic fields, never consulted for load validity: Creator is the
// VHDX file type identifier's creator string, CreatorApplication and
// CreatorHostOS are the VHD footer's corresponding fields.
func (img *Image) Creator() string             { return img.chain.Descriptor().Creator }
func (img *Image) CreatorApplication() [4]byte { return img.chain.Descriptor().CreatorApplication }
func (img *Image) CreatorHostOS() [4]byte      { return img.chain.Descriptor().CreatorHostOS }

// Depth reports how many parent images are attached above this one.
func (img *Image) Depth() int { return img.chain.Depth() }

// Close releases this image's own backing source, if it implements
// io.Closer (as vhdi/bytesource.FileSource does for an OpenFile-backed
// mmap). It does not close any attached parent; callers that built a
// chain with AttachParent must close each image in the chain
// themselves.
func (img *Image) Close() error {
	if c, ok := img.chain.Descriptor().Source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// AttachParent links parent beneath img as its differencing parent.
// It must be called before the first read on a differential image.
func (img *Image) AttachParent(parent *Image) error {
	return img.chain.AttachParent(parent.chain)
}

// ReadAt fills buf starting at logical offset; see vhdi/cursor.Cursor
// for its end-of-disk clamping behavior.
func (img *Image) ReadAt(offset uint64, buf []byte) (int, error) {
	return img.cur.ReadAt(offset, buf)
}

// ReadNext reads from the current position and advances it.
func (img *Image) ReadNext(buf []byte) (int, error) {
	return img.cur.ReadNext(buf)
}

// Seek repositions the image's read cursor. whence is one of
// io.SeekStart, io.SeekCurrent, io.SeekEnd.
func (img *Image) Seek(offset int64, whence int) (uint64, error) {
	return img.cur.Seek(offset, whence)
}

// Position returns the cursor's current logical offset.
func (img *Image) Position() uint64 { return img.cur.Position() }

// SignalAbort requests that any in-flight or future read on this
// image, or any parent in its chain, stop at the next span boundary.
func (img *Image) SignalAbort() { img.chain.SignalAbort() }
