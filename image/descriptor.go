// Package image composites the format-specific VHD/VHDX descriptors
// into one shape (Descriptor) and links descriptors into a
// differencing-image parent chain (Chain), detecting cycles and
// enforcing identifier matches that spec.md's invariant 5 requires.
package image

import (
	"vhdi/bat"
	"vhdi/guid"
	"vhdi/iosrc"
)

// FileType distinguishes which container format a descriptor came
// from; it drives the wire-order used when re-encoding an Identifier
// for external display.
type FileType int

const (
	FileTypeVHD FileType = iota
	FileTypeVHDX
)

// DiskType is the tagged variant spec.md §3 calls for, unified across
// both container formats.
type DiskType int

const (
	DiskTypeFixed DiskType = iota
	DiskTypeDynamic
	DiskTypeDifferential
)

// Descriptor is the immutable, fully-validated composite of a VHD or
// VHDX image's metadata: header choice, disk type, logical media
// size, sector size, block size, BAT, and identifiers.
type Descriptor struct {
	FileType                 FileType
	FormatMajor, FormatMinor uint16
	DiskType                 DiskType
	MediaSize                uint64
	BytesPerSector           uint32
	BlockSize                uint32 // 0 for Fixed (BAT is nil too)
	Identifier               guid.Identifier
	// LinkageIdentifier is what a child's ParentIdentifier must match
	// to attach here. For VHD this is the same as Identifier; for VHDX
	// it is the header pair's file-write GUID (spec.md §4.5), which
	// changes on every write and so also detects a parent modified
	// since the child was created.
	LinkageIdentifier guid.Identifier
	ParentIdentifier         guid.Identifier
	HasParent                bool
	ParentFilename           string
	ParentFilenameOK         bool
	ParentPlatformCode       [4]byte // VHD only; zero for VHDX or when undecoded
	BAT                      bat.Table
	Source                   iosrc.Source
	// Creator, CreatorApplication, and CreatorHostOS are advisory-only
	// fields surfaced for diagnostic display; never consulted for load
	// validity. Creator is set for VHDX (file type identifier's creator
	// string); CreatorApplication/CreatorHostOS are set for VHD (footer
	// fields).
	Creator            string
	CreatorApplication [4]byte
	CreatorHostOS      [4]byte
}
