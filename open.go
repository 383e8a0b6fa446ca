// Package vhdi provides read-only access to Microsoft Virtual Hard
// Disk images in both the legacy VHD (version 1) and modern VHDX
// (version 2) container formats: Open (or OpenFile) returns an Image
// exposing a flat, byte-addressable logical disk that can be read at
// arbitrary offsets, including through a chain of attached parent
// images for differencing disks.
package vhdi

import (
	"vhdi/bytesource"
	"vhdi/cursor"
	"vhdi/errs"
	"vhdi/image"
	"vhdi/iosrc"
	"vhdi/vhd"
	"vhdi/vhdx"
)

// Error and Kind are re-exported so callers never need to import
// vhdi/errs directly.
type Error = errs.Error
type Kind = errs.Kind

const (
	KindArgument          = errs.KindArgument
	KindIO                = errs.KindIO
	KindSignatureMismatch = errs.KindSignatureMismatch
	KindChecksumMismatch  = errs.KindChecksumMismatch
	KindUnsupportedFormat = errs.KindUnsupportedFormat
	KindMalformed         = errs.KindMalformed
	KindParentMismatch    = errs.KindParentMismatch
	KindAborted           = errs.KindAborted
)

// ByteSource is the minimal random-access contract a caller's own
// storage must satisfy to be opened as an image.
type ByteSource = iosrc.Source

// FileType and DiskType are re-exported from vhdi/image.
type FileType = image.FileType
type DiskType = image.DiskType

const (
	FileTypeVHD  = image.FileTypeVHD
	FileTypeVHDX = image.FileTypeVHDX
)

const (
	DiskTypeFixed        = image.DiskTypeFixed
	DiskTypeDynamic      = image.DiskTypeDynamic
	DiskTypeDifferential = image.DiskTypeDifferential
)

var vhdxFileTypeCookie = [8]byte{'v', 'h', 'd', 'x', 'f', 'i', 'l', 'e'}

// Open detects the container format from the first 8 bytes of source
// and loads it.
func Open(source ByteSource) (*Image, error) {
	const op = "vhdi.Open"

	var magic [8]byte
	n, err := source.ReadAt(0, magic[:])
	if err != nil {
		return nil, errs.New(errs.KindIO, op, err)
	}
	if n == len(magic) && magic == vhdxFileTypeCookie {
		return OpenVHDX(source)
	}
	return OpenVHD(source)
}

// OpenFile memory-maps the file at path (or, on Linux, stats it as a
// block device) and opens it.
func OpenFile(path string) (*Image, error) {
	src, err := bytesource.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return Open(src)
}

// OpenVHD loads source as a VHD (version 1) container.
func OpenVHD(source ByteSource) (*Image, error) {
	desc, err := vhd.Load(source)
	if err != nil {
		return nil, err
	}
	return newImage(fromVHD(desc, source)), nil
}

// OpenVHDX loads source as a VHDX (version 2) container.
func OpenVHDX(source ByteSource) (*Image, error) {
	desc, err := vhdx.Load(source)
	if err != nil {
		return nil, err
	}
	return newImage(fromVHDX(desc, source)), nil
}

func newImage(desc *image.Descriptor) *Image {
	chain := image.New(desc)
	return &Image{chain: chain, cur: cursor.New(chain)}
}

func fromVHD(d *vhd.Descriptor, source ByteSource) *image.Descriptor {
	return &image.Descriptor{
		FileType:          image.FileTypeVHD,
		FormatMajor:       d.FormatMajor,
		FormatMinor:       d.FormatMinor,
		DiskType:          convertVHDDiskType(d.DiskType),
		MediaSize:         d.MediaSize,
		BytesPerSector:    d.BytesPerSector,
		BlockSize:         d.BlockSize,
		Identifier:        d.Identifier,
		LinkageIdentifier: d.Identifier,
		ParentIdentifier:  d.ParentIdentifier,
		HasParent:         d.HasParent,
		ParentFilename:    d.ParentFilename,
		ParentFilenameOK:  d.ParentFilenameOK,
		ParentPlatformCode: d.ParentPlatformCode,
		BAT:                d.BAT,
		Source:             source,
		CreatorApplication: d.CreatorApplication,
		CreatorHostOS:      d.CreatorHostOS,
	}
}

func convertVHDDiskType(dt vhd.DiskType) image.DiskType {
	switch dt {
	case vhd.DiskTypeFixed:
		return image.DiskTypeFixed
	case vhd.DiskTypeDifferential:
		return image.DiskTypeDifferential
	default:
		return image.DiskTypeDynamic
	}
}

// fromVHDX adapts a vhdx.Descriptor to the shared image.Descriptor
// shape. Note that LinkageIdentifier is the header pair's file-write
// GUID, not the Virtual Disk ID: a VHDX child's parent locator links
// against the parent's file-write GUID (spec.md §4.5), so that a
// parent modified since the child was created fails to attach.
func fromVHDX(d *vhdx.Descriptor, source ByteSource) *image.Descriptor {
	return &image.Descriptor{
		FileType:          image.FileTypeVHDX,
		FormatMajor:       d.FormatMajor,
		FormatMinor:       d.FormatMinor,
		DiskType:          convertVHDXDiskType(d.DiskType),
		MediaSize:         d.MediaSize,
		BytesPerSector:    d.BytesPerSector,
		BlockSize:         d.BlockSize,
		Identifier:        d.Identifier,
		LinkageIdentifier: d.FileWriteGUID,
		ParentIdentifier:  d.ParentIdentifier,
		HasParent:         d.HasParent,
		ParentFilename:    d.ParentFilename,
		ParentFilenameOK:  d.ParentFilenameOK,
		BAT:               d.BAT,
		Source:            source,
		Creator:           d.Creator,
	}
}

func convertVHDXDiskType(dt vhdx.DiskType) image.DiskType {
	switch dt {
	case vhdx.DiskTypeFixed:
		return image.DiskTypeFixed
	case vhdx.DiskTypeDifferential:
		return image.DiskTypeDifferential
	default:
		return image.DiskTypeDynamic
	}
}
