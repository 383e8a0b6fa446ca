// Package vhd decodes the legacy VHD (version 1) container: the
// 512-byte footer, the 1024-byte dynamic-disk header, the BAT, and
// the parent locator entries a differencing image carries.
package vhd

import (
	"bytes"
	"encoding/binary"

	"vhdi/errs"
	"vhdi/guid"
)

const FooterSize = 512

var footerCookie = [8]byte{'c', 'o', 'n', 'e', 'c', 't', 'i', 'x'}

// DiskType mirrors the footer's 32-bit disk-type field. Only the
// three values the core recognizes have names; anything else is
// UnsupportedFormat at load time.
type DiskType uint32

const (
	DiskTypeFixed        DiskType = 2
	DiskTypeDynamic      DiskType = 3
	DiskTypeDifferential DiskType = 4
)

// footerWire is the exact 512-byte on-disk layout, big-endian.
type footerWire struct {
	Cookie             [8]byte
	Features           uint32
	FormatVersion      uint32
	DataOffset         uint64
	TimeStamp          uint32
	CreatorApplication [4]byte
	CreatorVersion     uint32
	CreatorHostOS      [4]byte
	OriginalSize       uint64
	CurrentSize        uint64
	DiskGeometry       uint32
	DiskType           uint32
	Checksum           uint32
	UniqueID           [16]byte
	SavedState         byte
	Reserved           [427]byte
}

// Footer is the parsed, validated VHD footer.
type Footer struct {
	FormatMajor, FormatMinor uint16
	DataOffset               uint64 // 0xFFFFFFFFFFFFFFFF for Fixed
	CurrentSize              uint64
	DiskType                 DiskType
	Identifier               guid.Identifier
	CreatorApplication       [4]byte // advisory only
	CreatorHostOS            [4]byte // advisory only
}

// ParseFooter validates the signature and checksum of a 512-byte
// footer region and decodes it.
func ParseFooter(region []byte) (*Footer, error) {
	const op = "vhd.ParseFooter"
	if len(region) != FooterSize {
		return nil, errs.New(errs.KindArgument, op, errWrongSize(len(region), FooterSize))
	}

	var wire footerWire
	if err := binary.Read(bytes.NewReader(region), binary.BigEndian, &wire); err != nil {
		return nil, errs.New(errs.KindMalformed, op, err)
	}

	if wire.Cookie != footerCookie {
		return nil, errs.New(errs.KindSignatureMismatch, op, errSignature(wire.Cookie[:], footerCookie[:]))
	}

	if !verifyOnesComplement(region, 64 /* Checksum field offset */, wire.Checksum) {
		return nil, errs.New(errs.KindChecksumMismatch, op, errChecksum())
	}

	diskType := DiskType(wire.DiskType)
	switch diskType {
	case DiskTypeFixed, DiskTypeDynamic, DiskTypeDifferential:
	default:
		return nil, errs.New(errs.KindUnsupportedFormat, op, errUnsupportedDiskType(wire.DiskType))
	}

	return &Footer{
		FormatMajor:        uint16(wire.FormatVersion >> 16),
		FormatMinor:        uint16(wire.FormatVersion & 0xFFFF),
		DataOffset:         wire.DataOffset,
		CurrentSize:        wire.CurrentSize,
		DiskType:           diskType,
		Identifier:         guid.DecodeVHD(wire.UniqueID),
		CreatorApplication: wire.CreatorApplication,
		CreatorHostOS:      wire.CreatorHostOS,
	}, nil
}

// verifyOnesComplement recomputes the VHD footer/header checksum: the
// ones-complement of the sum of every byte in region except the four
// bytes at fieldOffset, which are treated as zero.
func verifyOnesComplement(region []byte, fieldOffset int, stored uint32) bool {
	var sum uint32
	for i, b := range region {
		if i >= fieldOffset && i < fieldOffset+4 {
			continue
		}
		sum += uint32(b)
	}
	return ^sum == stored
}
