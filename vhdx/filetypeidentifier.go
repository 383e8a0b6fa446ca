// Package vhdx decodes the modern VHDX (version 2) container: the
// file type identifier, the header pair, the region table, the
// metadata table, the VHDX BAT, and VHDX's key-value parent locator.
package vhdx

import (
	"unicode/utf16"

	"vhdi/errs"
	"vhdi/iosrc"
)

const (
	fileTypeIdentifierOffset = 0
	creatorFieldLength       = 256 // UTF-16 code units
	FileTypeIdentifierSize   = 8 + creatorFieldLength*2
)

var fileTypeIdentifierCookie = [8]byte{'v', 'h', 'd', 'x', 'f', 'i', 'l', 'e'}

// readFileTypeIdentifier validates the 8-byte signature at the start
// of the file and decodes the advisory creator string.
func readFileTypeIdentifier(source iosrc.Source) (creator string, err error) {
	const op = "vhdx.readFileTypeIdentifier"

	region := make([]byte, FileTypeIdentifierSize)
	n, err := source.ReadAt(fileTypeIdentifierOffset, region)
	if err != nil {
		return "", errs.NewAt(errs.KindIO, op, fileTypeIdentifierOffset, err)
	}
	if n != len(region) {
		return "", errs.NewAt(errs.KindIO, op, fileTypeIdentifierOffset, errShortRead(n, len(region)))
	}

	var cookie [8]byte
	copy(cookie[:], region[:8])
	if cookie != fileTypeIdentifierCookie {
		return "", errs.New(errs.KindSignatureMismatch, op, errSignature(cookie[:], fileTypeIdentifierCookie[:]))
	}

	units := make([]uint16, creatorFieldLength)
	for i := range units {
		units[i] = uint16(region[8+i*2]) | uint16(region[8+i*2+1])<<8
	}
	// The creator string is NUL-padded; trim at the first NUL.
	for i, u := range units {
		if u == 0 {
			units = units[:i]
			break
		}
	}
	return string(utf16.Decode(units)), nil
}
