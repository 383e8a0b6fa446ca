package vhd

import (
	"unicode/utf16"

	"vhdi/iosrc"
)

// Recognized VHD parent-locator platform codes. Others (e.g. "Mac ",
// "MacX") are part of the VHD format's own platform-code set and are
// retained on the entry but never decoded: per spec.md's retained open
// question, only W2ru/W2ku are known to be produced by real tooling.
var (
	platformW2ru = [4]byte{'W', '2', 'r', 'u'} // relative path, UTF-16BE
	platformW2ku = [4]byte{'W', '2', 'k', 'u'} // absolute path, UTF-16BE
)

// ParentFilename is the decoded result of the first usable parent
// locator entry: a platform code (recognized or not) and, when the
// code was one the core understands, a decoded filename.
type ParentFilename struct {
	PlatformCode [4]byte
	Filename     string
	Decoded      bool
}

// ResolveParentFilename scans the eight locator entries in order,
// first recording the platform code of the first non-empty entry
// regardless of whether it's recognized, then attempting to decode a
// filename from the first entry whose code is recognized (W2ru/W2ku)
// and whose data can be read, per spec.md 4.5. An unrecognized code is
// visible on the result even when nothing could be decoded from it;
// if no entry is populated at all, ok is false.
func ResolveParentFilename(source iosrc.Source, locators [8]ParentLocatorEntry) (ParentFilename, bool) {
	var firstCode [4]byte
	haveCode := false
	for _, loc := range locators {
		if loc.DataLength == 0 {
			continue
		}
		if !haveCode {
			firstCode = loc.PlatformCode
			haveCode = true
		}
		if loc.PlatformCode != platformW2ru && loc.PlatformCode != platformW2ku {
			continue
		}

		buf := make([]byte, loc.DataLength)
		n, err := source.ReadAt(loc.DataOffset, buf)
		if err != nil || uint32(n) != loc.DataLength {
			continue
		}

		name := decodeUTF16BE(buf)
		return ParentFilename{PlatformCode: loc.PlatformCode, Filename: name, Decoded: true}, true
	}
	if !haveCode {
		return ParentFilename{}, false
	}
	return ParentFilename{PlatformCode: firstCode}, true
}

// decodeUTF16BE decodes a NUL-terminated (or full-length) big-endian
// UTF-16 byte string.
func decodeUTF16BE(buf []byte) string {
	units := make([]uint16, 0, len(buf)/2)
	for i := 0; i+1 < len(buf); i += 2 {
		u := uint16(buf[i])<<8 | uint16(buf[i+1])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}
