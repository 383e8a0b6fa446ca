package vhd_test

import (
	"testing"
	"unicode/utf16"

	"vhdi/bytesource"
	"vhdi/vhd"
)

func encodeUTF16BENulTerminated(s string) []byte {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, 0, len(units)*2+2)
	for _, u := range units {
		buf = append(buf, byte(u>>8), byte(u))
	}
	return append(buf, 0, 0)
}

func TestResolveParentFilenameDecodesW2ru(t *testing.T) {
	name := encodeUTF16BENulTerminated("parent.vhd")
	img := make([]byte, 4096)
	copy(img[1024:], name)
	source := bytesource.NewMemorySource(img)

	var locators [8]vhd.ParentLocatorEntry
	locators[0] = vhd.ParentLocatorEntry{
		PlatformCode: [4]byte{'W', '2', 'r', 'u'},
		DataOffset:   1024,
		DataLength:   uint32(len(name)),
	}

	pf, ok := vhd.ResolveParentFilename(source, locators)
	if !ok {
		t.Fatalf("ResolveParentFilename: ok = false, want true")
	}
	if !pf.Decoded || pf.Filename != "parent.vhd" {
		t.Fatalf("pf = %+v, want decoded \"parent.vhd\"", pf)
	}
	if pf.PlatformCode != locators[0].PlatformCode {
		t.Fatalf("PlatformCode = %q, want %q", pf.PlatformCode, locators[0].PlatformCode)
	}
}

// TestResolveParentFilenameRecordsUnrecognizedPlatformCode covers the
// case where the only populated locator uses a platform code this
// package doesn't decode (e.g. a Mac-authored image): the code must
// still surface on the result, just without a decoded filename.
func TestResolveParentFilenameRecordsUnrecognizedPlatformCode(t *testing.T) {
	source := bytesource.NewMemorySource(make([]byte, 64))

	var locators [8]vhd.ParentLocatorEntry
	locators[3] = vhd.ParentLocatorEntry{
		PlatformCode: [4]byte{'M', 'a', 'c', 'X'},
		DataOffset:   0,
		DataLength:   32,
	}

	pf, ok := vhd.ResolveParentFilename(source, locators)
	if !ok {
		t.Fatalf("ResolveParentFilename: ok = false, want true")
	}
	if pf.Decoded {
		t.Fatalf("pf.Decoded = true, want false for an unrecognized platform code")
	}
	if pf.PlatformCode != locators[3].PlatformCode {
		t.Fatalf("PlatformCode = %q, want %q", pf.PlatformCode, locators[3].PlatformCode)
	}
}

func TestResolveParentFilenameNoEntriesPopulated(t *testing.T) {
	source := bytesource.NewMemorySource(make([]byte, 64))
	var locators [8]vhd.ParentLocatorEntry

	_, ok := vhd.ResolveParentFilename(source, locators)
	if ok {
		t.Fatalf("ResolveParentFilename: ok = true, want false when no locator is populated")
	}
}
