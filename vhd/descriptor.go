package vhd

import (
	"vhdi/bat"
	"vhdi/errs"
	"vhdi/guid"
	"vhdi/iosrc"
)

const vhdSectorBytes = 512

// Descriptor is the VHD-specific half of vhdi/image.Descriptor: the
// footer, dynamic header (if any), BAT, and parent hints needed to
// build a full image.
type Descriptor struct {
	FormatMajor, FormatMinor uint16
	DiskType                 DiskType
	MediaSize                uint64
	BytesPerSector           uint32
	BlockSize                uint32 // 0 for Fixed
	Identifier               guid.Identifier
	ParentIdentifier         guid.Identifier
	HasParent                bool
	ParentFilename           string
	ParentFilenameOK         bool
	ParentPlatformCode       [4]byte // zero if no parent locator decoded
	BAT                      bat.Table // nil for Fixed
	CreatorApplication       [4]byte // advisory only, from the footer
	CreatorHostOS            [4]byte // advisory only, from the footer
}

// Load reads the footer (the canonical copy lives in the last 512
// bytes of the file; the optional copy at file start exists only for
// crash recovery and is never consulted here) and, for Dynamic and
// Differential images, the dynamic header and BAT.
func Load(source iosrc.Source) (*Descriptor, error) {
	const op = "vhd.Load"

	size := source.Size()
	if size < FooterSize {
		return nil, errs.New(errs.KindMalformed, op, errWrongSize(int(size), FooterSize))
	}

	footerRegion := make([]byte, FooterSize)
	if _, err := readFull(source, size-FooterSize, footerRegion); err != nil {
		return nil, errs.NewAt(errs.KindIO, op, size-FooterSize, err)
	}

	footer, err := ParseFooter(footerRegion)
	if err != nil {
		return nil, err
	}

	if footer.CurrentSize%vhdSectorBytes != 0 {
		return nil, errs.New(errs.KindMalformed, op, errMediaSizeAlignment(footer.CurrentSize))
	}

	desc := &Descriptor{
		FormatMajor:    footer.FormatMajor,
		FormatMinor:    footer.FormatMinor,
		DiskType:       footer.DiskType,
		MediaSize:      footer.CurrentSize,
		BytesPerSector: vhdSectorBytes,
		Identifier:     footer.Identifier,
		CreatorApplication: footer.CreatorApplication,
		CreatorHostOS:      footer.CreatorHostOS,
	}

	if footer.DiskType == DiskTypeFixed {
		return desc, nil
	}

	headerRegion := make([]byte, DynamicHeaderSize)
	if _, err := readFull(source, footer.DataOffset, headerRegion); err != nil {
		return nil, errs.NewAt(errs.KindIO, op, footer.DataOffset, err)
	}
	dynHdr, err := ParseDynamicHeader(headerRegion)
	if err != nil {
		return nil, err
	}

	desc.BlockSize = dynHdr.BlockSize
	desc.ParentIdentifier = dynHdr.ParentIdentifier
	desc.HasParent = footer.DiskType == DiskTypeDifferential

	if desc.HasParent && desc.ParentIdentifier.IsZero() {
		return nil, errs.New(errs.KindParentMismatch, op, errNoParentIdentifier())
	}

	blockCount := (desc.MediaSize + uint64(desc.BlockSize) - 1) / uint64(desc.BlockSize)
	if uint64(dynHdr.MaxTableEntries) < blockCount {
		return nil, errs.New(errs.KindMalformed, op, errInsufficientBATEntries(dynHdr.MaxTableEntries, blockCount))
	}

	entries := make([]uint32, blockCount)
	entryBytes := make([]byte, blockCount*4)
	if _, err := readFull(source, dynHdr.TableOffset, entryBytes); err != nil {
		return nil, errs.NewAt(errs.KindIO, op, dynHdr.TableOffset, err)
	}
	for i := range entries {
		entries[i] = beUint32(entryBytes[i*4:])
	}

	desc.BAT = bat.NewVHDTable(entries, desc.BlockSize, desc.HasParent, source)

	if pf, ok := ResolveParentFilename(source, dynHdr.ParentLocators); ok {
		desc.ParentFilename = pf.Filename
		desc.ParentFilenameOK = pf.Decoded
		desc.ParentPlatformCode = pf.PlatformCode
	}

	return desc, nil
}

func readFull(source iosrc.Source, offset uint64, buf []byte) (int, error) {
	n, err := source.ReadAt(offset, buf)
	if err != nil {
		return n, err
	}
	if n != len(buf) {
		return n, errShortRegionRead(n, len(buf))
	}
	return n, nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
