package vhdx

import (
	"vhdi/bat"
	"vhdi/errs"
	"vhdi/guid"
	"vhdi/iosrc"
)

const chunkRatioNumerator = uint64(1) << 23 // 2^23, per the VHDX BAT layout formula

// Descriptor is the VHDX-specific half of vhdi/image.Descriptor: the
// authoritative header, the region table, the metadata, the BAT, and
// parent-locator hints needed to build a full image.
type Descriptor struct {
	FormatMajor, FormatMinor uint16
	DiskType                 DiskType
	MediaSize                uint64
	BytesPerSector           uint32
	BlockSize                uint32
	Identifier               guid.Identifier // Virtual Disk ID metadata item
	FileWriteGUID            guid.Identifier // authoritative header's file-write GUID; what a child's parent locator links against
	ParentIdentifier         guid.Identifier
	HasParent                bool
	ParentFilename           string
	ParentFilenameOK         bool
	BAT                      bat.Table
	Creator                  string // advisory
}

// DiskType mirrors vhdi/image.DiskType; VHDX has no on-disk disk-type
// field, so it is derived from the File Parameters metadata item: a
// non-differencing image with leave_blocks_allocated set is treated
// as Fixed (spec.md scenario S4), matching the fully-allocated BAT a
// real fixed-size VHDX carries.
type DiskType int

const (
	DiskTypeFixed DiskType = iota
	DiskTypeDynamic
	DiskTypeDifferential
)

// Load parses a complete VHDX container: file type identifier, header
// pair, region table, metadata table, BAT, and (for a differencing
// image) the parent locator.
func Load(source iosrc.Source) (*Descriptor, error) {
	const op = "vhdx.Load"

	creator, err := readFileTypeIdentifier(source)
	if err != nil {
		return nil, err
	}

	header, err := loadAuthoritativeHeader(source)
	if err != nil {
		return nil, err
	}

	regionTable, err := loadAuthoritativeRegionTable(source)
	if err != nil {
		return nil, err
	}

	batRegion, ok := regionTable.Find(batRegionGUID)
	if !ok {
		return nil, errs.New(errs.KindMalformed, op, errMissingRegion("BAT"))
	}
	metadataRegion, ok := regionTable.Find(metadataRegionGUID)
	if !ok {
		return nil, errs.New(errs.KindMalformed, op, errMissingRegion("metadata"))
	}

	metadata, err := ParseMetadataTable(source, metadataRegion.FileOffset)
	if err != nil {
		return nil, err
	}

	blockSize, leaveBlocksAllocated, hasParent, err := metadata.FileParameters()
	if err != nil {
		return nil, err
	}
	mediaSize, err := metadata.VirtualDiskSize()
	if err != nil {
		return nil, err
	}
	diskID, err := metadata.VirtualDiskID()
	if err != nil {
		return nil, err
	}
	sectorSize, err := metadata.LogicalSectorSize()
	if err != nil {
		return nil, err
	}

	if sectorSize != 512 && sectorSize != 4096 {
		return nil, errs.New(errs.KindUnsupportedFormat, op, errBadSectorSize(sectorSize))
	}
	if mediaSize%uint64(sectorSize) != 0 {
		return nil, errs.New(errs.KindMalformed, op, errMediaSizeAlignment(mediaSize, sectorSize))
	}
	if blockSize == 0 || blockSize&(blockSize-1) != 0 || blockSize%sectorSize != 0 {
		return nil, errs.New(errs.KindMalformed, op, errBadBlockSize(blockSize))
	}

	desc := &Descriptor{
		FormatMajor:    1,
		FormatMinor:    0,
		MediaSize:      mediaSize,
		BytesPerSector: sectorSize,
		BlockSize:      blockSize,
		Identifier:     diskID,
		FileWriteGUID:  header.FileWriteGUID,
		Creator:        creator,
		HasParent:      hasParent,
	}

	switch {
	case hasParent:
		desc.DiskType = DiskTypeDifferential
	case leaveBlocksAllocated:
		desc.DiskType = DiskTypeFixed
	default:
		desc.DiskType = DiskTypeDynamic
	}
	if hasParent {
		locator, present, err := metadata.ParentLocator()
		if err != nil {
			return nil, err
		}
		if !present {
			return nil, errs.New(errs.KindMalformed, op, errNoParentLinkage())
		}
		linkage, ok := locator.LinkageGUID()
		if !ok {
			return nil, errs.New(errs.KindMalformed, op, errNoParentLinkage())
		}
		desc.ParentIdentifier = linkage
		if hint, ok := locator.FilenameHint(); ok {
			desc.ParentFilename = hint
			desc.ParentFilenameOK = true
		}
	}

	blockCount := (desc.MediaSize + uint64(desc.BlockSize) - 1) / uint64(desc.BlockSize)
	chunkRatio := (chunkRatioNumerator * uint64(desc.BytesPerSector)) / uint64(desc.BlockSize)
	if chunkRatio == 0 {
		chunkRatio = 1
	}

	raw, err := readBATEntries(source, batRegion.FileOffset, blockCount, chunkRatio)
	if err != nil {
		return nil, err
	}
	desc.BAT = bat.NewVHDXTable(raw, blockCount, desc.BlockSize, desc.BytesPerSector, chunkRatio, source)

	return desc, nil
}

// readBATEntries reads the raw interleaved BAT array: groups of
// chunkRatio payload entries followed by one sector-bitmap entry.
func readBATEntries(source iosrc.Source, offset uint64, blockCount, chunkRatio uint64) ([]uint64, error) {
	const op = "vhdx.readBATEntries"

	groups := (blockCount + chunkRatio - 1) / chunkRatio
	if groups == 0 {
		groups = 1
	}
	rawCount := groups * (chunkRatio + 1)

	buf := make([]byte, rawCount*8)
	if _, err := readFull(source, offset, buf); err != nil {
		return nil, errs.NewAt(errs.KindIO, op, offset, err)
	}

	raw := make([]uint64, rawCount)
	for i := range raw {
		raw[i] = leUint64(buf[i*8:])
	}
	return raw, nil
}
