package vhdx

import (
	"bytes"
	"encoding/binary"

	"vhdi/checksum"
	"vhdi/errs"
	"vhdi/guid"
	"vhdi/iosrc"
)

const (
	RegionTableSize         = 64 * 1024
	regionTableSlot0Offset  = 0x30000
	regionTableSlot1Offset  = 0x40000
	regionTableChecksumAt   = 4
	regionTableHeaderLength = 16
	regionEntryLength       = 32
	maxRegionEntries        = (RegionTableSize - regionTableHeaderLength) / regionEntryLength
)

var regionTableCookie = [4]byte{'r', 'e', 'g', 'i'}

// Well-known region GUIDs (canonical form; see guid.DecodeVHDX).
var (
	batRegionGUID      = mustGUID("2dc27766-f623-4200-9d64-115e9bfd4a08")
	metadataRegionGUID = mustGUID("8b7ca206-4790-4b9a-b8fe-575f050f886e")
)

type regionTableHeaderWire struct {
	Signature  [4]byte
	Checksum   uint32
	EntryCount uint32
	Reserved   uint32
}

type regionEntryWire struct {
	GUID         [16]byte
	FileOffset   uint64
	Length       uint32
	RequiredFlag uint32
}

// RegionEntry is one decoded region table entry.
type RegionEntry struct {
	ID         guid.Identifier
	FileOffset uint64
	Length     uint32
	Required   bool
}

// RegionTable is the decoded, validated region table: a small
// directory pointing at the BAT and metadata regions.
type RegionTable struct {
	Entries []RegionEntry
}

// Find returns the entry whose ID matches id.
func (rt *RegionTable) Find(id guid.Identifier) (RegionEntry, bool) {
	for _, e := range rt.Entries {
		if e.ID.Equal(id) {
			return e, true
		}
	}
	return RegionEntry{}, false
}

// ParseRegionTable validates the signature and CRC-32C of a 64 KiB
// region table and decodes its entries, rejecting any unrecognized
// region that carries the required flag.
func ParseRegionTable(region []byte) (*RegionTable, error) {
	const op = "vhdx.ParseRegionTable"
	if len(region) != RegionTableSize {
		return nil, errs.New(errs.KindArgument, op, errWrongSize(len(region), RegionTableSize))
	}

	var hdr regionTableHeaderWire
	if err := binary.Read(bytes.NewReader(region[:regionTableHeaderLength]), binary.LittleEndian, &hdr); err != nil {
		return nil, errs.New(errs.KindMalformed, op, err)
	}
	if hdr.Signature != regionTableCookie {
		return nil, errs.New(errs.KindSignatureMismatch, op, errSignature(hdr.Signature[:], regionTableCookie[:]))
	}
	if _, _, ok := checksum.VerifyFieldZeroed(region, regionTableChecksumAt); !ok {
		return nil, errs.New(errs.KindChecksumMismatch, op, errChecksum())
	}
	if hdr.EntryCount > maxRegionEntries {
		return nil, errs.New(errs.KindMalformed, op, errTooManyEntries(int(hdr.EntryCount), maxRegionEntries))
	}

	entries := make([]RegionEntry, 0, hdr.EntryCount)
	for i := uint32(0); i < hdr.EntryCount; i++ {
		off := regionTableHeaderLength + int(i)*regionEntryLength
		var raw regionEntryWire
		if err := binary.Read(bytes.NewReader(region[off:off+regionEntryLength]), binary.LittleEndian, &raw); err != nil {
			return nil, errs.New(errs.KindMalformed, op, err)
		}
		entry := RegionEntry{
			ID:         guid.DecodeVHDX(raw.GUID),
			FileOffset: raw.FileOffset,
			Length:     raw.Length,
			Required:   raw.RequiredFlag&1 != 0,
		}
		if entry.Required && !entry.ID.Equal(batRegionGUID) && !entry.ID.Equal(metadataRegionGUID) {
			return nil, errs.New(errs.KindUnsupportedFormat, op, errUnknownRequiredRegion(hex16(entry.ID)))
		}
		entries = append(entries, entry)
	}

	return &RegionTable{Entries: entries}, nil
}

// loadAuthoritativeRegionTable tries the primary region table slot,
// then the secondary, failing only if both are invalid.
func loadAuthoritativeRegionTable(source iosrc.Source) (*RegionTable, error) {
	const op = "vhdx.loadAuthoritativeRegionTable"

	region0 := make([]byte, RegionTableSize)
	if _, err := readFull(source, regionTableSlot0Offset, region0); err != nil {
		return nil, errs.NewAt(errs.KindIO, op, regionTableSlot0Offset, err)
	}
	rt0, err0 := ParseRegionTable(region0)
	if err0 == nil {
		return rt0, nil
	}

	region1 := make([]byte, RegionTableSize)
	if _, err := readFull(source, regionTableSlot1Offset, region1); err != nil {
		return nil, errs.NewAt(errs.KindIO, op, regionTableSlot1Offset, err)
	}
	rt1, err1 := ParseRegionTable(region1)
	if err1 == nil {
		return rt1, nil
	}

	return nil, errs.New(errs.KindMalformed, op, errBothRegionTablesInvalid(err0, err1))
}
