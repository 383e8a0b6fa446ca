package vhdx

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"

	"vhdi/errs"
	"vhdi/guid"
	"vhdi/iosrc"
)

const (
	metadataHeaderLength = 32
	metadataEntryLength  = 32
	maxMetadataEntries   = 2047

	metaFlagIsUser        = 1 << 0
	metaFlagIsVirtualDisk = 1 << 1
	metaFlagIsRequired    = 1 << 2
)

var metadataTableCookie = [8]byte{'m', 'e', 't', 'a', 'd', 'a', 't', 'a'}

// Well-known metadata item identifiers.
var (
	fileParametersGUID    = mustGUID("caa16737-fa36-4d43-b3b6-33f0aa44e76b")
	virtualDiskSizeGUID   = mustGUID("2fa54224-cd1b-4876-b211-5dbed83bf4b8")
	virtualDiskIDGUID     = mustGUID("beca12ab-b2e6-4523-93ef-c309e000c746")
	logicalSectorSizeGUID = mustGUID("8141bf1d-a96f-4709-ba47-f233a8faab5f")
	physicalSectorSizeGUID = mustGUID("cda348c7-445d-4471-9cc9-e9885251c556")
	parentLocatorGUID     = mustGUID("a8d35f2d-b30b-454d-abf7-d3d84834ab0c")
)

var requiredMetadataItems = []guid.Identifier{
	fileParametersGUID, virtualDiskSizeGUID, virtualDiskIDGUID, logicalSectorSizeGUID,
}

type metadataHeaderWire struct {
	Signature  [8]byte
	Reserved   uint16
	EntryCount uint16
	Reserved2  [20]byte
}

type metadataEntryWire struct {
	ItemID   [16]byte
	Offset   uint32
	Length   uint32
	Flags    uint32
	Reserved uint32
}

type metadataItem struct {
	offset   uint32
	length   uint32
	required bool
}

// MetadataTable is the decoded metadata directory: a GUID-keyed map
// of item locations relative to the table's own file offset.
type MetadataTable struct {
	tableOffset uint64
	source      iosrc.Source
	items       map[guid.Identifier]metadataItem
}

// ParseMetadataTable reads and validates the metadata table at
// tableOffset, checking that every system item this core consumes is
// present and that no unrecognized item carries the required flag.
func ParseMetadataTable(source iosrc.Source, tableOffset uint64) (*MetadataTable, error) {
	const op = "vhdx.ParseMetadataTable"

	hdrRegion := make([]byte, metadataHeaderLength)
	if _, err := readFull(source, tableOffset, hdrRegion); err != nil {
		return nil, errs.NewAt(errs.KindIO, op, tableOffset, err)
	}
	var hdr metadataHeaderWire
	if err := binary.Read(bytes.NewReader(hdrRegion), binary.LittleEndian, &hdr); err != nil {
		return nil, errs.New(errs.KindMalformed, op, err)
	}
	if hdr.Signature != metadataTableCookie {
		return nil, errs.New(errs.KindSignatureMismatch, op, errSignature(hdr.Signature[:], metadataTableCookie[:]))
	}
	if hdr.EntryCount > maxMetadataEntries {
		return nil, errs.New(errs.KindMalformed, op, errTooManyEntries(int(hdr.EntryCount), maxMetadataEntries))
	}

	entriesRegion := make([]byte, int(hdr.EntryCount)*metadataEntryLength)
	if _, err := readFull(source, tableOffset+metadataHeaderLength, entriesRegion); err != nil {
		return nil, errs.NewAt(errs.KindIO, op, tableOffset+metadataHeaderLength, err)
	}

	items := make(map[guid.Identifier]metadataItem, hdr.EntryCount)
	for i := 0; i < int(hdr.EntryCount); i++ {
		off := i * metadataEntryLength
		var raw metadataEntryWire
		if err := binary.Read(bytes.NewReader(entriesRegion[off:off+metadataEntryLength]), binary.LittleEndian, &raw); err != nil {
			return nil, errs.New(errs.KindMalformed, op, err)
		}
		id := guid.DecodeVHDX(raw.ItemID)
		required := raw.Flags&metaFlagIsRequired != 0
		if required && !knownMetadataItem(id) {
			return nil, errs.New(errs.KindUnsupportedFormat, op, errUnknownRequiredMetadataItem(hex16(id)))
		}
		items[id] = metadataItem{offset: raw.Offset, length: raw.Length, required: required}
	}

	for _, want := range requiredMetadataItems {
		if _, ok := items[want]; !ok {
			return nil, errs.New(errs.KindMalformed, op, errMissingMetadataItem(hex16(want)))
		}
	}

	return &MetadataTable{tableOffset: tableOffset, source: source, items: items}, nil
}

func knownMetadataItem(id guid.Identifier) bool {
	switch {
	case id.Equal(fileParametersGUID), id.Equal(virtualDiskSizeGUID), id.Equal(virtualDiskIDGUID),
		id.Equal(logicalSectorSizeGUID), id.Equal(physicalSectorSizeGUID), id.Equal(parentLocatorGUID):
		return true
	default:
		return false
	}
}

func (mt *MetadataTable) readItem(id guid.Identifier) ([]byte, bool, error) {
	item, ok := mt.items[id]
	if !ok {
		return nil, false, nil
	}
	buf := make([]byte, item.length)
	if _, err := readFull(mt.source, mt.tableOffset+uint64(item.offset), buf); err != nil {
		return nil, true, errs.NewAt(errs.KindIO, "vhdx.MetadataTable.readItem", mt.tableOffset+uint64(item.offset), err)
	}
	return buf, true, nil
}

// FileParameters reads the File Parameters system item: block size in
// bytes, and the leave-blocks-allocated and has-parent flags.
func (mt *MetadataTable) FileParameters() (blockSize uint32, leaveBlocksAllocated, hasParent bool, err error) {
	buf, _, err := mt.readItem(fileParametersGUID)
	if err != nil {
		return 0, false, false, err
	}
	blockSize = leUint32(buf[0:4])
	flags := leUint32(buf[4:8])
	leaveBlocksAllocated = flags&1 != 0
	hasParent = flags&2 != 0
	if blockSize == 0 {
		return 0, false, false, errs.New(errs.KindMalformed, "vhdx.MetadataTable.FileParameters", errZeroBlockSize())
	}
	return blockSize, leaveBlocksAllocated, hasParent, nil
}

// VirtualDiskSize reads the Virtual Disk Size system item.
func (mt *MetadataTable) VirtualDiskSize() (uint64, error) {
	buf, _, err := mt.readItem(virtualDiskSizeGUID)
	if err != nil {
		return 0, err
	}
	return leUint64(buf[0:8]), nil
}

// VirtualDiskID reads the Virtual Disk ID system item.
func (mt *MetadataTable) VirtualDiskID() (guid.Identifier, error) {
	buf, _, err := mt.readItem(virtualDiskIDGUID)
	if err != nil {
		return guid.Identifier{}, err
	}
	var raw [16]byte
	copy(raw[:], buf)
	return guid.DecodeVHDX(raw), nil
}

// LogicalSectorSize reads the Logical Sector Size system item.
func (mt *MetadataTable) LogicalSectorSize() (uint32, error) {
	buf, _, err := mt.readItem(logicalSectorSizeGUID)
	if err != nil {
		return 0, err
	}
	return leUint32(buf[0:4]), nil
}

// ParentLocator reads the Parent Locator item, if present, and
// decodes its key-value table.
func (mt *MetadataTable) ParentLocator() (ParentLocator, bool, error) {
	buf, present, err := mt.readItem(parentLocatorGUID)
	if err != nil || !present {
		return ParentLocator{}, present, err
	}
	pl, err := decodeParentLocator(buf)
	return pl, true, err
}

type parentLocatorHeaderWire struct {
	LocatorType    [16]byte
	Reserved       uint16
	KeyValueCount  uint16
}

type parentLocatorEntryWire struct {
	KeyOffset   uint32
	ValueOffset uint32
	KeyLength   uint16
	ValueLength uint16
}

const (
	parentLocatorHeaderLength = 20
	parentLocatorEntryLength  = 12
)

// ParentLocator is the decoded VHDX parent locator: a GUID the
// parent's file-write GUID must match, and an ordered set of filename
// hints.
type ParentLocator struct {
	Keys map[string]string
}

func decodeParentLocator(body []byte) (ParentLocator, error) {
	const op = "vhdx.decodeParentLocator"
	if len(body) < parentLocatorHeaderLength {
		return ParentLocator{}, errs.New(errs.KindMalformed, op, errWrongSize(len(body), parentLocatorHeaderLength))
	}
	var hdr parentLocatorHeaderWire
	if err := binary.Read(bytes.NewReader(body[:parentLocatorHeaderLength]), binary.LittleEndian, &hdr); err != nil {
		return ParentLocator{}, errs.New(errs.KindMalformed, op, err)
	}

	keys := make(map[string]string, hdr.KeyValueCount)
	for i := 0; i < int(hdr.KeyValueCount); i++ {
		off := parentLocatorHeaderLength + i*parentLocatorEntryLength
		if off+parentLocatorEntryLength > len(body) {
			return ParentLocator{}, errs.New(errs.KindMalformed, op, errWrongSize(len(body), off+parentLocatorEntryLength))
		}
		var e parentLocatorEntryWire
		if err := binary.Read(bytes.NewReader(body[off:off+parentLocatorEntryLength]), binary.LittleEndian, &e); err != nil {
			return ParentLocator{}, errs.New(errs.KindMalformed, op, err)
		}
		key := decodeUTF16LE(body, e.KeyOffset, e.KeyLength)
		value := decodeUTF16LE(body, e.ValueOffset, e.ValueLength)
		keys[key] = value
	}
	return ParentLocator{Keys: keys}, nil
}

func decodeUTF16LE(body []byte, offset uint32, byteLength uint16) string {
	if int(offset)+int(byteLength) > len(body) {
		return ""
	}
	raw := body[offset : offset+uint32(byteLength)]
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = uint16(raw[i*2]) | uint16(raw[i*2+1])<<8
	}
	return string(utf16.Decode(units))
}

// FilenameHint returns the first filename hint present among
// relative_path, absolute_win32_path, and volume_path, in that order.
func (pl ParentLocator) FilenameHint() (string, bool) {
	for _, key := range []string{"relative_path", "absolute_win32_path", "volume_path"} {
		if v, ok := pl.Keys[key]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// LinkageGUID parses the parent_linkage key as a GUID.
func (pl ParentLocator) LinkageGUID() (guid.Identifier, bool) {
	v, ok := pl.Keys["parent_linkage"]
	if !ok {
		return guid.Identifier{}, false
	}
	id, err := parseLinkageGUID(v)
	if err != nil {
		return guid.Identifier{}, false
	}
	return id, true
}
