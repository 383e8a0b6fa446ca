package bat

import (
	"vhdi/errs"
	"vhdi/iosrc"
)

const (
	vhdxStatePayloadNotPresent    = 0
	vhdxStatePayloadUndefined     = 1
	vhdxStatePayloadZero          = 2
	vhdxStatePayloadUnmapped      = 3
	vhdxStatePayloadFullyPresent  = 6
	vhdxStatePayloadPartial       = 7
	vhdxOffsetAlignShift          = 20
	vhdxStateMask          uint64 = 0x7
)

// VHDXTable is the VHDX BAT: a flat array of little-endian u64
// entries with sector-bitmap entries interleaved every chunkRatio
// payload entries.
type VHDXTable struct {
	raw        []uint64
	blockCount uint64
	blockSize  uint32
	sectorSize uint32
	chunkRatio uint64
	source     iosrc.Source
}

// NewVHDXTable builds a VHDX BAT view over the raw entry array exactly
// as it appears on disk (payload and bitmap entries interleaved).
func NewVHDXTable(raw []uint64, blockCount uint64, blockSize, sectorSize uint32, chunkRatio uint64, source iosrc.Source) *VHDXTable {
	return &VHDXTable{
		raw:        raw,
		blockCount: blockCount,
		blockSize:  blockSize,
		sectorSize: sectorSize,
		chunkRatio: chunkRatio,
		source:     source,
	}
}

// BlockCount implements Table.
func (t *VHDXTable) BlockCount() uint64 { return t.blockCount }

func (t *VHDXTable) payloadRawIndex(block uint64) uint64 {
	group := block / t.chunkRatio
	inGroup := block % t.chunkRatio
	return group*(t.chunkRatio+1) + inGroup
}

func (t *VHDXTable) bitmapRawIndex(block uint64) uint64 {
	group := block / t.chunkRatio
	return group*(t.chunkRatio+1) + t.chunkRatio
}

func offsetOf(entry uint64) uint64 {
	return entry &^ ((uint64(1) << vhdxOffsetAlignShift) - 1)
}

// StateOf implements Table.
func (t *VHDXTable) StateOf(block uint64) (State, error) {
	if block >= t.blockCount {
		return State{}, errs.New(errs.KindArgument, "bat.VHDXTable.StateOf", errOutOfRange(block, t.blockCount))
	}

	payloadRaw := t.payloadRawIndex(block)
	if payloadRaw >= uint64(len(t.raw)) {
		return State{}, errs.New(errs.KindMalformed, "bat.VHDXTable.StateOf", errOutOfRange(payloadRaw, uint64(len(t.raw))))
	}
	entry := t.raw[payloadRaw]
	state := entry & vhdxStateMask
	offset := offsetOf(entry)

	switch state {
	case vhdxStatePayloadNotPresent, vhdxStatePayloadUndefined, vhdxStatePayloadUnmapped:
		return State{Kind: NotPresent}, nil

	case vhdxStatePayloadZero:
		return State{Kind: ZeroBlock}, nil

	case vhdxStatePayloadFullyPresent:
		if offset == 0 {
			return State{}, errs.New(errs.KindMalformed, "bat.VHDXTable.StateOf", errZeroOffset())
		}
		if offset+uint64(t.blockSize) > t.source.Size() {
			return State{}, errs.NewAt(errs.KindMalformed, "bat.VHDXTable.StateOf", offset,
				errBlockBeyondSource(offset, t.blockSize, t.source.Size()))
		}
		return State{Kind: Present, PhysicalOffset: offset}, nil

	case vhdxStatePayloadPartial:
		if offset == 0 {
			return State{}, errs.New(errs.KindMalformed, "bat.VHDXTable.StateOf", errZeroOffset())
		}
		if offset+uint64(t.blockSize) > t.source.Size() {
			return State{}, errs.NewAt(errs.KindMalformed, "bat.VHDXTable.StateOf", offset,
				errBlockBeyondSource(offset, t.blockSize, t.source.Size()))
		}
		bitmap, err := t.readBitmap(block)
		if err != nil {
			return State{}, err
		}
		return State{Kind: PartiallyPresent, PhysicalOffset: offset, Bitmap: bitmap}, nil

	default:
		return State{}, errs.New(errs.KindMalformed, "bat.VHDXTable.StateOf", errUnrecognizedState(state))
	}
}

// readBitmap locates the 1 MiB sector-bitmap block for block's chunk
// group and reads just the bytes covering block's own sectors out of
// it.
func (t *VHDXTable) readBitmap(block uint64) ([]byte, error) {
	bitmapRaw := t.bitmapRawIndex(block)
	if bitmapRaw >= uint64(len(t.raw)) {
		return nil, errs.New(errs.KindMalformed, "bat.VHDXTable.readBitmap", errOutOfRange(bitmapRaw, uint64(len(t.raw))))
	}
	bmEntry := t.raw[bitmapRaw]
	if bmEntry&vhdxStateMask != vhdxStatePayloadFullyPresent {
		return nil, errs.New(errs.KindMalformed, "bat.VHDXTable.readBitmap", errMissingBitmap())
	}
	bmOffset := offsetOf(bmEntry)
	if bmOffset == 0 {
		return nil, errs.New(errs.KindMalformed, "bat.VHDXTable.readBitmap", errZeroOffset())
	}

	bitsPerBlock := uint64(t.blockSize) / uint64(t.sectorSize)
	bytesPerBlock := (bitsPerBlock + 7) / 8
	inGroup := block % t.chunkRatio
	byteOffset := bmOffset + inGroup*bytesPerBlock

	buf := make([]byte, bytesPerBlock)
	n, err := t.source.ReadAt(byteOffset, buf)
	if err != nil {
		return nil, errs.NewAt(errs.KindIO, "bat.VHDXTable.readBitmap", byteOffset, err)
	}
	if uint64(n) != bytesPerBlock {
		return nil, errs.NewAt(errs.KindIO, "bat.VHDXTable.readBitmap", byteOffset, errShortRead(n, int(bytesPerBlock)))
	}
	return buf, nil
}
