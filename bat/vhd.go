package bat

import (
	"vhdi/errs"
	"vhdi/iosrc"
)

const vhdSectorSize = 512
const vhdNotPresentSector = 0xFFFFFFFF

// VHDTable is the VHD BAT: a flat array of big-endian u32 sector
// numbers, one per block, each pointing at a per-sector bitmap
// immediately followed by the block's payload.
type VHDTable struct {
	entries      []uint32 // one per block; vhdNotPresentSector = unallocated
	blockSize    uint32
	bitmapBytes  uint32 // meaningful sector-bitmap length
	bitmapRound  uint32 // bitmap length rounded up to a 512-byte sector
	differential bool
	source       iosrc.Source
}

// NewVHDTable builds a VHD BAT view over entries (already sized to
// the image's block count; invariant 3 is checked by the caller
// before this constructor runs). source is consulted lazily, only for
// differential images, to read each present block's sector bitmap.
func NewVHDTable(entries []uint32, blockSize uint32, differential bool, source iosrc.Source) *VHDTable {
	bitmapBits := blockSize / vhdSectorSize
	bitmapBytes := (bitmapBits + 7) / 8
	bitmapRound := ((bitmapBytes + vhdSectorSize - 1) / vhdSectorSize) * vhdSectorSize

	return &VHDTable{
		entries:      entries,
		blockSize:    blockSize,
		bitmapBytes:  bitmapBytes,
		bitmapRound:  bitmapRound,
		differential: differential,
		source:       source,
	}
}

// BlockCount implements Table.
func (t *VHDTable) BlockCount() uint64 { return uint64(len(t.entries)) }

// StateOf implements Table.
//
// Dynamic images: per spec.md's retained source behavior, the
// per-block bitmap is advisory only and treated as "all present".
// Differential images: bit b of the bitmap selects, for sector b of
// the block, whether it comes from this image (1) or the parent (0).
func (t *VHDTable) StateOf(block uint64) (State, error) {
	if block >= uint64(len(t.entries)) {
		return State{}, errs.New(errs.KindArgument, "bat.VHDTable.StateOf", errOutOfRange(block, uint64(len(t.entries))))
	}

	entry := t.entries[block]
	if entry == vhdNotPresentSector {
		return State{Kind: NotPresent}, nil
	}

	bitmapOffset := uint64(entry) * vhdSectorSize
	dataOffset := bitmapOffset + uint64(t.bitmapRound)

	if dataOffset+uint64(t.blockSize) > t.source.Size() {
		return State{}, errs.NewAt(errs.KindMalformed, "bat.VHDTable.StateOf", dataOffset,
			errBlockBeyondSource(dataOffset, t.blockSize, t.source.Size()))
	}

	if !t.differential {
		return State{Kind: Present, PhysicalOffset: dataOffset}, nil
	}

	bitmap := make([]byte, t.bitmapBytes)
	n, err := t.source.ReadAt(bitmapOffset, bitmap)
	if err != nil {
		return State{}, errs.NewAt(errs.KindIO, "bat.VHDTable.StateOf", bitmapOffset, err)
	}
	if uint32(n) != t.bitmapBytes {
		return State{}, errs.NewAt(errs.KindIO, "bat.VHDTable.StateOf", bitmapOffset, errShortRead(n, int(t.bitmapBytes)))
	}

	return State{Kind: PartiallyPresent, PhysicalOffset: dataOffset, Bitmap: bitmap}, nil
}
