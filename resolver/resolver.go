// Package resolver implements the one operation that makes the rest
// of the core trustworthy: mapping a logical byte offset to a
// physical offset in the current image, a logical offset to hand to
// the parent, or a zero-fill, while honoring the format's allocation
// granularity. It is a pure function of the descriptor: concurrent
// calls against the same descriptor always return identical results.
package resolver

import (
	"vhdi/bat"
	"vhdi/errs"
	"vhdi/image"
)

// Kind tags what a Span resolved to.
type Kind int

const (
	Zero Kind = iota
	Physical
	Parent
)

// Span is the result of one Resolve call: contiguousLength never
// crosses a block or sub-block-state boundary, and is always in
// (0, maxLen].
type Span struct {
	Kind   Kind
	Offset uint64 // physical offset for Physical; logical offset for Parent
	Length uint64
}

// Resolve maps logical offset L (which must be in [0, desc.MediaSize))
// to a Span of at most maxLen bytes.
func Resolve(desc *image.Descriptor, logical uint64, maxLen uint64) (Span, error) {
	const op = "resolver.Resolve"
	if logical >= desc.MediaSize {
		return Span{}, errs.NewAt(errs.KindArgument, op, logical, errOutOfRange(logical, desc.MediaSize))
	}
	if maxLen == 0 {
		return Span{}, errs.New(errs.KindArgument, op, errZeroLength())
	}

	remaining := desc.MediaSize - logical
	if maxLen > remaining {
		maxLen = remaining
	}

	// Fixed images carry no BAT: the file is the payload, byte for
	// byte, from offset 0.
	if desc.BAT == nil {
		return Span{Kind: Physical, Offset: logical, Length: maxLen}, nil
	}

	block := logical / uint64(desc.BlockSize)
	offsetInBlock := logical % uint64(desc.BlockSize)
	sectorsPerBlock := uint64(desc.BlockSize) / uint64(desc.BytesPerSector)
	sector := offsetInBlock / uint64(desc.BytesPerSector)

	state, err := desc.BAT.StateOf(block)
	if err != nil {
		return Span{}, err
	}

	switch state.Kind {
	case bat.Present:
		length := clamp(maxLen, uint64(desc.BlockSize)-offsetInBlock)
		return Span{Kind: Physical, Offset: state.PhysicalOffset + offsetInBlock, Length: length}, nil

	case bat.ZeroBlock:
		length := clamp(maxLen, uint64(desc.BlockSize)-offsetInBlock)
		return Span{Kind: Zero, Length: length}, nil

	case bat.NotPresent:
		length := clamp(maxLen, uint64(desc.BlockSize)-offsetInBlock)
		if desc.HasParent {
			return Span{Kind: Parent, Offset: logical, Length: length}, nil
		}
		return Span{Kind: Zero, Length: length}, nil

	case bat.PartiallyPresent:
		runSectors, bitSet := bat.BitRun(state.Bitmap, sector, sectorsPerBlock-sector)
		runBytes := runSectors*uint64(desc.BytesPerSector) - (offsetInBlock % uint64(desc.BytesPerSector))
		length := clamp(maxLen, runBytes)

		if bitSet {
			return Span{Kind: Physical, Offset: state.PhysicalOffset + offsetInBlock, Length: length}, nil
		}
		if desc.HasParent {
			return Span{Kind: Parent, Offset: logical, Length: length}, nil
		}
		return Span{Kind: Zero, Length: length}, nil

	default:
		return Span{}, errs.New(errs.KindMalformed, op, errUnknownState(int(state.Kind)))
	}
}

func clamp(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
