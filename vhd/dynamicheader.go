package vhd

import (
	"bytes"
	"encoding/binary"

	"vhdi/errs"
	"vhdi/guid"
)

const DynamicHeaderSize = 1024

var dynamicHeaderCookie = [8]byte{'c', 'x', 's', 'p', 'a', 'r', 's', 'e'}

type parentLocatorEntryWire struct {
	PlatformCode       [4]byte
	PlatformDataSpace  uint32
	PlatformDataLength uint32
	Reserved           uint32
	PlatformDataOffset uint64
}

type dynamicHeaderWire struct {
	Cookie               [8]byte
	DataOffset           uint64 // next header; usually all-1s
	TableOffset          uint64
	HeaderVersion        uint32
	MaxTableEntries      uint32
	BlockSize            uint32
	Checksum             uint32
	ParentUniqueID       [16]byte
	ParentTimeStamp      uint32
	Reserved1            uint32
	ParentUnicodeName    [512]byte // UTF-16BE, NUL-terminated
	ParentLocatorEntries [8]parentLocatorEntryWire
	Reserved2            [256]byte
}

// DynamicHeader is the parsed VHD dynamic-disk header, present for
// both Dynamic and Differential images.
type DynamicHeader struct {
	TableOffset       uint64
	MaxTableEntries   uint32
	BlockSize         uint32
	ParentIdentifier  guid.Identifier
	ParentUnicodeName [512]byte
	ParentLocators    [8]ParentLocatorEntry
}

// ParentLocatorEntry is one of the eight VHD parent-locator slots.
type ParentLocatorEntry struct {
	PlatformCode [4]byte
	DataOffset   uint64
	DataLength   uint32
}

// ParseDynamicHeader validates the signature and checksum of a
// 1024-byte dynamic-header region and decodes it.
func ParseDynamicHeader(region []byte) (*DynamicHeader, error) {
	const op = "vhd.ParseDynamicHeader"
	if len(region) != DynamicHeaderSize {
		return nil, errs.New(errs.KindArgument, op, errWrongSize(len(region), DynamicHeaderSize))
	}

	var wire dynamicHeaderWire
	if err := binary.Read(bytes.NewReader(region), binary.BigEndian, &wire); err != nil {
		return nil, errs.New(errs.KindMalformed, op, err)
	}

	if wire.Cookie != dynamicHeaderCookie {
		return nil, errs.New(errs.KindSignatureMismatch, op, errSignature(wire.Cookie[:], dynamicHeaderCookie[:]))
	}

	if !verifyOnesComplement(region, 36 /* Checksum field offset */, wire.Checksum) {
		return nil, errs.New(errs.KindChecksumMismatch, op, errChecksum())
	}

	if wire.BlockSize == 0 || wire.BlockSize&(wire.BlockSize-1) != 0 || wire.BlockSize%vhdSectorSize != 0 {
		return nil, errs.New(errs.KindMalformed, op, errBadBlockSize(wire.BlockSize))
	}

	hdr := &DynamicHeader{
		TableOffset:       wire.TableOffset,
		MaxTableEntries:   wire.MaxTableEntries,
		BlockSize:         wire.BlockSize,
		ParentIdentifier:  guid.DecodeVHD(wire.ParentUniqueID),
		ParentUnicodeName: wire.ParentUnicodeName,
	}
	for i, entry := range wire.ParentLocatorEntries {
		hdr.ParentLocators[i] = ParentLocatorEntry{
			PlatformCode: entry.PlatformCode,
			DataOffset:   entry.PlatformDataOffset,
			DataLength:   entry.PlatformDataLength,
		}
	}
	return hdr, nil
}

const vhdSectorSize = 512
