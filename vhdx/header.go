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
	HeaderSize        = 4096
	headerSlot0Offset = 0x10000
	headerSlot1Offset = 0x20000
	headerChecksumAt  = 4
)

var headerCookie = [4]byte{'h', 'e', 'a', 'd'}

// headerWire is the exact 4096-byte on-disk layout, little-endian.
type headerWire struct {
	Signature      [4]byte
	Checksum       uint32
	SequenceNumber uint64
	FileWriteGUID  [16]byte
	DataWriteGUID  [16]byte
	LogGUID        [16]byte
	LogVersion     uint16
	Version        uint16
	LogLength      uint32
	LogOffset      uint64
	Reserved       [4016]byte
}

// Header is the parsed, validated contents of one header slot.
type Header struct {
	SequenceNumber uint64
	FileWriteGUID  guid.Identifier
	DataWriteGUID  guid.Identifier
	LogGUID        guid.Identifier
	LogLength      uint32
	LogOffset      uint64
}

// ParseHeader validates the signature and CRC-32C of a 4096-byte
// header region and decodes it.
func ParseHeader(region []byte) (*Header, error) {
	const op = "vhdx.ParseHeader"
	if len(region) != HeaderSize {
		return nil, errs.New(errs.KindArgument, op, errWrongSize(len(region), HeaderSize))
	}

	var wire headerWire
	if err := binary.Read(bytes.NewReader(region), binary.LittleEndian, &wire); err != nil {
		return nil, errs.New(errs.KindMalformed, op, err)
	}

	if wire.Signature != headerCookie {
		return nil, errs.New(errs.KindSignatureMismatch, op, errSignature(wire.Signature[:], headerCookie[:]))
	}

	if _, _, ok := checksum.VerifyFieldZeroed(region, headerChecksumAt); !ok {
		return nil, errs.New(errs.KindChecksumMismatch, op, errChecksum())
	}

	return &Header{
		SequenceNumber: wire.SequenceNumber,
		FileWriteGUID:  guid.DecodeVHDX(wire.FileWriteGUID),
		DataWriteGUID:  guid.DecodeVHDX(wire.DataWriteGUID),
		LogGUID:        guid.DecodeVHDX(wire.LogGUID),
		LogLength:      wire.LogLength,
		LogOffset:      wire.LogOffset,
	}, nil
}

// loadAuthoritativeHeader reads both header slots and returns the one
// with the larger valid sequence number. If both slots fail signature
// or checksum validation, the image fails to load.
func loadAuthoritativeHeader(source iosrc.Source) (*Header, error) {
	const op = "vhdx.loadAuthoritativeHeader"

	region0 := make([]byte, HeaderSize)
	if _, err := readFull(source, headerSlot0Offset, region0); err != nil {
		return nil, errs.NewAt(errs.KindIO, op, headerSlot0Offset, err)
	}
	region1 := make([]byte, HeaderSize)
	if _, err := readFull(source, headerSlot1Offset, region1); err != nil {
		return nil, errs.NewAt(errs.KindIO, op, headerSlot1Offset, err)
	}

	h0, err0 := ParseHeader(region0)
	h1, err1 := ParseHeader(region1)

	switch {
	case err0 == nil && err1 == nil:
		if h1.SequenceNumber > h0.SequenceNumber {
			return h1, nil
		}
		return h0, nil
	case err0 == nil:
		return h0, nil
	case err1 == nil:
		return h1, nil
	default:
		return nil, errs.New(errs.KindChecksumMismatch, op, errBothHeadersInvalid(err0, err1))
	}
}

