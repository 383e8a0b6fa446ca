package vhdx_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"vhdi/checksum"
	"vhdi/vhdx"
)

// buildHeaderRegion constructs a valid, CRC-32C-checksummed 4096-byte
// VHDX header slot for tests.
func buildHeaderRegion(t *testing.T, seq uint64) []byte {
	return buildHeaderRegionMarked(t, seq, 0)
}

func buildHeaderRegionMarked(t *testing.T, seq uint64, fileWriteGUIDMarker byte) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	buf.WriteString("head")
	binary.Write(buf, binary.LittleEndian, uint32(0)) // Checksum placeholder
	binary.Write(buf, binary.LittleEndian, seq)
	fileWriteGUID := make([]byte, 16)
	fileWriteGUID[0] = fileWriteGUIDMarker
	buf.Write(fileWriteGUID) // FileWriteGUID
	buf.Write(make([]byte, 16)) // DataWriteGUID
	buf.Write(make([]byte, 16)) // LogGUID
	binary.Write(buf, binary.LittleEndian, uint16(0)) // LogVersion
	binary.Write(buf, binary.LittleEndian, uint16(0)) // Version
	binary.Write(buf, binary.LittleEndian, uint32(0)) // LogLength
	binary.Write(buf, binary.LittleEndian, uint64(0)) // LogOffset
	buf.Write(make([]byte, 4016))

	region := buf.Bytes()
	if len(region) != vhdx.HeaderSize {
		t.Fatalf("constructed header is %d bytes, want %d", len(region), vhdx.HeaderSize)
	}

	scratch := make([]byte, len(region))
	copy(scratch, region)
	scratch[4], scratch[5], scratch[6], scratch[7] = 0, 0, 0, 0
	sum := checksum.Compute32C(scratch)
	region[4] = byte(sum)
	region[5] = byte(sum >> 8)
	region[6] = byte(sum >> 16)
	region[7] = byte(sum >> 24)

	return region
}

func TestParseHeaderValid(t *testing.T) {
	region := buildHeaderRegion(t, 7)
	h, err := vhdx.ParseHeader(region)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.SequenceNumber != 7 {
		t.Fatalf("SequenceNumber = %d, want 7", h.SequenceNumber)
	}
}

func TestParseHeaderBadSignature(t *testing.T) {
	region := buildHeaderRegion(t, 1)
	region[0] = 'X'
	if _, err := vhdx.ParseHeader(region); err == nil {
		t.Fatalf("expected signature mismatch")
	}
}

func TestParseHeaderBadChecksum(t *testing.T) {
	region := buildHeaderRegion(t, 1)
	region[100] ^= 0xFF
	if _, err := vhdx.ParseHeader(region); err == nil {
		t.Fatalf("expected checksum mismatch")
	}
}
