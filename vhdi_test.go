package vhdi_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"vhdi"
	"vhdi/bytesource"
)

func memSource(buf []byte) *bytesource.MemorySource {
	return bytesource.NewMemorySource(buf)
}

// buildVHDFooter constructs a valid, checksummed 512-byte VHD footer.
func buildVHDFooter(t *testing.T, diskType uint32, currentSize uint64, dataOffset uint64, id [16]byte) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	buf.WriteString("conectix")
	binary.Write(buf, binary.BigEndian, uint32(0x00000002))
	binary.Write(buf, binary.BigEndian, uint32(0x00010000))
	binary.Write(buf, binary.BigEndian, dataOffset)
	binary.Write(buf, binary.BigEndian, uint32(0))
	buf.WriteString("tst ")
	binary.Write(buf, binary.BigEndian, uint32(0x00010000))
	buf.WriteString("Go  ")
	binary.Write(buf, binary.BigEndian, currentSize)
	binary.Write(buf, binary.BigEndian, currentSize)
	binary.Write(buf, binary.BigEndian, uint32(0))
	binary.Write(buf, binary.BigEndian, diskType)
	binary.Write(buf, binary.BigEndian, uint32(0)) // checksum placeholder
	buf.Write(id[:])
	buf.WriteByte(0)
	buf.Write(make([]byte, 427))

	region := buf.Bytes()
	if len(region) != 512 {
		t.Fatalf("constructed footer is %d bytes, want 512", len(region))
	}

	var sum uint32
	for i, b := range region {
		if i >= 64 && i < 68 {
			continue
		}
		sum += uint32(b)
	}
	csum := ^sum
	region[64] = byte(csum >> 24)
	region[65] = byte(csum >> 16)
	region[66] = byte(csum >> 8)
	region[67] = byte(csum)
	return region
}

// buildVHDDynamicHeader constructs a valid, checksummed 1024-byte VHD
// dynamic-disk header.
func buildVHDDynamicHeader(t *testing.T, tableOffset uint64, maxEntries, blockSize uint32, parentID [16]byte) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	buf.WriteString("cxsparse")
	binary.Write(buf, binary.BigEndian, uint64(0xFFFFFFFFFFFFFFFF))
	binary.Write(buf, binary.BigEndian, tableOffset)
	binary.Write(buf, binary.BigEndian, uint32(0x00010000))
	binary.Write(buf, binary.BigEndian, maxEntries)
	binary.Write(buf, binary.BigEndian, blockSize)
	binary.Write(buf, binary.BigEndian, uint32(0)) // checksum placeholder
	buf.Write(parentID[:])
	binary.Write(buf, binary.BigEndian, uint32(0))
	binary.Write(buf, binary.BigEndian, uint32(0))
	buf.Write(make([]byte, 512))
	buf.Write(make([]byte, 8*24))
	buf.Write(make([]byte, 256))

	region := buf.Bytes()
	if len(region) != 1024 {
		t.Fatalf("constructed dynamic header is %d bytes, want 1024", len(region))
	}

	var sum uint32
	for i, b := range region {
		if i >= 36 && i < 40 {
			continue
		}
		sum += uint32(b)
	}
	csum := ^sum
	region[36] = byte(csum >> 24)
	region[37] = byte(csum >> 16)
	region[38] = byte(csum >> 8)
	region[39] = byte(csum)
	return region
}

func buildFixedVHD(t *testing.T, payload []byte, id [16]byte) []byte {
	t.Helper()
	footer := buildVHDFooter(t, 2 /* Fixed */, uint64(len(payload)), 0xFFFFFFFFFFFFFFFF, id)
	img := append([]byte{}, payload...)
	return append(img, footer...)
}

// buildDifferentialVHD builds a single-block Differential VHD whose
// one BAT entry is NotPresent, so every read defers to the parent.
func buildDifferentialVHD(t *testing.T, mediaSize uint64, id, parentID [16]byte) []byte {
	t.Helper()

	const blockSize = 2 * 1024 * 1024
	const headerOffset = 512
	const tableOffset = headerOffset + 1024

	header := buildVHDDynamicHeader(t, tableOffset, 1, blockSize, parentID)
	footer := buildVHDFooter(t, 4 /* Differential */, mediaSize, headerOffset, id)

	bat := make([]byte, 4)
	binary.BigEndian.PutUint32(bat, 0xFFFFFFFF) // NotPresent

	img := append([]byte{}, footer...) // copy at file start (unused by this core, but conventional)
	img = append(img, header...)
	img = append(img, bat...)
	img = append(img, footer...) // canonical footer: last 512 bytes
	return img
}

func TestOpenFixedVHDAndReadAt(t *testing.T) {
	var id [16]byte
	id[0] = 0xAA
	payload := bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 64) // one 512-byte sector
	img := buildFixedVHD(t, payload, id)

	disk, err := vhdi.OpenVHD(memSource(img))
	if err != nil {
		t.Fatalf("OpenVHD: %v", err)
	}
	if disk.DiskType() != vhdi.DiskTypeFixed {
		t.Fatalf("DiskType = %v, want Fixed", disk.DiskType())
	}
	if disk.MediaSize() != uint64(len(payload)) {
		t.Fatalf("MediaSize = %d, want %d", disk.MediaSize(), len(payload))
	}

	got := make([]byte, len(payload))
	n, err := disk.ReadAt(0, got)
	if err != nil || n != len(payload) || !bytes.Equal(got, payload) {
		t.Fatalf("ReadAt(0) = %d, %v, %x, want %d, nil, %x", n, err, got, len(payload), payload)
	}
}

func TestOpenAutoDetectsVHD(t *testing.T) {
	var id [16]byte
	img := buildFixedVHD(t, bytes.Repeat([]byte{9}, 512), id)

	disk, err := vhdi.Open(memSource(img))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if disk.FileType() != vhdi.FileTypeVHD {
		t.Fatalf("FileType = %v, want VHD", disk.FileType())
	}
}

func TestDifferencingChainReadsFromParent(t *testing.T) {
	var parentID, nonsenseChildID [16]byte
	parentID[0] = 0x11
	nonsenseChildID[0] = 0x22

	parentPayload := bytes.Repeat([]byte{0x77}, 4096)
	parentImg := buildFixedVHD(t, parentPayload, parentID)

	parent, err := vhdi.OpenVHD(memSource(parentImg))
	if err != nil {
		t.Fatalf("OpenVHD(parent): %v", err)
	}

	childImg := buildDifferentialVHD(t, uint64(len(parentPayload)), nonsenseChildID, parentID)
	child, err := vhdi.OpenVHD(memSource(childImg))
	if err != nil {
		t.Fatalf("OpenVHD(child): %v", err)
	}

	if err := child.AttachParent(parent); err != nil {
		t.Fatalf("AttachParent: %v", err)
	}

	got := make([]byte, 16)
	n, err := child.ReadAt(100, got)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 16 || !bytes.Equal(got, parentPayload[100:116]) {
		t.Fatalf("ReadAt returned %x, want parent bytes %x", got, parentPayload[100:116])
	}
}

func TestAttachParentMismatchFails(t *testing.T) {
	var parentID, wrongParentRef, childID [16]byte
	parentID[0] = 0x11
	wrongParentRef[0] = 0x99
	childID[0] = 0x22

	parentImg := buildFixedVHD(t, bytes.Repeat([]byte{1, 2, 3, 4}, 128), parentID)
	parent, err := vhdi.OpenVHD(memSource(parentImg))
	if err != nil {
		t.Fatalf("OpenVHD(parent): %v", err)
	}

	childImg := buildDifferentialVHD(t, 512, childID, wrongParentRef)
	child, err := vhdi.OpenVHD(memSource(childImg))
	if err != nil {
		t.Fatalf("OpenVHD(child): %v", err)
	}

	if err := child.AttachParent(parent); err == nil {
		t.Fatalf("expected ParentMismatch error")
	}
}
