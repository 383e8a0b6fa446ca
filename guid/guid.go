// Package guid implements the 128-bit identifier shared by VHD and
// VHDX, normalizing both wire encodings to one canonical mixed-endian
// form so callers never have to know which format produced a value.
package guid

// Identifier is a 128-bit value in canonical mixed-endian form: the
// first three fields (Data1 uint32, Data2 uint16, Data3 uint16) in
// little-endian order, followed by the 8-byte Data4 field unchanged.
// VHDX's wire encoding already matches this layout; VHD's does not and
// must be byte-swapped on the way in and out.
type Identifier [16]byte

// Zero is the all-zero identifier, used as a sentinel for "no parent".
var Zero Identifier

// DecodeVHD converts a 16-byte VHD wire-order identifier (first three
// fields big-endian) to canonical form.
func DecodeVHD(wire [16]byte) Identifier {
	var id Identifier
	id[0], id[1], id[2], id[3] = wire[3], wire[2], wire[1], wire[0]
	id[4], id[5] = wire[5], wire[4]
	id[6], id[7] = wire[7], wire[6]
	copy(id[8:], wire[8:])
	return id
}

// EncodeVHD converts a canonical identifier back to VHD wire order.
func (id Identifier) EncodeVHD() [16]byte {
	var wire [16]byte
	wire[0], wire[1], wire[2], wire[3] = id[3], id[2], id[1], id[0]
	wire[4], wire[5] = id[5], id[4]
	wire[6], wire[7] = id[7], id[6]
	copy(wire[8:], id[8:])
	return wire
}

// DecodeVHDX converts a 16-byte VHDX wire-order identifier (already
// little-endian) to canonical form. It is a straight copy.
func DecodeVHDX(wire [16]byte) Identifier {
	return Identifier(wire)
}

// EncodeVHDX converts a canonical identifier back to VHDX wire order.
func (id Identifier) EncodeVHDX() [16]byte {
	return [16]byte(id)
}

// Equal compares two canonical identifiers byte-wise.
func (id Identifier) Equal(other Identifier) bool {
	return id == other
}

// IsZero reports whether id is the all-zero identifier.
func (id Identifier) IsZero() bool {
	return id == Zero
}
