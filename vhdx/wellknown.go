package vhdx

import (
	"github.com/google/uuid"

	"vhdi/guid"
)

// mustGUID parses a standard dashed GUID string into canonical form.
// google/uuid lays out a parsed UUID's first three fields big-endian,
// matching VHD wire order, so guid.DecodeVHD performs exactly the
// byte-swap canonicalization needed here too.
func mustGUID(s string) guid.Identifier {
	return guid.DecodeVHD([16]byte(uuid.MustParse(s)))
}

// hex16 renders an Identifier as a dashed GUID string for error
// messages; it does not need to be canonically correct, only
// recognizable.
func hex16(id guid.Identifier) string {
	wire := id.EncodeVHD()
	return uuid.UUID(wire).String()
}

// parseLinkageGUID parses a parent_linkage value in standard dashed
// GUID string form.
func parseLinkageGUID(s string) (guid.Identifier, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return guid.Identifier{}, err
	}
	return guid.DecodeVHD([16]byte(u)), nil
}
