// Package domain defines the identifier types shared across the registry
// and certificate modules.
//
// Issuers and recipients are identified by 20-byte address-like values that
// are assigned externally and never reused. A distinct fixed-width type (as
// opposed to a raw string) makes the zero-value check explicit and keeps the
// hex encoding in one place.
package domain

import (
	"encoding/hex"
	"strings"

	dErrors "attest/pkg/domain-errors"
)

// AddressLen is the byte width of an issuer or recipient address.
const AddressLen = 20

// Address is an opaque 20-byte identifier for issuers and recipients.
type Address [AddressLen]byte

// ZeroAddress is the invalid all-zero address. Registration rejects it.
var ZeroAddress Address

// ParseAddress decodes a hex-encoded address with an optional "0x" prefix.
// The remaining text must decode to exactly AddressLen bytes.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if trimmed == "" {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address is required")
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address must be hex encoded")
	}
	if len(raw) != AddressLen {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address must be exactly 20 bytes")
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Hex returns the lowercase hex encoding with a "0x" prefix.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

// MarshalText encodes the address as prefixed hex for JSON and text formats.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText decodes prefixed or bare hex.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
