// Package fingerprint canonicalizes a document into a fixed-width digest and
// converts between its binary and hex representations.
//
// The digest is SHA-256 of the exact byte content; identical bytes always
// produce identical digests, and the digest is what binds a document to a
// certificate record. All functions are pure.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	dErrors "attest/pkg/domain-errors"
)

// Size is the byte width of a document digest.
const Size = sha256.Size

// Digest is the canonical fingerprint of a document's byte content.
type Digest [Size]byte

// New computes the digest of the given bytes.
func New(content []byte) Digest {
	return sha256.Sum256(content)
}

// ParseHex decodes a hex-encoded digest with an optional "0x" prefix.
// The remaining text must decode to exactly Size bytes.
func ParseHex(s string) (Digest, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if trimmed == "" {
		return Digest{}, dErrors.New(dErrors.CodeInvalidInput, "fingerprint is required")
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return Digest{}, dErrors.New(dErrors.CodeInvalidInput, "fingerprint must be hex encoded")
	}
	if len(raw) != Size {
		return Digest{}, dErrors.Newf(dErrors.CodeInvalidInput, "fingerprint must be exactly %d hex characters", Size*2)
	}
	var d Digest
	copy(d[:], raw)
	return d, nil
}

// Hex returns the lowercase hex encoding, with a "0x" prefix when prefixed
// is true. ParseHex round-trips both forms.
func (d Digest) Hex(prefixed bool) string {
	if prefixed {
		return "0x" + hex.EncodeToString(d[:])
	}
	return hex.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.Hex(true)
}

// MarshalText encodes the digest as prefixed hex for JSON and text formats.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex(true)), nil
}

// UnmarshalText decodes prefixed or bare hex.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseHex(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
