package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "attest/pkg/domain-errors"
)

func TestNew_Deterministic(t *testing.T) {
	content := []byte("diploma-1")

	first := New(content)
	second := New(content)
	assert.Equal(t, first, second)

	// A single differing byte must change the digest.
	other := New([]byte("diploma-2"))
	assert.NotEqual(t, first, other)
}

func TestHex_RoundTrip(t *testing.T) {
	d := New([]byte("round trip payload"))

	t.Run("prefixed", func(t *testing.T) {
		parsed, err := ParseHex(d.Hex(true))
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
	})

	t.Run("unprefixed", func(t *testing.T) {
		parsed, err := ParseHex(d.Hex(false))
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
	})

	t.Run("uppercase input", func(t *testing.T) {
		parsed, err := ParseHex(strings.ToUpper(d.Hex(false)))
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
	})
}

func TestParseHex_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"prefix only":      "0x",
		"not hex":          "0x" + strings.Repeat("zz", Size),
		"too short":        "0x" + strings.Repeat("ab", Size-1),
		"too long":         "0x" + strings.Repeat("ab", Size+1),
		"odd length":       strings.Repeat("a", Size*2-1),
		"embedded garbage": strings.Repeat("ab", Size-2) + "0x00",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseHex(input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestParseHex_AcceptsAllZeroDigest(t *testing.T) {
	// The all-zero digest is a legal fingerprint value; "unknown" is a
	// lookup outcome, not an encoding property.
	parsed, err := ParseHex(strings.Repeat("00", Size))
	require.NoError(t, err)
	assert.Equal(t, Digest{}, parsed)
}
