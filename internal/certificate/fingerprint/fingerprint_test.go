package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	const id = "5b1e6c3e-2f0a-4a59-9d1c-0c8c2b0c8f11"

	t.Run("deterministic", func(t *testing.T) {
		a, err := Compute(id, "bob@x.com", "Math", "Acme")
		require.NoError(t, err)
		b, err := Compute(id, "bob@x.com", "Math", "Acme")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("insensitive to case and surrounding whitespace", func(t *testing.T) {
		a, err := Compute(id, " Bob@X.com ", "Math", "Acme")
		require.NoError(t, err)
		b, err := Compute(id, "bob@x.com", "math", "acme")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("identifier case is preserved", func(t *testing.T) {
		a, err := Compute("ABC", "bob@x.com", "math", "acme")
		require.NoError(t, err)
		b, err := Compute("abc", "bob@x.com", "math", "acme")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("matches sha256 over the pipe-joined preimage", func(t *testing.T) {
		got, err := Compute("  id-1 ", "Alice@Example.com", " Physics", "Acme Univ ")
		require.NoError(t, err)

		sum := sha256.Sum256([]byte("id-1|alice@example.com|physics|acme univ"))
		assert.Equal(t, hex.EncodeToString(sum[:]), got)
		assert.Len(t, got, 64)
	})

	t.Run("missing optional fields hash as empty strings", func(t *testing.T) {
		got, err := Compute("id-1", "", "", "")
		require.NoError(t, err)

		sum := sha256.Sum256([]byte("id-1|||"))
		assert.Equal(t, hex.EncodeToString(sum[:]), got)
	})

	t.Run("empty identifier is rejected", func(t *testing.T) {
		_, err := Compute("   ", "bob@x.com", "math", "acme")
		assert.ErrorIs(t, err, ErrEmptyIdentifier)
	})

	t.Run("any field change alters the fingerprint", func(t *testing.T) {
		base, _ := Compute(id, "bob@x.com", "math", "acme")
		changed, _ := Compute(id, "bob@x.com", "chemistry", "acme")
		assert.False(t, Equal(base, changed))
	})
}
