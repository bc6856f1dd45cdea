package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeNotFound, "certificate not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeConflict, "duplicate"))
		assert.True(t, HasCode(err, CodeConflict))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection reset")

	err := Wrap(cause, CodeLedgerWriteFailed, "ledger write failed")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeLedgerWriteFailed, CodeOf(err))
	assert.Contains(t, err.Error(), "connection reset")

	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}
