package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	kv := []any{"identifier", "abc", "count", 3, "issuer_id"}
	assert.Equal(t, "abc", String(kv, "identifier"))
	assert.Equal(t, "", String(kv, "count"))
	assert.Equal(t, "", String(kv, "issuer_id"))
}

func TestPairs(t *testing.T) {
	kv := []any{"identifier", "abc", "subject_email", "a@x", "issuer_id", "i-1"}
	assert.Equal(t, []any{"identifier", "abc", "issuer_id", "i-1"}, Pairs(kv, "issuer_id", "identifier"))
	assert.Nil(t, Pairs(kv, "missing"))
}
