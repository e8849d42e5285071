package attrs

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestExtractString(t *testing.T) {
	id := uuid.MustParse("5f0c3a5e-8a51-4c1c-9a4b-3d1f2b6c7e80")
	attrs := []any{"member_id", id, "reason", "incomplete", "count", 3, "dangling"}

	assert.Equal(t, id.String(), ExtractString(attrs, "member_id"))
	assert.Equal(t, "incomplete", ExtractString(attrs, "reason"))
	assert.Equal(t, "", ExtractString(attrs, "count"))
	assert.Equal(t, "", ExtractString(attrs, "dangling"))
	assert.Equal(t, "", ExtractString(attrs, "missing"))
}
