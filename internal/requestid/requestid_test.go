package requestid

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLength(t *testing.T) {
	id := Generate()
	assert.Len(t, id, Length)
}

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := Generate()
		assert.False(t, seen[id], "duplicate id generated: %s", id)
		seen[id] = true
	}
}

func TestTimestampOfRoundTrip(t *testing.T) {
	before := time.Now()
	id := Generate()
	after := time.Now()

	ts, ok := TimestampOf(id)
	require.True(t, ok)
	assert.False(t, ts.Before(before.Truncate(time.Millisecond)))
	assert.False(t, ts.After(after))
}

func TestTimestampOfRejectsMalformed(t *testing.T) {
	_, ok := TimestampOf("too-short")
	assert.False(t, ok)

	_, ok = TimestampOf("!!!!!!!!!!!!!!!!!!!!!!!!!!")
	assert.False(t, ok)
}

func TestLexicographicOrderAgreesWithGenerationOrder(t *testing.T) {
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = Generate()
		time.Sleep(time.Millisecond)
	}

	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	assert.Equal(t, ids, sorted)
}
