package msgpack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID    uint64
	Cause string
	At    time.Time
	Extra map[string]string
}

func TestConverterReuse(t *testing.T) {
	c := New()
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	first, err := c.Marshal(record{ID: 1, Cause: "abort", At: at})
	require.NoError(t, err)
	second, err := c.Marshal(record{ID: 2, Extra: map[string]string{"pid": "7"}})
	require.NoError(t, err)

	var got record
	require.NoError(t, Unmarshal(first, &got))
	assert.Equal(t, uint64(1), got.ID)
	assert.Equal(t, "abort", got.Cause)
	assert.True(t, at.Equal(got.At))

	got = record{}
	require.NoError(t, Unmarshal(second, &got))
	assert.Equal(t, uint64(2), got.ID)
	assert.Equal(t, map[string]string{"pid": "7"}, got.Extra)
}
