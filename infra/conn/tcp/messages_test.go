package tcp

import (
	"testing"
	"time"

	"fuzzctl/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeFormat(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	body := FormatOutcome(entities.Outcome{Time: at})
	assert.Equal(t, "crashed=no,time=2024-03-01T12:30:00Z", string(body))

	body = FormatOutcome(entities.Outcome{Crashed: true, Time: at, Cause: "heap overflow, size=12"})
	assert.Equal(t, "crashed=yes,time=2024-03-01T12:30:00Z,crashcause=heap overflow, size=12", string(body))

	got, err := ParseOutcome(body)
	require.NoError(t, err)
	assert.True(t, got.Crashed)
	assert.True(t, at.Equal(got.Time))
	assert.Equal(t, "heap overflow, size=12", got.Cause)
	assert.Nil(t, got.Extra)
}

func TestParseOutcomeExtraKeys(t *testing.T) {
	got, err := ParseOutcome([]byte("pid=42,crashed=no,time=2024-03-01T12:30:00+03:00"))
	require.NoError(t, err)
	assert.False(t, got.Crashed)
	assert.Equal(t, map[string]string{"pid": "42"}, got.Extra)
	assert.Equal(t, 9, got.Time.UTC().Hour())
}

func TestParseOutcomeErrors(t *testing.T) {
	for name, body := range map[string]string{
		"empty":      "",
		"no time":    "crashed=no",
		"bad flag":   "crashed=maybe,time=2024-03-01T12:30:00Z",
		"bad time":   "crashed=no,time=yesterday",
		"cause only": "crashcause=boom",
		"bare item":  "crashed=no,oops,time=2024-03-01T12:30:00Z",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOutcome([]byte(body))
			assert.ErrorIs(t, err, ErrMalformedOutcome)
		})
	}
}
