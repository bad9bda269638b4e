package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompress(t *testing.T) {
	small := []byte("short input")
	out, compressed, err := Compress(small)
	require.NoError(t, err)
	assert.False(t, compressed)
	assert.Equal(t, small, out)

	big := bytes.Repeat([]byte("AAAA%n%n"), Threshold)
	out, compressed, err = Compress(big)
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.Less(t, len(out), len(big))

	back, err := DeCompress(out)
	require.NoError(t, err)
	assert.Equal(t, big, back)
}

func TestDeCompressGarbage(t *testing.T) {
	_, err := DeCompress([]byte("not zlib"))
	assert.Error(t, err)
}
