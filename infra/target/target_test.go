package target

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	res, err := Static{Crashed: true, Cause: "boom"}.Run(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, Result{Crashed: true, Cause: "boom"}, res)
}

func TestFunc(t *testing.T) {
	var got []byte
	f := Func(func(_ context.Context, data []byte) (Result, error) {
		got = data
		return Result{Crashed: len(data) > 2}, nil
	})
	res, err := f.Run(context.Background(), []byte("abc"))
	require.NoError(t, err)
	assert.True(t, res.Crashed)
	assert.Equal(t, "abc", string(got))
}

func script(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "target.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestProcess(t *testing.T) {
	t.Run("clean exit", func(t *testing.T) {
		p, err := NewProcess(script(t, "cat >/dev/null; exit 3"), nil, time.Second)
		require.NoError(t, err)
		res, err := p.Run(context.Background(), []byte("input"))
		require.NoError(t, err)
		assert.False(t, res.Crashed)
	})

	t.Run("killed by signal", func(t *testing.T) {
		p, err := NewProcess(script(t, "echo overflow >&2; kill -SEGV $$"), nil, time.Second)
		require.NoError(t, err)
		res, err := p.Run(context.Background(), []byte("input"))
		require.NoError(t, err)
		assert.True(t, res.Crashed)
		assert.Contains(t, res.Cause, "signal")
		assert.Contains(t, res.Cause, "overflow")
	})

	t.Run("timeout", func(t *testing.T) {
		p, err := NewProcess(script(t, "sleep 5"), nil, 100*time.Millisecond)
		require.NoError(t, err)
		res, err := p.Run(context.Background(), []byte("input"))
		require.NoError(t, err)
		assert.True(t, res.Crashed)
		assert.Contains(t, res.Cause, "timeout")
	})

	t.Run("timeout with child holding stderr", func(t *testing.T) {
		p, err := NewProcess(script(t, "sleep 3 & wait"), nil, 100*time.Millisecond)
		require.NoError(t, err)
		start := time.Now()
		res, err := p.Run(context.Background(), []byte("input"))
		require.NoError(t, err)
		assert.True(t, res.Crashed)
		assert.Contains(t, res.Cause, "timeout")
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("stopped from outside", func(t *testing.T) {
		p, err := NewProcess(script(t, "sleep 5"), nil, 5*time.Second)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)
		res, err := p.Run(ctx, []byte("input"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, res.Crashed)
	})

	t.Run("liveness does not run target", func(t *testing.T) {
		marker := filepath.Join(t.TempDir(), "ran")
		p, err := NewProcess(script(t, "touch "+marker), nil, time.Second)
		require.NoError(t, err)
		res, err := p.Run(context.Background(), nil)
		require.NoError(t, err)
		assert.False(t, res.Crashed)
		assert.NoFileExists(t, marker)
	})
}

func TestNewProcessRejectsMissingBinary(t *testing.T) {
	_, err := NewProcess(filepath.Join(t.TempDir(), "nope"), nil, 0)
	assert.ErrorIs(t, err, ErrNotExecutable)
}
