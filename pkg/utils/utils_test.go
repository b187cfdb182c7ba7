package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"10s", 10 * time.Second},
		{" 1m30s ", 90 * time.Second},
		{"", 5 * time.Second},
		{"soon", 5 * time.Second},
		{"-3s", 5 * time.Second},
		{"0s", 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseDuration(tt.in, 5*time.Second), "input %q", tt.in)
	}
}

func TestNumeric(t *testing.T) {
	assert.Equal(t, 3.0, Numeric(3))
	assert.Equal(t, 2.5, Numeric(2.5))
	assert.Equal(t, 7.0, Numeric(uint8(7)))
	assert.Equal(t, 0.0, Numeric(nil))
	assert.Equal(t, 0.0, Numeric("12"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitList(" a, b,,c ,"))
	assert.Nil(t, SplitList(" , "))
}

func TestAssetManagerResolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("//"), 0o644))

	am := NewAssetManager(dir)
	require.NoError(t, am.EnsureBaseDirExists())

	got, err := am.Resolve("/assets/app.js")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "assets", "app.js"), got)

	// client-side routes and directories fall back to the index
	for _, p := range []string{"/scenarios/s1", "/assets", "/../../etc/passwd"} {
		got, err = am.Resolve(p)
		require.NoError(t, err, p)
		assert.Equal(t, filepath.Join(dir, "index.html"), got, p)
	}

	assert.Equal(t, "application/javascript", am.GetContentType("app.js"))
	assert.Equal(t, "application/octet-stream", am.GetContentType("blob"))
}

func TestAssetManagerWithoutIndex(t *testing.T) {
	am := NewAssetManager(t.TempDir())
	_, err := am.Resolve("/missing")
	assert.ErrorIs(t, err, os.ErrNotExist)

	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, NewAssetManager(file).EnsureBaseDirExists())
}
