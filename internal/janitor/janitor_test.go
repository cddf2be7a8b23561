package janitor

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepRemovesPresentAndSkipsMissing(t *testing.T) {
	root := t.TempDir()
	models := filepath.Join(root, "models")
	require.NoError(t, os.MkdirAll(filepath.Join(models, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(models, "nested", "m.gguf"), []byte("x"), 0o644))
	missing := filepath.Join(root, "runtime")

	rep := Sweep([]string{models, missing}, zerolog.Nop())

	assert.Equal(t, []string{models}, rep.Removed)
	assert.Equal(t, []string{missing}, rep.Skipped)
	assert.Empty(t, rep.Errors)
	_, err := os.Stat(models)
	assert.True(t, os.IsNotExist(err))
}

func TestSweepExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	dir := filepath.Join(home, ".cache", "navagent", "models")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	rep := Sweep([]string{"~/.cache/navagent/models"}, zerolog.Nop())

	assert.Equal(t, []string{dir}, rep.Removed)
	assert.DirExists(t, home)
}

func TestSweepRefusesProtectedPathsAndContinues(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	keep := filepath.Join(home, "keep.txt")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))
	target := filepath.Join(t.TempDir(), "models")
	require.NoError(t, os.MkdirAll(target, 0o755))

	var buf bytes.Buffer
	rep := Sweep([]string{"", "/", "~", target}, zerolog.New(&buf))

	assert.Len(t, rep.Errors, 3)
	assert.Equal(t, []string{target}, rep.Removed)
	assert.FileExists(t, keep)
	assert.Contains(t, buf.String(), "cache sweep refused")
}
