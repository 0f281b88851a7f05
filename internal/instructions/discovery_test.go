package instructions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiscover_OrderAndOverride(t *testing.T) {
	root := t.TempDir()
	home := filepath.Join(root, "home")
	repo := filepath.Join(root, "repo")
	sub := filepath.Join(repo, "pkg")

	write(t, filepath.Join(home, ".ag", FileName), "global")
	write(t, filepath.Join(repo, FileName), "repo")
	write(t, filepath.Join(sub, FileName), "ignored")
	write(t, filepath.Join(sub, OverrideFileName), "pkg override")

	assert.Equal(t, "global\n\nrepo\n\npkg override", Discover(home, sub))
}

func TestDiscover_NothingFound(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", Discover("", dir))
	assert.Equal(t, "", Discover(filepath.Join(dir, "nohome"), ""))
}

func TestDiscover_SkipsBlankFiles(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, FileName), "  \n")
	assert.Equal(t, "", Discover("", dir))
}

func TestWithInstructions(t *testing.T) {
	assert.Equal(t, "sys", WithInstructions("sys", "  "))
	assert.Equal(t, "sys\n\n# Project instructions\n\nbe brief", WithInstructions("sys", "be brief\n"))
}
