package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoMod(t *testing.T) {
	assert.Equal(t, "module example.com/a\n\ngo 1.24\n", GoMod("example.com/a"))
	assert.Equal(t, "module example.com/a\n\ngo 1.24\n\nrequire github.com/go-chi/chi/v5 v5.2.4\n",
		GoMod("example.com/a", "github.com/go-chi/chi/v5 v5.2.4"))
	assert.Equal(t, "module example.com/a\n\ngo 1.24\n\nrequire (\n\tx.io/a v1.0.0\n\tx.io/b v1.0.0\n)\n",
		GoMod("example.com/a", "x.io/a v1.0.0", "x.io/b v1.0.0"))
}

func TestCreateTempProject(t *testing.T) {
	root := CreateTempProject(t, map[string]string{
		"go.mod":        GoMod("example.com/site"),
		"ui/card.templ": "package ui\n",
		"ui/deep/x.go":  "package deep\n",
	})

	assert.FileExists(t, filepath.Join(root, "go.mod"))
	assert.FileExists(t, filepath.Join(root, "ui", "card.templ"))
	assert.FileExists(t, filepath.Join(root, "ui", "deep", "x.go"))

	path := CreateTestComponent(t, filepath.Join(root, "ui"), "badge", "package ui\n")
	assert.Equal(t, filepath.Join(root, "ui", "badge.templ"), path)
}

func TestCreateTestRegistry(t *testing.T) {
	dir := t.TempDir()
	reg := CreateTestRegistry(dir)

	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, []string{filepath.Join(dir, "page.templ")}, reg.Dependents(filepath.Join(dir, "card.templ")))
	assert.Empty(t, reg.Dependents(filepath.Join(dir, "other.templ")))
}

func TestWaitForFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.templ")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	before := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, before, before))

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = os.WriteFile(path, []byte("b"), 0o644)
	}()

	WaitForFileChange(t, path, before, 2*time.Second)
}
