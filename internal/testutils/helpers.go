// Package testutils holds fixtures shared by package tests: throwaway Go
// projects with component sources, and pre-populated module registries.
package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/templaudit/internal/registry"
	"github.com/conneroisu/templaudit/internal/types"
)

// GoMod returns go.mod content for modulePath requiring each of requires,
// given as "path version".
func GoMod(modulePath string, requires ...string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "module %s\n\ngo 1.24\n", modulePath)
	switch len(requires) {
	case 0:
	case 1:
		fmt.Fprintf(&sb, "\nrequire %s\n", requires[0])
	default:
		sb.WriteString("\nrequire (\n")
		for _, r := range requires {
			fmt.Fprintf(&sb, "\t%s\n", r)
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}

// CreateTempProject writes files, keyed by slash-separated path, into a
// fresh temporary directory and returns its path.
func CreateTempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// CreateTestComponent creates a test component file
func CreateTestComponent(t *testing.T, dir, name, content string) string {
	t.Helper()
	componentPath := filepath.Join(dir, name+".templ")
	require.NoError(t, os.WriteFile(componentPath, []byte(content), 0o644))
	return componentPath
}

// CreateTestRegistry returns a registry holding three sibling modules in
// dir: card.templ declaring Card, page.templ whose Page renders Card, and
// other.templ declaring Other.
func CreateTestRegistry(dir string) *registry.ModuleRegistry {
	reg := registry.NewModuleRegistry(16)
	reg.Add(&types.ModuleInfo{
		Path:       filepath.Join(dir, "card.templ"),
		Package:    "ui",
		Components: []types.ComponentInfo{{Name: "Card", Package: "ui"}},
	})
	reg.Add(&types.ModuleInfo{
		Path:    filepath.Join(dir, "page.templ"),
		Package: "ui",
		Components: []types.ComponentInfo{{
			Name:         "Page",
			Package:      "ui",
			Dependencies: []string{"Card"},
		}},
	})
	reg.Add(&types.ModuleInfo{
		Path:       filepath.Join(dir, "other.templ"),
		Package:    "ui",
		Components: []types.ComponentInfo{{Name: "Other", Package: "ui"}},
	})
	return reg
}

// WaitForFileChange waits for a file to be modified (useful for testing file watchers)
func WaitForFileChange(
	t *testing.T,
	filePath string,
	originalModTime time.Time,
	timeout time.Duration,
) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		info, err := os.Stat(filePath)
		if err == nil && info.ModTime().After(originalModTime) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s was not modified within %v", filePath, timeout)
}
