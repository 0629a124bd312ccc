//go:build property
// +build property

package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var paramTypes = []string{"string", "int", "*string", "[]string", "...int", "*Item", "map[string]any"}

// TestScannerProperties tests invariant properties of the component scanner
func TestScannerProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("optional exactly when pointer or variadic", prop.ForAll(
		func(count int, picks []int) bool {
			var decls []string
			for i := 0; i < count; i++ {
				typ := paramTypes[picks[i%len(picks)]%len(paramTypes)]
				if strings.HasPrefix(typ, "...") && i != count-1 {
					typ = "int"
				}
				decls = append(decls, fmt.Sprintf("p%d %s", i, typ))
			}

			source := fmt.Sprintf("package ui\n\ntempl Widget(%s) {\n\t<div></div>\n}\n", strings.Join(decls, ", "))
			path := filepath.Join(t.TempDir(), "widget.templ")
			if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
				return false
			}

			module, err := NewComponentScanner().ScanFile(path)
			if err != nil || len(module.Components) != 1 {
				return false
			}

			params := module.Components[0].Parameters
			if len(params) != count {
				return false
			}
			for i, p := range params {
				want := strings.HasPrefix(p.Type, "*") || strings.HasPrefix(p.Type, "...")
				if p.Optional != want || p.Name != fmt.Sprintf("p%d", i) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 6),
		gen.SliceOfN(6, gen.IntRange(0, 100)),
	))

	properties.Property("scanning is idempotent", prop.ForAll(
		func(name string) bool {
			source := fmt.Sprintf("package ui\n\ntempl %s(text string) {\n\t<p>{ text }</p>\n}\n", name)
			path := filepath.Join(t.TempDir(), "idem.templ")
			if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
				return false
			}

			scanner := NewComponentScanner()
			first, err1 := scanner.ScanFile(path)
			second, err2 := scanner.ScanFile(path)
			if err1 != nil || err2 != nil {
				return false
			}
			return first.Hash == second.Hash &&
				len(first.Components) == 1 &&
				first.Components[0].Name == second.Components[0].Name
		},
		gen.Identifier().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t)
}
