package environment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/a-h/templ"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/templaudit/pkg/theme"
)

// ThemingProvider installs a theme value into the render context.
type ThemingProvider struct {
	Theme theme.Theme
	// Source is the theme file the value came from, empty for the default
	Source string
}

// Name implements Provider.
func (p *ThemingProvider) Name() string { return "theming" }

// Wrap implements Provider.
func (p *ThemingProvider) Wrap(child templ.Component) templ.Component {
	return wrapWith(p, child, func(ctx context.Context) context.Context {
		return theme.WithTheme(ctx, p.Theme)
	})
}

// HarnessImports implements Provider.
func (p *ThemingProvider) HarnessImports() []string {
	return []string{`theme "` + ThemePackage + `"`}
}

// HarnessSetup implements Provider.
func (p *ThemingProvider) HarnessSetup() string {
	data, err := json.Marshal(p.Theme)
	if err != nil {
		data = []byte("{}")
	}
	return "ctx = theme.WithTheme(ctx, theme.MustDecode(" + strconv.Quote(string(data)) + "))"
}

// loadTheme returns the first conventional theme file that exists under
// root, or the default theme.
func (r *Resolver) loadTheme(ctx context.Context, root string) (theme.Theme, string) {
	for _, name := range r.config.ThemeFiles {
		path := filepath.Join(root, filepath.FromSlash(name))
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		t, err := decodeTheme(path, data)
		if err != nil {
			r.logger.Warn(ctx, err, "Invalid theme file, using default theme", "path", path)
			return theme.Default(), ""
		}
		r.logger.Debug(ctx, "Loaded theme", "path", path, "name", t.Name)
		return t, path
	}

	return theme.Default(), ""
}

func decodeTheme(path string, data []byte) (theme.Theme, error) {
	if filepath.Ext(path) == ".json" {
		return theme.Decode(data)
	}

	var t theme.Theme
	if err := yaml.Unmarshal(data, &t); err != nil {
		return theme.Theme{}, fmt.Errorf("decoding theme: %w", err)
	}
	return t, nil
}
