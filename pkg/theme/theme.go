// Package theme carries a design theme through the render context.
//
// Components that want theme tokens during an accessibility check import
// this package and read the value installed by the checker:
//
//	templ Banner(text string) {
//		{{ t, _ := theme.FromContext(ctx) }}
//		<div style={ "color: " + t.Color("foreground") }>{ text }</div>
//	}
//
// Projects that require this module in their go.mod are treated as having a
// theming provider. The theme value is read from a theme file in the project
// (see the checker configuration), or Default is used.
package theme

import (
	"context"
	"encoding/json"
	"fmt"
)

type contextKey struct{}

// Theme is a flat set of design tokens.
type Theme struct {
	Name    string            `json:"name" yaml:"name"`
	Mode    string            `json:"mode" yaml:"mode"`
	Colors  map[string]string `json:"colors,omitempty" yaml:"colors"`
	Fonts   map[string]string `json:"fonts,omitempty" yaml:"fonts"`
	Spacing map[string]string `json:"spacing,omitempty" yaml:"spacing"`
}

// Default returns the theme used when a project ships no theme file.
func Default() Theme {
	return Theme{
		Name: "default",
		Mode: "light",
		Colors: map[string]string{
			"background": "#ffffff",
			"foreground": "#111827",
			"primary":    "#1d4ed8",
			"secondary":  "#4b5563",
			"error":      "#b91c1c",
		},
		Fonts: map[string]string{
			"body":    "system-ui, sans-serif",
			"heading": "system-ui, sans-serif",
			"mono":    "ui-monospace, monospace",
		},
		Spacing: map[string]string{
			"sm": "0.5rem",
			"md": "1rem",
			"lg": "2rem",
		},
	}
}

// Color returns the named color token, or an empty string.
func (t Theme) Color(name string) string {
	return t.Colors[name]
}

// WithTheme returns a context carrying t.
func WithTheme(ctx context.Context, t Theme) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext returns the theme installed in ctx.
func FromContext(ctx context.Context) (Theme, bool) {
	t, ok := ctx.Value(contextKey{}).(Theme)
	return t, ok
}

// Decode parses a JSON encoded theme.
func Decode(data []byte) (Theme, error) {
	var t Theme
	if err := json.Unmarshal(data, &t); err != nil {
		return Theme{}, fmt.Errorf("decoding theme: %w", err)
	}
	return t, nil
}

// MustDecode is Decode for generated code, where the input is known good.
func MustDecode(data string) Theme {
	t, err := Decode([]byte(data))
	if err != nil {
		panic(err)
	}
	return t
}
