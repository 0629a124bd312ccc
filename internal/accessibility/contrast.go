package accessibility

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

type rgb struct {
	r, g, b uint8
}

func (c rgb) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.r, c.g, c.b)
}

var (
	black = rgb{0, 0, 0}
	white = rgb{255, 255, 255}
)

var namedColors = map[string]rgb{
	"black":   black,
	"white":   white,
	"red":     {255, 0, 0},
	"green":   {0, 128, 0},
	"blue":    {0, 0, 255},
	"gray":    {128, 128, 128},
	"grey":    {128, 128, 128},
	"silver":  {192, 192, 192},
	"yellow":  {255, 255, 0},
	"orange":  {255, 165, 0},
	"purple":  {128, 0, 128},
	"navy":    {0, 0, 128},
	"maroon":  {128, 0, 0},
	"lime":    {0, 255, 0},
	"aqua":    {0, 255, 255},
	"cyan":    {0, 255, 255},
	"fuchsia": {255, 0, 255},
	"magenta": {255, 0, 255},
	"teal":    {0, 128, 128},
	"olive":   {128, 128, 0},
}

// colorPair is the effective text styling of an element as declared by
// inline styles on it and its ancestors.
type colorPair struct {
	fg, bg rgb
	sizePx float64
	bold   bool
}

func (p colorPair) large() bool {
	return p.sizePx >= 24 || (p.bold && p.sizePx >= 18.66)
}

// resolveColors walks from n to the root collecting inline colors. It
// reports false when no ancestor declares a color or background, or when
// a declared value cannot be evaluated statically.
func resolveColors(n *html.Node) (colorPair, bool) {
	pair := colorPair{fg: black, bg: white, sizePx: 16}
	var haveFg, haveBg, haveSize, haveWeight bool

	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		style, ok := attr(cur, "style")
		if !ok {
			continue
		}
		decls := parseStyle(style)

		if v, ok := decls["color"]; ok && !haveFg {
			c, transparent, ok := parseColor(v)
			if !ok || transparent {
				return pair, false
			}
			pair.fg, haveFg = c, true
		}
		if !haveBg {
			v, ok := decls["background-color"]
			if !ok {
				v, ok = decls["background"]
			}
			if ok {
				c, transparent, ok := parseColor(v)
				switch {
				case !ok:
					return pair, false
				case !transparent:
					pair.bg, haveBg = c, true
				}
			}
		}
		if v, ok := decls["font-size"]; ok && !haveSize {
			if px, ok := parsePixels(v); ok {
				pair.sizePx, haveSize = px, true
			}
		}
		if v, ok := decls["font-weight"]; ok && !haveWeight {
			pair.bold, haveWeight = isBold(v), true
		}
	}

	return pair, haveFg || haveBg
}

func parseStyle(style string) map[string]string {
	decls := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important"))
		decls[strings.ToLower(strings.TrimSpace(name))] = strings.ToLower(value)
	}
	return decls
}

// parseColor understands hex, rgb(), rgba() and a set of named colors.
func parseColor(v string) (c rgb, transparent, ok bool) {
	v = strings.TrimSpace(v)
	if v == "transparent" {
		return c, true, true
	}
	if named, found := namedColors[v]; found {
		return named, false, true
	}

	if strings.HasPrefix(v, "#") {
		hex := v[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return c, false, false
		}
		value, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return c, false, false
		}
		return rgb{uint8(value >> 16), uint8(value >> 8), uint8(value)}, false, true
	}

	for _, prefix := range []string{"rgba(", "rgb("} {
		if !strings.HasPrefix(v, prefix) || !strings.HasSuffix(v, ")") {
			continue
		}
		fields := strings.FieldsFunc(v[len(prefix):len(v)-1], func(r rune) bool {
			return r == ',' || r == ' ' || r == '/'
		})
		if len(fields) < 3 || len(fields) > 4 {
			return c, false, false
		}
		var channels [3]uint8
		for i := 0; i < 3; i++ {
			n, err := strconv.ParseFloat(fields[i], 64)
			if err != nil || n < 0 || n > 255 {
				return c, false, false
			}
			channels[i] = uint8(math.Round(n))
		}
		if len(fields) == 4 {
			alpha, err := strconv.ParseFloat(fields[3], 64)
			switch {
			case err != nil:
				return c, false, false
			case alpha == 0:
				return c, true, true
			case alpha < 1:
				// Blending needs the painted backdrop.
				return c, false, false
			}
		}
		return rgb{channels[0], channels[1], channels[2]}, false, true
	}

	return c, false, false
}

func parsePixels(v string) (float64, bool) {
	scale := 1.0
	switch {
	case strings.HasSuffix(v, "px"):
		v = strings.TrimSuffix(v, "px")
	case strings.HasSuffix(v, "pt"):
		v, scale = strings.TrimSuffix(v, "pt"), 4.0/3.0
	default:
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n * scale, true
}

func isBold(v string) bool {
	switch v {
	case "bold", "bolder":
		return true
	}
	n, err := strconv.Atoi(v)
	return err == nil && n >= 700
}

func luminance(c rgb) float64 {
	channel := func(v uint8) float64 {
		s := float64(v) / 255
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*channel(c.r) + 0.7152*channel(c.g) + 0.0722*channel(c.b)
}

func contrastRatio(a, b rgb) float64 {
	l1, l2 := luminance(a), luminance(b)
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	return (l1 + 0.05) / (l2 + 0.05)
}
