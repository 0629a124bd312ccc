package accessibility

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Check messages shared by several rules.
const (
	msgAriaLabel      = "aria-label attribute does not exist or is empty"
	msgAriaLabelledby = "aria-labelledby attribute does not exist, references elements that do not exist or references elements that are empty"
	msgTitle          = "Element has no title attribute"
	msgPresentational = `Element's default semantics were not overridden with role="none" or role="presentation"`
	msgImplicitLabel  = "Form element does not have an implicit (wrapped) <label>"
	msgExplicitLabel  = "Form element does not have an explicit <label>"
	msgVisibleText    = "Element does not have text that is visible to screen readers"
)

func defaultRules() []rule {
	return []rule{
		{
			id:          "image-alt",
			impact:      ImpactCritical,
			description: "Ensures <img> elements have alternate text or a role of none or presentation",
			help:        "Images must have alternate text",
			tags:        []string{"cat.text-alternatives", "wcag2a", "wcag111", "section508"},
			check:       checkImageAlt,
		},
		{
			id:          "input-image-alt",
			impact:      ImpactCritical,
			description: `Ensures <input type="image"> elements have alternate text`,
			help:        "Image buttons must have alternate text",
			tags:        []string{"cat.text-alternatives", "wcag2a", "wcag111", "wcag412", "section508"},
			check:       checkInputImageAlt,
		},
		{
			id:          "label",
			impact:      ImpactCritical,
			description: "Ensures every form element has a label",
			help:        "Form elements must have labels",
			tags:        []string{"cat.forms", "wcag2a", "wcag412", "section508"},
			check:       checkLabel,
		},
		{
			id:          "select-name",
			impact:      ImpactCritical,
			description: "Ensures select element has an accessible name",
			help:        "Select element must have an accessible name",
			tags:        []string{"cat.forms", "wcag2a", "wcag412", "section508"},
			check:       checkSelectName,
		},
		{
			id:          "button-name",
			impact:      ImpactCritical,
			description: "Ensures buttons have discernible text",
			help:        "Buttons must have discernible text",
			tags:        []string{"cat.name-role-value", "wcag2a", "wcag412", "section508"},
			check:       checkButtonName,
		},
		{
			id:          "link-name",
			impact:      ImpactSerious,
			description: "Ensures links have discernible text",
			help:        "Links must have discernible text",
			tags:        []string{"cat.name-role-value", "wcag2a", "wcag244", "wcag412", "section508"},
			check:       checkLinkName,
		},
		{
			id:          "html-has-lang",
			impact:      ImpactSerious,
			description: "Ensures every HTML document has a lang attribute",
			help:        "<html> element must have a lang attribute",
			tags:        []string{"cat.language", "wcag2a", "wcag311"},
			check:       checkHTMLHasLang,
		},
		{
			id:          "document-title",
			impact:      ImpactSerious,
			description: "Ensures each HTML document contains a non-empty <title> element",
			help:        "Documents must have <title> element to aid in navigation",
			tags:        []string{"cat.text-alternatives", "wcag2a", "wcag242"},
			check:       checkDocumentTitle,
		},
		{
			id:          "duplicate-id",
			impact:      ImpactMinor,
			description: "Ensures every id attribute value is unique",
			help:        "id attribute value must be unique",
			tags:        []string{"cat.parsing", "wcag2a", "wcag411"},
			check:       checkDuplicateID,
		},
		{
			id:          "heading-order",
			impact:      ImpactModerate,
			description: "Ensures the order of headings is semantically correct",
			help:        "Heading levels should only increase by one",
			tags:        []string{"cat.semantics", "best-practice"},
			check:       checkHeadingOrder,
		},
		{
			id:          "empty-heading",
			impact:      ImpactMinor,
			description: "Ensures headings have discernible text",
			help:        "Headings should not be empty",
			tags:        []string{"cat.name-role-value", "best-practice"},
			check:       checkEmptyHeading,
		},
		{
			id:          "frame-title",
			impact:      ImpactSerious,
			description: "Ensures <iframe> and <frame> elements have an accessible name",
			help:        "Frames must have an accessible name",
			tags:        []string{"cat.text-alternatives", "wcag2a", "wcag412", "section508"},
			check:       checkFrameTitle,
		},
		{
			id:          "aria-valid-attr",
			impact:      ImpactCritical,
			description: "Ensures attributes that begin with aria- are valid ARIA attributes",
			help:        "ARIA attributes must conform to valid names",
			tags:        []string{"cat.aria", "wcag2a", "wcag412"},
			check:       checkAriaValidAttr,
		},
		{
			id:          "color-contrast",
			impact:      ImpactSerious,
			description: "Ensures the contrast between foreground and background colors meets WCAG 2 AA minimum contrast ratio thresholds",
			help:        "Elements must meet minimum color contrast ratio thresholds",
			tags:        []string{"cat.color", "wcag2aa", "wcag143"},
			visual:      true,
			check:       checkColorContrast,
		},
	}
}

func checkImageAlt(a *audit) (int, []finding) {
	var findings []finding
	nodes := a.tree.Find("img")
	nodes.Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("alt"); ok || a.named(s) || presentational(s) {
			return
		}
		findings = append(findings, finding{node: s.Get(0), checks: []RawCheck{
			{ID: "has-alt", Message: "Element does not have an alt attribute"},
			{ID: "aria-label", Message: msgAriaLabel},
			{ID: "aria-labelledby", Message: msgAriaLabelledby},
			{ID: "non-empty-title", Message: msgTitle},
			{ID: "presentational-role", Message: msgPresentational},
		}})
	})
	return nodes.Length(), findings
}

func checkInputImageAlt(a *audit) (int, []finding) {
	var findings []finding
	applicable := 0
	a.tree.Find("input").Each(func(_ int, s *goquery.Selection) {
		if !strings.EqualFold(attrValue(s, "type"), "image") {
			return
		}
		applicable++
		if attrValue(s, "alt") != "" || a.named(s) {
			return
		}
		findings = append(findings, finding{node: s.Get(0), checks: []RawCheck{
			{ID: "non-empty-alt", Message: "Element has no alt attribute or the alt attribute is empty"},
			{ID: "aria-label", Message: msgAriaLabel},
			{ID: "aria-labelledby", Message: msgAriaLabelledby},
			{ID: "non-empty-title", Message: msgTitle},
		}})
	})
	return applicable, findings
}

// unlabelledInputTypes are input types the label rule does not apply to.
var unlabelledInputTypes = []string{"hidden", "image", "submit", "reset", "button"}

func checkLabel(a *audit) (int, []finding) {
	var findings []finding
	applicable := 0
	a.tree.Find("input, textarea").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "input" &&
			slices.Contains(unlabelledInputTypes, strings.ToLower(attrValue(s, "type"))) {
			return
		}
		applicable++
		if a.labelled(s) || attrValue(s, "placeholder") != "" {
			return
		}
		findings = append(findings, finding{node: s.Get(0), checks: []RawCheck{
			{ID: "implicit-label", Message: msgImplicitLabel},
			{ID: "explicit-label", Message: msgExplicitLabel},
			{ID: "aria-label", Message: msgAriaLabel},
			{ID: "aria-labelledby", Message: msgAriaLabelledby},
			{ID: "non-empty-title", Message: msgTitle},
			{ID: "non-empty-placeholder", Message: "Element has no placeholder attribute"},
			{ID: "presentational-role", Message: msgPresentational},
		}})
	})
	return applicable, findings
}

func checkSelectName(a *audit) (int, []finding) {
	var findings []finding
	nodes := a.tree.Find("select")
	nodes.Each(func(_ int, s *goquery.Selection) {
		if a.labelled(s) {
			return
		}
		findings = append(findings, finding{node: s.Get(0), checks: []RawCheck{
			{ID: "implicit-label", Message: msgImplicitLabel},
			{ID: "explicit-label", Message: msgExplicitLabel},
			{ID: "aria-label", Message: msgAriaLabel},
			{ID: "aria-labelledby", Message: msgAriaLabelledby},
			{ID: "non-empty-title", Message: msgTitle},
			{ID: "presentational-role", Message: msgPresentational},
		}})
	})
	return nodes.Length(), findings
}

func checkButtonName(a *audit) (int, []finding) {
	var findings []finding
	nodes := a.tree.Find("button")
	nodes.Each(func(_ int, s *goquery.Selection) {
		if accessibleText(s.Get(0)) != "" || a.named(s) || presentational(s) {
			return
		}
		findings = append(findings, finding{node: s.Get(0), checks: []RawCheck{
			{ID: "button-has-visible-text", Message: "Element does not have inner text that is visible to screen readers"},
			{ID: "aria-label", Message: msgAriaLabel},
			{ID: "aria-labelledby", Message: msgAriaLabelledby},
			{ID: "non-empty-title", Message: msgTitle},
			{ID: "presentational-role", Message: msgPresentational},
		}})
	})
	return nodes.Length(), findings
}

func checkLinkName(a *audit) (int, []finding) {
	var findings []finding
	applicable := 0
	a.tree.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if attrValue(s, "aria-hidden") == "true" {
			return
		}
		applicable++
		if accessibleText(s.Get(0)) != "" || a.named(s) {
			return
		}
		findings = append(findings, finding{node: s.Get(0), checks: []RawCheck{
			{ID: "has-visible-text", Message: msgVisibleText},
			{ID: "aria-label", Message: msgAriaLabel},
			{ID: "aria-labelledby", Message: msgAriaLabelledby},
			{ID: "non-empty-title", Message: msgTitle},
		}})
	})
	return applicable, findings
}

func checkHTMLHasLang(a *audit) (int, []finding) {
	root := a.tree.Find("html").First()
	if root.Length() == 0 {
		return 0, nil
	}
	if attrValue(root, "lang") != "" {
		return 1, nil
	}
	return 1, []finding{{node: root.Get(0), checks: []RawCheck{
		{ID: "has-lang", Message: "The <html> element does not have a lang attribute"},
	}}}
}

func checkDocumentTitle(a *audit) (int, []finding) {
	root := a.tree.Find("html").First()
	if root.Length() == 0 {
		return 0, nil
	}
	if strings.TrimSpace(a.tree.Find("head > title").First().Text()) != "" {
		return 1, nil
	}
	return 1, []finding{{node: root.Get(0), checks: []RawCheck{
		{ID: "doc-has-title", Message: "Document does not have a non-empty <title> element"},
	}}}
}

func checkDuplicateID(a *audit) (int, []finding) {
	var findings []finding
	for _, id := range a.order {
		nodes := a.ids[id]
		if len(nodes) < 2 {
			continue
		}
		findings = append(findings, finding{node: nodes[0], checks: []RawCheck{{
			ID:      "duplicate-id",
			Message: "Document has multiple elements with the same id attribute: " + id,
			Data:    id,
		}}})
	}
	return len(a.order), findings
}

func checkHeadingOrder(a *audit) (int, []finding) {
	var findings []finding
	headings := a.headings()
	previous := 0
	headings.Each(func(_ int, s *goquery.Selection) {
		level := headingLevel(s)
		if previous > 0 && level > previous+1 {
			findings = append(findings, finding{node: s.Get(0), checks: []RawCheck{
				{ID: "heading-order", Message: "Heading order invalid", Data: map[string]int{"headingOrder": level}},
			}})
		}
		previous = level
	})
	return headings.Length(), findings
}

func checkEmptyHeading(a *audit) (int, []finding) {
	var findings []finding
	applicable := 0
	a.headings().Each(func(_ int, s *goquery.Selection) {
		if attrValue(s, "aria-hidden") == "true" {
			return
		}
		applicable++
		if accessibleText(s.Get(0)) != "" || a.named(s) {
			return
		}
		findings = append(findings, finding{node: s.Get(0), checks: []RawCheck{
			{ID: "has-visible-text", Message: msgVisibleText},
			{ID: "aria-label", Message: msgAriaLabel},
			{ID: "aria-labelledby", Message: msgAriaLabelledby},
			{ID: "non-empty-title", Message: msgTitle},
		}})
	})
	return applicable, findings
}

func checkFrameTitle(a *audit) (int, []finding) {
	var findings []finding
	nodes := a.tree.Find("iframe, frame")
	nodes.Each(func(_ int, s *goquery.Selection) {
		if a.named(s) || presentational(s) {
			return
		}
		findings = append(findings, finding{node: s.Get(0), checks: []RawCheck{
			{ID: "non-empty-title", Message: msgTitle},
			{ID: "aria-label", Message: msgAriaLabel},
			{ID: "aria-labelledby", Message: msgAriaLabelledby},
			{ID: "presentational-role", Message: msgPresentational},
		}})
	})
	return nodes.Length(), findings
}

// ariaAttributes are the attribute names defined by WAI-ARIA 1.2.
var ariaAttributes = map[string]bool{
	"aria-activedescendant": true, "aria-atomic": true, "aria-autocomplete": true,
	"aria-braillelabel": true, "aria-brailleroledescription": true, "aria-busy": true,
	"aria-checked": true, "aria-colcount": true, "aria-colindex": true,
	"aria-colindextext": true, "aria-colspan": true, "aria-controls": true,
	"aria-current": true, "aria-describedby": true, "aria-description": true,
	"aria-details": true, "aria-disabled": true, "aria-dropeffect": true,
	"aria-errormessage": true, "aria-expanded": true, "aria-flowto": true,
	"aria-grabbed": true, "aria-haspopup": true, "aria-hidden": true,
	"aria-invalid": true, "aria-keyshortcuts": true, "aria-label": true,
	"aria-labelledby": true, "aria-level": true, "aria-live": true,
	"aria-modal": true, "aria-multiline": true, "aria-multiselectable": true,
	"aria-orientation": true, "aria-owns": true, "aria-placeholder": true,
	"aria-posinset": true, "aria-pressed": true, "aria-readonly": true,
	"aria-relevant": true, "aria-required": true, "aria-roledescription": true,
	"aria-rowcount": true, "aria-rowindex": true, "aria-rowindextext": true,
	"aria-rowspan": true, "aria-selected": true, "aria-setsize": true,
	"aria-sort": true, "aria-valuemax": true, "aria-valuemin": true,
	"aria-valuenow": true, "aria-valuetext": true,
}

func checkAriaValidAttr(a *audit) (int, []finding) {
	var findings []finding
	applicable := 0
	a.tree.Find("*").Each(func(_ int, s *goquery.Selection) {
		var invalid []string
		hasAria := false
		for _, at := range s.Get(0).Attr {
			if !strings.HasPrefix(at.Key, "aria-") {
				continue
			}
			hasAria = true
			if !ariaAttributes[at.Key] {
				invalid = append(invalid, at.Key)
			}
		}
		if !hasAria {
			return
		}
		applicable++
		if len(invalid) == 0 {
			return
		}
		findings = append(findings, finding{node: s.Get(0), checks: []RawCheck{{
			ID:      "aria-valid-attr",
			Message: "Invalid ARIA attribute name: " + strings.Join(invalid, ", "),
			Data:    invalid,
		}}})
	})
	return applicable, findings
}

func checkColorContrast(a *audit) (int, []finding) {
	var findings []finding
	applicable := 0
	a.tree.Find("body *").Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		if !hasOwnText(n) {
			return
		}
		pair, ok := resolveColors(n)
		if !ok {
			return
		}
		applicable++

		ratio := contrastRatio(pair.fg, pair.bg)
		expected := 4.5
		if pair.large() {
			expected = 3
		}
		if ratio >= expected {
			return
		}

		weight := "normal"
		if pair.bold {
			weight = "bold"
		}
		findings = append(findings, finding{node: n, checks: []RawCheck{{
			ID: "color-contrast",
			Message: fmt.Sprintf(
				"Element has insufficient color contrast of %.2f (foreground color: %s, background color: %s, font size: %.1fpt (%gpx), font weight: %s). Expected contrast ratio of %g:1",
				ratio, pair.fg, pair.bg, pair.sizePx*0.75, pair.sizePx, weight, expected),
			Data: map[string]any{
				"fgColor":               pair.fg.String(),
				"bgColor":               pair.bg.String(),
				"contrastRatio":         ratio,
				"expectedContrastRatio": fmt.Sprintf("%g:1", expected),
			},
		}}})
	})
	return applicable, findings
}

// named reports whether s carries a non-empty name through aria-label,
// aria-labelledby or title.
func (a *audit) named(s *goquery.Selection) bool {
	return attrValue(s, "aria-label") != "" || a.labelledBy(s) || attrValue(s, "title") != ""
}

func (a *audit) labelledBy(s *goquery.Selection) bool {
	for _, id := range strings.Fields(attrValue(s, "aria-labelledby")) {
		if nodes := a.ids[id]; len(nodes) > 0 && accessibleText(nodes[0]) != "" {
			return true
		}
	}
	return false
}

// labelled reports whether a form control has an accessible name.
func (a *audit) labelled(s *goquery.Selection) bool {
	if a.named(s) || presentational(s) {
		return true
	}
	if id := attrValue(s, "id"); id != "" {
		if label, ok := a.labels[id]; ok && accessibleText(label) != "" {
			return true
		}
	}
	for p := s.Get(0).Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Label {
			return accessibleText(p) != ""
		}
	}
	return false
}

func (a *audit) headings() *goquery.Selection {
	return a.tree.Find(`h1, h2, h3, h4, h5, h6, [role="heading"]`)
}

func headingLevel(s *goquery.Selection) int {
	if level, err := strconv.Atoi(attrValue(s, "aria-level")); err == nil && level > 0 {
		return level
	}
	name := goquery.NodeName(s)
	if len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6' {
		return int(name[1] - '0')
	}
	return 2
}

func presentational(s *goquery.Selection) bool {
	role := strings.ToLower(attrValue(s, "role"))
	return role == "none" || role == "presentation"
}

func attrValue(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

func attr(n *html.Node, key string) (string, bool) {
	for _, at := range n.Attr {
		if at.Key == key {
			return at.Val, true
		}
	}
	return "", false
}

// accessibleText returns the text a screen reader would announce for the
// content of n, with whitespace collapsed.
func accessibleText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Template:
				return
			}
			if v, _ := attr(n, "aria-hidden"); v == "true" {
				return
			}
			if label, _ := attr(n, "aria-label"); strings.TrimSpace(label) != "" {
				sb.WriteString(label)
				sb.WriteByte(' ')
				return
			}
			if n.DataAtom == atom.Img || n.DataAtom == atom.Input {
				if alt, _ := attr(n, "alt"); alt != "" {
					sb.WriteString(alt)
					sb.WriteByte(' ')
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func hasOwnText(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Template, atom.Title:
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
	}
	return false
}
