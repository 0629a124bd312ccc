package accessibility

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/conneroisu/templaudit/internal/dom"
	"github.com/conneroisu/templaudit/internal/logging"
	"github.com/conneroisu/templaudit/internal/version"
)

// NativeEngineName identifies results produced by the NativeEngine.
const NativeEngineName = "templaudit-native"

const (
	helpURLBase = "https://dequeuniversity.com/rules/axe/4.10/"
	maxSnippet  = 300
)

// NativeEngine evaluates a fixed rule set against the parsed document
// tree. It needs no browser; rules that depend on layout only use what
// inline styles declare.
type NativeEngine struct {
	rules  []rule
	logger logging.Logger
}

// NewNativeEngine creates an engine with the default rule set.
func NewNativeEngine(logger logging.Logger) *NativeEngine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &NativeEngine{
		rules:  defaultRules(),
		logger: logger.WithComponent("native_engine"),
	}
}

// Name implements Engine.
func (e *NativeEngine) Name() string { return NativeEngineName }

// Inject implements Engine. The rules are compiled in, so injecting only
// checks the document is still usable.
func (e *NativeEngine) Inject(ctx context.Context, doc dom.Document) error {
	if doc.Tree() == nil {
		return fmt.Errorf("document has been released")
	}
	return ctx.Err()
}

// Rules returns the rule identifiers in evaluation order.
func (e *NativeEngine) Rules() []string {
	ids := make([]string, len(e.rules))
	for i, r := range e.rules {
		ids[i] = r.id
	}
	return ids
}

// Run implements Engine.
func (e *NativeEngine) Run(ctx context.Context, doc dom.Document) (*RawResults, error) {
	tree := doc.Tree()
	if tree == nil {
		return nil, fmt.Errorf("document has been released")
	}

	a := newAudit(tree, doc.Visual())
	results := &RawResults{
		TestEngine:   TestEngine{Name: NativeEngineName, Version: version.GetShortVersion()},
		TestRunner:   TestRunner{Name: "templaudit"},
		URL:          "about:blank",
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		Violations:   []RawRule{},
		Passes:       []RawRule{},
		Incomplete:   []RawRule{},
		Inapplicable: []RawRule{},
	}

	for _, r := range e.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome := r.result()
		if r.visual && !a.visual {
			results.Incomplete = append(results.Incomplete, outcome)
			continue
		}

		applicable, findings := r.check(a)
		switch {
		case applicable == 0:
			results.Inapplicable = append(results.Inapplicable, outcome)
		case len(findings) == 0:
			results.Passes = append(results.Passes, outcome)
		default:
			outcome.Impact = impact(r.impact)
			for _, f := range findings {
				outcome.Nodes = append(outcome.Nodes, a.node(r, f))
			}
			results.Violations = append(results.Violations, outcome)
		}
	}

	e.logger.Debug(ctx, "Native audit completed",
		"violations", len(results.Violations),
		"passes", len(results.Passes),
		"incomplete", len(results.Incomplete))

	return results, nil
}

// rule is one check of the native rule set.
type rule struct {
	id          string
	impact      string
	description string
	help        string
	tags        []string
	// visual rules need a visual rendering context and are reported as
	// incomplete without one.
	visual bool
	// check returns how many nodes the rule applied to and the failures.
	check func(a *audit) (int, []finding)
}

func (r rule) result() RawRule {
	return RawRule{
		ID:          r.id,
		Tags:        r.tags,
		Description: r.description,
		Help:        r.help,
		HelpURL:     helpURLBase + r.id + "?application=templaudit",
		Nodes:       []RawNode{},
	}
}

// finding is a failing node and the checks it failed.
type finding struct {
	node   *html.Node
	checks []RawCheck
}

// audit holds per-run lookups over one document.
type audit struct {
	tree   *goquery.Document
	visual bool
	ids    map[string][]*html.Node
	order  []string
	labels map[string]*html.Node
}

func newAudit(tree *goquery.Document, visual bool) *audit {
	a := &audit{
		tree:   tree,
		visual: visual,
		ids:    make(map[string][]*html.Node),
		labels: make(map[string]*html.Node),
	}
	tree.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		id := attrValue(s, "id")
		if id == "" {
			return
		}
		if _, seen := a.ids[id]; !seen {
			a.order = append(a.order, id)
		}
		a.ids[id] = append(a.ids[id], s.Get(0))
	})
	tree.Find("label[for]").Each(func(_ int, s *goquery.Selection) {
		id := attrValue(s, "for")
		if _, seen := a.labels[id]; id != "" && !seen {
			a.labels[id] = s.Get(0)
		}
	})
	return a
}

func (a *audit) node(r rule, f finding) RawNode {
	for i := range f.checks {
		f.checks[i].Impact = r.impact
	}
	messages := make([]string, len(f.checks))
	for i, c := range f.checks {
		messages[i] = c.Message
	}
	return RawNode{
		HTML:           snippet(f.node),
		Target:         []any{a.selector(f.node)},
		Impact:         impact(r.impact),
		Any:            f.checks,
		All:            []RawCheck{},
		None:           []RawCheck{},
		FailureSummary: "Fix any of the following:\n  " + strings.Join(messages, "\n  "),
	}
}

var cssIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// selector builds a CSS selector that identifies n within the document.
func (a *audit) selector(n *html.Node) string {
	if id, ok := attr(n, "id"); ok && len(a.ids[id]) == 1 && cssIdent.MatchString(id) {
		return "#" + id
	}

	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		part := cur.Data
		// head and body are unique under html, so they need no position.
		if index, total := position(cur); total > 1 && !isRootChild(cur) {
			part += fmt.Sprintf(":nth-child(%d)", index)
		}
		parts = append(parts, part)
		if cur.Parent == nil || cur.Parent.Type != html.ElementNode || cur.Parent.Data == "html" {
			break
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func isRootChild(n *html.Node) bool {
	return n.Parent != nil && n.Parent.Type == html.ElementNode && n.Parent.Data == "html"
}

func position(n *html.Node) (index, total int) {
	if n.Parent == nil {
		return 1, 1
	}
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		total++
		if c == n {
			index = total
		}
	}
	return index, total
}

// snippet renders n the way axe reports node html: the full element when
// short, otherwise only its start tag.
func snippet(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err == nil && buf.Len() <= maxSnippet {
		return openVoid(n, buf.String())
	}

	buf.Reset()
	shallow := &html.Node{
		Type:      html.ElementNode,
		Data:      n.Data,
		DataAtom:  n.DataAtom,
		Namespace: n.Namespace,
		Attr:      n.Attr,
	}
	if err := html.Render(&buf, shallow); err != nil {
		return "<" + n.Data + ">"
	}
	return strings.TrimSuffix(openVoid(shallow, buf.String()), "</"+n.Data+">")
}

// openVoid rewrites the self-closing form html.Render uses for void
// elements into plain HTML.
func openVoid(n *html.Node, s string) string {
	if n.FirstChild == nil && strings.HasSuffix(s, "/>") {
		return s[:len(s)-2] + ">"
	}
	return s
}
