package accessibility

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/templaudit/internal/dom"
)

func runNative(t *testing.T, body string, visual bool) *RawResults {
	t.Helper()
	doc, err := dom.NewStaticBuilder(dom.Options{Visual: visual}).Build(context.Background(), body)
	require.NoError(t, err)
	defer doc.Release()

	engine := NewNativeEngine(nil)
	require.NoError(t, engine.Inject(context.Background(), doc))
	results, err := engine.Run(context.Background(), doc)
	require.NoError(t, err)
	return results
}

func violationIDs(results *RawResults) []string {
	ids := make([]string, 0, len(results.Violations))
	for _, v := range results.Violations {
		ids = append(ids, v.ID)
	}
	return ids
}

func TestNativeImageWithoutAlt(t *testing.T) {
	results := runNative(t, `<img src="x.jpg">`, true)

	require.Len(t, results.Violations, 1)
	violation := results.Violations[0]
	assert.Equal(t, "image-alt", violation.ID)
	require.NotNil(t, violation.Impact)
	assert.Equal(t, ImpactCritical, *violation.Impact)
	assert.Equal(t, "Images must have alternate text", violation.Help)
	assert.Contains(t, violation.HelpURL, "image-alt")

	require.Len(t, violation.Nodes, 1)
	node := violation.Nodes[0]
	assert.Equal(t, `<img src="x.jpg">`, node.HTML)
	assert.Equal(t, []any{"body > img"}, node.Target)
	assert.Contains(t, node.FailureSummary, "Fix any of the following:")
	assert.Contains(t, node.FailureSummary, "Element does not have an alt attribute")

	assert.Equal(t, NativeEngineName, results.TestEngine.Name)
	assert.NotEmpty(t, results.Timestamp)
}

func TestNativeTargetsUseSiblingPosition(t *testing.T) {
	body := `<p>intro</p><img src="a.jpg"><div><span>x</span><img src="b.jpg"></div>`
	results := runNative(t, body, true)

	require.Len(t, results.Violations, 1)
	targets := make([]any, 0, 2)
	for _, node := range results.Violations[0].Nodes {
		targets = append(targets, node.Target...)
	}
	assert.Equal(t, []any{"body > img:nth-child(2)", "body > div:nth-child(3) > img:nth-child(2)"}, targets)
}

func TestNativeAccessibleMarkupPasses(t *testing.T) {
	body := `
<main>
  <h1>Contact</h1>
  <form>
    <label for="email">Email</label>
    <input id="email" type="email" name="email">
    <label>Message <textarea name="message"></textarea></label>
    <label for="topic">Topic</label>
    <select id="topic"><option>Sales</option></select>
    <input type="hidden" name="token" value="abc">
    <button type="submit">Send</button>
  </form>
  <h2>Elsewhere</h2>
  <a href="/about">About us</a>
  <a href="/"><img src="logo.png" alt="Home"></a>
  <img src="divider.png" alt="">
  <p style="color: #333333; background-color: #ffffff">Readable</p>
  <iframe src="/map" title="Office location"></iframe>
  <div aria-label="Status" aria-live="polite">Ready</div>
</main>`

	results := runNative(t, body, true)
	assert.Empty(t, results.Violations)
	assert.NotEmpty(t, results.Passes)
}

func TestNativeRules(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected []string
	}{
		{"input image", `<input type="image" src="go.png">`, []string{"input-image-alt"}},
		{"unlabelled input", `<input type="text" name="q">`, []string{"label"}},
		{"placeholder labels input", `<input type="text" placeholder="Search">`, nil},
		{"empty wrapping label", `<label><input type="checkbox"></label>`, []string{"label"}},
		{"unlabelled select", `<select><option>a</option></select>`, []string{"select-name"}},
		{"empty button", `<button></button>`, []string{"button-name"}},
		{"icon button", `<button><img src="x.svg" alt="Close"></button>`, nil},
		{"aria labelled button", `<span id="lbl">Close</span><button aria-labelledby="lbl"></button>`, nil},
		{"dangling labelledby", `<button aria-labelledby="missing"></button>`, []string{"button-name"}},
		{"empty link", `<a href="/home"></a>`, []string{"link-name"}},
		{"anchor without href", `<a></a>`, nil},
		{"duplicate id", `<p id="x">a</p><p id="x">b</p>`, []string{"duplicate-id"}},
		{"skipped heading", `<h1>a</h1><h3>b</h3>`, []string{"heading-order"}},
		{"empty heading", `<h2></h2>`, []string{"empty-heading"}},
		{"untitled frame", `<iframe src="/x"></iframe>`, []string{"frame-title"}},
		{"invalid aria", `<div aria-labeledby="x">a</div>`, []string{"aria-valid-attr"}},
		{"low contrast", `<p style="color:#aaaaaa">faint</p>`, []string{"color-contrast"}},
		{"large text contrast", `<p style="color:#808080; font-size:24px">big</p>`, nil},
		{"unstyled text", `<p>plain</p>`, nil},
		{
			"several rules keep rule order",
			`<button></button><img src="a.png"><input type="text">`,
			[]string{"image-alt", "label", "button-name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := runNative(t, tt.body, true)
			if tt.expected == nil {
				assert.Empty(t, violationIDs(results))
				return
			}
			assert.Equal(t, tt.expected, violationIDs(results))
		})
	}
}

func TestNativeDuplicateIDReportsFirstOccurrence(t *testing.T) {
	results := runNative(t, `<p id="x">a</p><div><span id="x">b</span></div>`, true)
	require.Len(t, results.Violations, 1)
	require.Len(t, results.Violations[0].Nodes, 1)
	assert.Equal(t, `<p id="x">a</p>`, results.Violations[0].Nodes[0].HTML)
}

func TestNativeContrastNeedsVisualContext(t *testing.T) {
	results := runNative(t, `<p style="color:#aaaaaa">faint</p>`, false)
	assert.Empty(t, results.Violations)

	var incomplete []string
	for _, r := range results.Incomplete {
		incomplete = append(incomplete, r.ID)
	}
	assert.Equal(t, []string{"color-contrast"}, incomplete)
}

func TestNativeSnippetTruncatesLongElements(t *testing.T) {
	long := ""
	for i := 0; i < 40; i++ {
		long += "<span>filler text</span>"
	}
	results := runNative(t, `<button class="wide">`+long+`</button><a href="/x">`+long+`</a><img src="y.png">`, true)

	require.Equal(t, []string{"image-alt"}, violationIDs(results))

	doc, err := dom.NewStaticBuilder(dom.DefaultOptions()).Build(context.Background(), `<div class="wide">`+long+`</div>`)
	require.NoError(t, err)
	defer doc.Release()
	assert.Equal(t, `<div class="wide">`, snippet(doc.Tree().Find("div").Get(0)))
}

func TestNativeRuleOrder(t *testing.T) {
	assert.Equal(t, []string{
		"image-alt", "input-image-alt", "label", "select-name", "button-name",
		"link-name", "html-has-lang", "document-title", "duplicate-id",
		"heading-order", "empty-heading", "frame-title", "aria-valid-attr",
		"color-contrast",
	}, NewNativeEngine(nil).Rules())
}

func TestNativeReleasedDocument(t *testing.T) {
	doc, err := dom.NewStaticBuilder(dom.DefaultOptions()).Build(context.Background(), "<p>x</p>")
	require.NoError(t, err)
	require.NoError(t, doc.Release())

	engine := NewNativeEngine(nil)
	assert.Error(t, engine.Inject(context.Background(), doc))
	_, err = engine.Run(context.Background(), doc)
	assert.Error(t, err)
}

func TestContrastRatio(t *testing.T) {
	assert.InDelta(t, 21.0, contrastRatio(black, white), 0.01)
	assert.InDelta(t, 1.0, contrastRatio(white, white), 0.01)

	c, transparent, ok := parseColor("#abc")
	require.True(t, ok)
	assert.False(t, transparent)
	assert.Equal(t, "#aabbcc", c.String())

	c, _, ok = parseColor("rgb(255, 0, 10)")
	require.True(t, ok)
	assert.Equal(t, "#ff000a", c.String())

	_, transparent, ok = parseColor("rgba(0, 0, 0, 0)")
	assert.True(t, ok)
	assert.True(t, transparent)

	_, _, ok = parseColor("rgba(0, 0, 0, 0.5)")
	assert.False(t, ok)

	_, _, ok = parseColor("var(--ink)")
	assert.False(t, ok)
}

func TestAxeEngineNeedsBrowserDocument(t *testing.T) {
	doc, err := dom.NewStaticBuilder(dom.DefaultOptions()).Build(context.Background(), "<p>x</p>")
	require.NoError(t, err)
	defer doc.Release()

	engine := NewAxeEngine("axe.min.js")
	assert.ErrorContains(t, engine.Inject(context.Background(), doc), "browser document")
	_, err = engine.Run(context.Background(), doc)
	assert.Error(t, err)
}

func TestLocateAxeScript(t *testing.T) {
	root := t.TempDir()
	_, err := LocateAxeScript(root, "")
	assert.ErrorContains(t, err, "not found")

	_, err = LocateAxeScript(root, "node_modules")
	assert.Error(t, err)
}
