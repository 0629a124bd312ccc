package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/templaudit/internal/accessibility"
	"github.com/conneroisu/templaudit/internal/dom"
	"github.com/conneroisu/templaudit/internal/errors"
	"github.com/conneroisu/templaudit/internal/loader"
	"github.com/conneroisu/templaudit/internal/registry"
	"github.com/conneroisu/templaudit/internal/report"
	"github.com/conneroisu/templaudit/internal/testutils"
)

var (
	goMod        = testutils.GoMod("example.com/site")
	goModWithChi = testutils.GoMod("example.com/site", "github.com/go-chi/chi/v5 v5.2.4")
)

const componentsSource = `package ui

templ Image() {
	<img src="x.jpg"/>
}

templ ContactForm() {
	<form></form>
}

templ Card(a string, b string, c *string) {
	<section>{ a }{ b }</section>
}

templ Broken() {
	<p></p>
}

templ NavLink() {
	<a href="/">Home</a>
}
`

// markupFor is what each test component renders in process.
var markupFor = map[string]templ.Component{
	"Image": raw(`<img src="x.jpg">`),
	"ContactForm": raw(`<form>
  <label for="name">Name</label><input id="name" type="text">
  <label for="email">Email</label><input id="email" type="email">
  <button type="submit">Send</button>
</form>
<a href="/privacy">Privacy policy</a>
<img src="logo.png" alt="Acme logo">`),
	"Card": raw(`<section><h2>Title</h2><p>Body</p></section>`),
	"Broken": templ.ComponentFunc(func(context.Context, io.Writer) error {
		return fmt.Errorf("cannot read property of undefined")
	}),
	"NavLink": templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if chi.RouteContext(ctx) == nil {
			return fmt.Errorf("NavLink must be rendered inside a router")
		}
		_, err := io.WriteString(w, `<a href="/">Home</a>`)
		return err
	}),
}

func raw(html string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, html)
		return err
	})
}

// inProcess builds elements from markupFor instead of running the harness.
var inProcess = loader.FactoryProviderFunc(func(_ context.Context, module *loader.Module) (loader.Factory, error) {
	component, ok := markupFor[module.Component.Name]
	if !ok {
		return nil, fmt.Errorf("no test component %s", module.Component.Name)
	}
	return func(context.Context, map[string]any) (templ.Component, error) {
		return component, nil
	}, nil
})

// countingDocument wraps a document and counts releases.
type countingDocument struct {
	dom.Document
	releases atomic.Int32
}

func (d *countingDocument) Release() error {
	d.releases.Add(1)
	return d.Document.Release()
}

// countingBuilder records every document it builds.
type countingBuilder struct {
	inner dom.Builder
	mu    sync.Mutex
	docs  []*countingDocument
}

func (b *countingBuilder) Build(ctx context.Context, markup string) (dom.Document, error) {
	doc, err := b.inner.Build(ctx, markup)
	if err != nil {
		return nil, err
	}
	counted := &countingDocument{Document: doc}
	b.mu.Lock()
	b.docs = append(b.docs, counted)
	b.mu.Unlock()
	return counted, nil
}

type blockingEngine struct {
	release chan struct{}
}

func (e *blockingEngine) Name() string { return "blocking" }

func (e *blockingEngine) Inject(context.Context, dom.Document) error { return nil }

func (e *blockingEngine) Run(context.Context, dom.Document) (*accessibility.RawResults, error) {
	<-e.release
	return &accessibility.RawResults{}, nil
}

type fixture struct {
	root    string
	builder *countingBuilder
	checker *Checker
}

func newFixture(t *testing.T, mod string, opts Options) *fixture {
	t.Helper()
	root := testutils.CreateTempProject(t, map[string]string{
		"go.mod":              mod,
		"ui/components.templ": componentsSource,
	})

	reg := registry.NewModuleRegistry(16)
	builder := &countingBuilder{inner: dom.NewStaticBuilder(dom.DefaultOptions())}
	opts.Loader = loader.New(root, reg, inProcess, nil)
	opts.Registry = reg
	opts.Builder = builder

	return &fixture{root: root, builder: builder, checker: New(opts)}
}

func (f *fixture) assertReleasedOnce(t *testing.T) {
	t.Helper()
	for i, doc := range f.builder.docs {
		assert.Equal(t, int32(1), doc.releases.Load(), "document %d", i)
	}
}

func violationIDs(result *report.CheckResult) []string {
	ids := make([]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		ids = append(ids, v.ID)
	}
	return ids
}

func TestCleanComponentPasses(t *testing.T) {
	f := newFixture(t, goMod, Options{})

	resp := f.checker.Handle(context.Background(), Request{Path: "ui/components.templ", Component: "ContactForm"})

	require.False(t, resp.IsError, "%+v", resp.Error)
	require.Nil(t, resp.Error)
	assert.Equal(t, 0, resp.Result.TotalViolations)
	assert.Empty(t, resp.Result.Violations)
	assert.Equal(t, report.PassSummary, resp.Result.Summary)
	assert.Equal(t, filepath.Join(f.root, "ui", "components.templ"), resp.Result.File)
	require.Len(t, f.builder.docs, 1)
	f.assertReleasedOnce(t)
}

func TestMissingAltScenario(t *testing.T) {
	f := newFixture(t, goMod, Options{})

	result, err := f.checker.Check(context.Background(), Request{Path: "ui/components.templ"})
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalViolations)
	require.Len(t, result.Violations, result.TotalViolations)
	violation := result.Violations[0]
	assert.Equal(t, "image-alt", violation.ID)
	require.NotNil(t, violation.Impact)
	assert.Equal(t, report.ImpactCritical, *violation.Impact)
	require.NotEmpty(t, violation.Nodes)
	assert.Contains(t, violation.Nodes[0].HTML, `<img src="x.jpg">`)
	assert.Equal(t,
		"Found 1 accessibility violation(s). Review the violations list for details and remediation guidance.",
		result.Summary)
	f.assertReleasedOnce(t)
}

func TestMissingProps(t *testing.T) {
	f := newFixture(t, goMod, Options{})

	result, err := f.checker.Check(context.Background(), Request{
		Path:      "ui/components.templ",
		Component: "Card",
		Props:     map[string]any{"a": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, result.MissingProps)

	result, err = f.checker.Check(context.Background(), Request{
		Path:      "ui/components.templ",
		Component: "Card",
		Props:     map[string]any{"a": "x", "b": "y"},
	})
	require.NoError(t, err)
	assert.Nil(t, result.MissingProps)

	encoded, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "missingProps")
}

func TestNonexistentPath(t *testing.T) {
	f := newFixture(t, goMod, Options{})

	resp := f.checker.Handle(context.Background(), Request{Path: "ui/missing.templ"})

	require.True(t, resp.IsError)
	assert.Nil(t, resp.Result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, errors.KindLoad, resp.Error.Kind)
	assert.Equal(t, errors.DefaultHint, resp.Error.Hint)
	assert.NotEmpty(t, resp.Error.Message)
	assert.Empty(t, f.builder.docs)
}

func TestRenderFailureLeaksNoDocument(t *testing.T) {
	f := newFixture(t, goMod, Options{})

	resp := f.checker.Handle(context.Background(), Request{Path: "ui/components.templ", Component: "Broken"})

	require.True(t, resp.IsError)
	assert.Nil(t, resp.Result)
	assert.Equal(t, errors.KindRender, resp.Error.Kind)
	assert.Contains(t, resp.Error.Message, "cannot read property of undefined")
	assert.Empty(t, f.builder.docs)
	f.assertReleasedOnce(t)
}

func TestRoutingContextFromProject(t *testing.T) {
	without := newFixture(t, goMod, Options{})
	resp := without.checker.Handle(context.Background(), Request{Path: "ui/components.templ", Component: "NavLink"})
	require.True(t, resp.IsError)
	assert.Equal(t, errors.KindRender, resp.Error.Kind)
	assert.Contains(t, resp.Error.Message, "inside a router")

	with := newFixture(t, goModWithChi, Options{})
	resp = with.checker.Handle(context.Background(), Request{Path: "ui/components.templ", Component: "NavLink"})
	require.False(t, resp.IsError, "%+v", resp.Error)
	assert.Equal(t, 0, resp.Result.TotalViolations)
	with.assertReleasedOnce(t)
}

func TestAuditTimeout(t *testing.T) {
	engine := &blockingEngine{release: make(chan struct{})}
	t.Cleanup(func() { close(engine.release) })

	f := newFixture(t, goMod, Options{
		Timeout: 25 * time.Millisecond,
		Engines: func(context.Context, *loader.Module) (accessibility.Engine, error) { return engine, nil },
	})

	resp := f.checker.Handle(context.Background(), Request{Path: "ui/components.templ"})

	require.True(t, resp.IsError)
	assert.Nil(t, resp.Result)
	assert.Equal(t, errors.KindTimeout, resp.Error.Kind)
	require.Len(t, f.builder.docs, 1)
	f.assertReleasedOnce(t)
}

func TestEngineFailure(t *testing.T) {
	f := newFixture(t, goMod, Options{
		Engines: func(context.Context, *loader.Module) (accessibility.Engine, error) {
			return nil, fmt.Errorf("axe-core script not found")
		},
	})

	resp := f.checker.Handle(context.Background(), Request{Path: "ui/components.templ"})

	require.True(t, resp.IsError)
	assert.Equal(t, errors.KindAudit, resp.Error.Kind)
	assert.Contains(t, resp.Error.Message, "axe-core script not found")
	assert.Empty(t, f.builder.docs)
}

func TestPanicBecomesErrorResponse(t *testing.T) {
	f := newFixture(t, goMod, Options{
		Engines: func(context.Context, *loader.Module) (accessibility.Engine, error) {
			panic("engine registry corrupted")
		},
	})

	resp := f.checker.Handle(context.Background(), Request{Path: "ui/components.templ"})

	require.True(t, resp.IsError)
	assert.Nil(t, resp.Result)
	assert.Equal(t, errors.KindInternal, resp.Error.Kind)
	assert.Contains(t, resp.Error.Message, "engine registry corrupted")
}

func TestInvalidRequest(t *testing.T) {
	f := newFixture(t, goMod, Options{})

	for _, req := range []Request{
		{},
		{Path: "ui/components.templ", Component: "not-an-identifier"},
	} {
		resp := f.checker.Handle(context.Background(), req)
		require.True(t, resp.IsError)
		assert.Equal(t, errors.KindInternal, resp.Error.Kind)
		assert.Equal(t, errors.ErrCodeInvalidRequest, resp.Error.Code)
	}
}

func TestResultInvariants(t *testing.T) {
	f := newFixture(t, goMod, Options{})

	for _, name := range []string{"Image", "ContactForm", "Card"} {
		result, err := f.checker.Check(context.Background(), Request{Path: "ui/components.templ", Component: name})
		require.NoError(t, err, name)
		assert.Equal(t, len(result.Violations), result.TotalViolations, name)
	}
	f.assertReleasedOnce(t)
}

func TestRepeatedChecksAreStable(t *testing.T) {
	f := newFixture(t, goMod, Options{})
	req := Request{Path: "ui/components.templ", Props: map[string]any{"unused": true}}

	first, err := f.checker.Check(context.Background(), req)
	require.NoError(t, err)
	second, err := f.checker.Check(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.TotalViolations, second.TotalViolations)
	assert.Equal(t, violationIDs(first), violationIDs(second))
	assert.Equal(t, 1, f.checker.Registry().Len())
}

func TestResponseJSON(t *testing.T) {
	f := newFixture(t, goMod, Options{})

	encoded, err := json.Marshal(f.checker.Handle(context.Background(), Request{Path: "nope.templ"}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, true, decoded["isError"])
	assert.NotContains(t, decoded, "result")
	errBody := decoded["error"].(map[string]any)
	assert.Equal(t, "LoadError", errBody["kind"])
	assert.Contains(t, errBody, "hint")
}
