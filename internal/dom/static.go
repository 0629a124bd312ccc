package dom

import (
	"context"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/conneroisu/templaudit/internal/errors"
)

// StaticBuilder parses documents with goquery. Its documents cannot run
// scripts.
type StaticBuilder struct {
	opts Options
}

// NewStaticBuilder creates a static builder.
func NewStaticBuilder(opts Options) *StaticBuilder {
	return &StaticBuilder{opts: withDefaults(opts)}
}

// Build implements Builder.
func (b *StaticBuilder) Build(ctx context.Context, markup string) (Document, error) {
	source, err := Wrap(ctx, b.opts, markup)
	if err != nil {
		return nil, errors.NewRenderError(errors.ErrCodeDocumentFailed, "cannot build document skeleton", err)
	}

	tree, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, errors.NewRenderError(errors.ErrCodeDocumentFailed, "cannot parse document", err)
	}

	return &StaticDocument{markup: source, tree: tree, visual: b.opts.Visual}, nil
}

// StaticDocument is a parsed, script-less document.
type StaticDocument struct {
	mu       sync.Mutex
	markup   string
	tree     *goquery.Document
	visual   bool
	released bool
}

// Markup implements Document.
func (d *StaticDocument) Markup() string { return d.markup }

// Visual implements Document.
func (d *StaticDocument) Visual() bool { return d.visual }

// Tree implements Document.
func (d *StaticDocument) Tree() *goquery.Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tree
}

// Release implements Document.
func (d *StaticDocument) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.released {
		d.released = true
		d.tree = nil
	}
	return nil
}
