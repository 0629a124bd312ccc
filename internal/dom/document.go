// Package dom builds the documents audits run against.
//
// Rendered markup is embedded in a minimal HTML skeleton and loaded either
// into a parsed goquery tree (StaticBuilder) or into a dedicated headless
// Chrome tab (BrowserBuilder). Every Document must be released exactly once
// by its owner; Release is idempotent.
package dom

import (
	"context"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
)

// Defaults for the document skeleton.
const (
	DefaultLang  = "en"
	DefaultTitle = "Component accessibility check"
)

// Options configure the skeleton and rendering context.
type Options struct {
	Lang  string
	Title string
	// Visual reports the document as a visual rendering context, which some
	// rules require before they run.
	Visual bool
}

// DefaultOptions returns the default document options.
func DefaultOptions() Options {
	return Options{Lang: DefaultLang, Title: DefaultTitle, Visual: true}
}

// Document is an owned, releasable DOM environment.
type Document interface {
	// Markup returns the full document source.
	Markup() string
	// Tree returns the parsed document, or nil once released.
	Tree() *goquery.Document
	// Visual reports whether the document is a visual rendering context.
	Visual() bool
	// Release tears the document down. Calls after the first are no-ops.
	Release() error
}

// Scriptable is a Document that can execute scripts.
type Scriptable interface {
	Document
	// Inject executes src in the document's global scope.
	Inject(ctx context.Context, src string) error
	// Evaluate runs expr, awaiting a returned promise, and decodes the
	// JSON value of its result into out.
	Evaluate(ctx context.Context, expr string, out any) error
}

// Builder creates documents from rendered markup.
type Builder interface {
	Build(ctx context.Context, markup string) (Document, error)
}

// Skeleton wraps body markup in a complete HTML document. The body is
// written as is; lang and title are escaped.
func Skeleton(lang, title, body string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html><html lang="`+templ.EscapeString(lang)+
			`"><head><meta charset="utf-8"><title>`+templ.EscapeString(title)+
			`</title></head><body>`+body+`</body></html>`)
		return err
	})
}

// Wrap renders the skeleton for body with opts.
func Wrap(ctx context.Context, opts Options, body string) (string, error) {
	var sb strings.Builder
	if err := Skeleton(opts.Lang, opts.Title, body).Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func withDefaults(opts Options) Options {
	if opts.Lang == "" {
		opts.Lang = DefaultLang
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	return opts
}
