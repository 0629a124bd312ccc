package dom

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/conneroisu/templaudit/internal/errors"
)

// BrowserBuilder loads each document into its own headless Chrome instance.
type BrowserBuilder struct {
	opts       Options
	chromePath string
}

// NewBrowserBuilder creates a browser builder. An empty chromePath lets
// chromedp locate Chrome.
func NewBrowserBuilder(opts Options, chromePath string) *BrowserBuilder {
	return &BrowserBuilder{opts: withDefaults(opts), chromePath: chromePath}
}

// Build implements Builder. The browser outlives ctx; it is torn down only
// by Release.
func (b *BrowserBuilder) Build(ctx context.Context, markup string) (Document, error) {
	source, err := Wrap(ctx, b.opts, markup)
	if err != nil {
		return nil, errors.NewRenderError(errors.ErrCodeDocumentFailed, "cannot build document skeleton", err)
	}

	tree, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, errors.NewRenderError(errors.ErrCodeDocumentFailed, "cannot parse document", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(b.chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	doc := &BrowserDocument{
		ctx:    browserCtx,
		markup: source,
		tree:   tree,
		visual: b.opts.Visual,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}

	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frames, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frames.Frame.ID, source).Do(ctx)
		}),
	)
	if err != nil {
		_ = doc.Release()
		return nil, errors.NewRenderError(errors.ErrCodeDocumentFailed, "cannot load document into browser", err)
	}

	return doc, nil
}

// BrowserDocument is a document loaded into a headless browser tab.
type BrowserDocument struct {
	ctx    context.Context
	markup string
	tree   *goquery.Document
	visual bool

	once   sync.Once
	cancel func()
	mu     sync.Mutex
	closed bool
}

// Markup implements Document.
func (d *BrowserDocument) Markup() string { return d.markup }

// Visual implements Document.
func (d *BrowserDocument) Visual() bool { return d.visual }

// Tree implements Document. The tree is parsed from the loaded markup.
func (d *BrowserDocument) Tree() *goquery.Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	return d.tree
}

// Inject implements Scriptable.
func (d *BrowserDocument) Inject(ctx context.Context, src string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(d.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, exception, err := runtime.Evaluate(src).Do(ctx)
		if err != nil {
			return err
		}
		if exception != nil {
			return exception
		}
		return nil
	}))
}

// Evaluate implements Scriptable.
func (d *BrowserDocument) Evaluate(ctx context.Context, expr string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(d.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		result, exception, err := runtime.Evaluate(expr).
			WithAwaitPromise(true).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exception != nil {
			return exception
		}
		if out == nil || result == nil || len(result.Value) == 0 {
			return nil
		}
		if err := json.Unmarshal([]byte(result.Value), out); err != nil {
			return fmt.Errorf("decoding evaluation result: %w", err)
		}
		return nil
	}))
}

// Release implements Document. It shuts the browser down.
func (d *BrowserDocument) Release() error {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		d.cancel()
	})
	return nil
}
