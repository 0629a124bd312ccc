// Package renderer turns a loaded component and its props into markup.
//
// The Adapter builds the element from the module's factory, nests it in the
// environment's providers and hands it to a ComponentRenderer. Every failure
// on that path is reported as a render error.
package renderer

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/templaudit/internal/errors"
	"github.com/conneroisu/templaudit/internal/loader"
	"github.com/conneroisu/templaudit/internal/logging"
)

// ComponentRenderer converts an element into markup.
type ComponentRenderer interface {
	Render(ctx context.Context, element templ.Component) (string, error)
}

// TemplRenderer renders elements in process with templ.
type TemplRenderer struct{}

// Render implements ComponentRenderer. A panicking component is reported as
// an error.
func (TemplRenderer) Render(ctx context.Context, element templ.Component) (html string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("component panicked: %v", r)
		}
	}()

	var buf strings.Builder
	if err := element.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Wrapper nests an element inside context providers.
type Wrapper func(templ.Component) templ.Component

// Adapter applies environment wrapping before rendering.
type Adapter struct {
	renderer ComponentRenderer
	logger   logging.Logger
}

// NewAdapter creates an adapter. A nil renderer selects TemplRenderer.
func NewAdapter(renderer ComponentRenderer, logger logging.Logger) *Adapter {
	if renderer == nil {
		renderer = TemplRenderer{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Adapter{renderer: renderer, logger: logger.WithComponent("renderer")}
}

// Render produces the markup of module's component for props.
func (a *Adapter) Render(ctx context.Context, module *loader.Module, props map[string]any, wrap Wrapper) (string, error) {
	name := module.Component.Name
	renderError := func(msg string, cause error) error {
		return errors.NewRenderError(errors.ErrCodeRenderFailed, msg, cause).
			WithFile(module.Path).WithComponent(name)
	}

	if module.Factory == nil {
		return "", renderError("component has no factory", nil)
	}

	element, err := module.Factory(ctx, props)
	if err != nil {
		return "", renderError("cannot construct element", err)
	}
	if element == nil {
		return "", renderError("factory returned no element", nil)
	}
	if wrap != nil {
		element = wrap(element)
	}

	op := logging.StartOperation(a.logger, "render")
	html, err := a.renderer.Render(ctx, element)
	if err != nil {
		op.EndWithError(ctx, err, "component", name)
		return "", renderError("component failed to render", err)
	}
	op.End(ctx, "component", name, "bytes", len(html))

	return html, nil
}
