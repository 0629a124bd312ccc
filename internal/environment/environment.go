// Package environment detects the context providers a target project offers
// and wraps rendered elements in them.
//
// Two providers are known: a routing provider, present when the project
// requires github.com/go-chi/chi/v5, and a theming provider, present when
// it requires github.com/conneroisu/templaudit (whose pkg/theme package the
// project's components read). Detection reads the project's own go.mod, never
// this tool's. Every probe tolerates failure: a provider that cannot be
// detected is skipped, and with no providers Wrap returns the element as is.
//
// When both are present the theming provider is outermost:
//
//	Theme(Routing(element))
package environment

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"golang.org/x/mod/modfile"

	"github.com/conneroisu/templaudit/internal/logging"
)

// Modules whose presence in the target go.mod enables a provider.
const (
	RoutingModule = "github.com/go-chi/chi/v5"
	ThemingModule = "github.com/conneroisu/templaudit"
	ThemePackage  = ThemingModule + "/pkg/theme"
)

// Provider is one detected context provider.
type Provider interface {
	// Name identifies the provider in logs and reports.
	Name() string
	// Wrap returns child rendered inside the provider's context.
	Wrap(child templ.Component) templ.Component
	// HarnessImports lists import specs needed by HarnessSetup.
	HarnessImports() []string
	// HarnessSetup returns Go statements that install the provider's
	// context into a variable named ctx.
	HarnessSetup() string
}

// Config selects which providers may be detected.
type Config struct {
	Routing    bool
	Theming    bool
	ThemeFiles []string
}

// DefaultThemeFiles are the conventional theme locations, probed in order.
var DefaultThemeFiles = []string{
	"theme.yaml",
	"theme.yml",
	"theme.json",
	"styles/theme.yaml",
	"styles/theme.json",
	"internal/theme/theme.yaml",
}

// DefaultConfig enables both providers with the conventional theme files.
func DefaultConfig() Config {
	return Config{
		Routing:    true,
		Theming:    true,
		ThemeFiles: DefaultThemeFiles,
	}
}

// Resolver probes target projects for providers.
type Resolver struct {
	config Config
	logger logging.Logger
}

// NewResolver creates a resolver.
func NewResolver(config Config, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Resolver{config: config, logger: logger.WithComponent("environment")}
}

// Resolve probes the project rooted at moduleRoot. It never fails; missing
// or unreadable project metadata yields an empty environment.
func (r *Resolver) Resolve(ctx context.Context, moduleRoot string) *Environment {
	env := &Environment{}

	requires := r.requirements(ctx, moduleRoot)

	// Outermost first.
	if r.config.Theming && requires[ThemingModule] {
		t, source := r.loadTheme(ctx, moduleRoot)
		env.providers = append(env.providers, &ThemingProvider{Theme: t, Source: source})
	}
	if r.config.Routing && requires[RoutingModule] {
		env.providers = append(env.providers, &RoutingProvider{})
	}

	r.logger.Debug(ctx, "Resolved environment", "root", moduleRoot, "providers", env.Names())
	return env
}

// requirements returns the module paths the target go.mod requires,
// including the module's own path.
func (r *Resolver) requirements(ctx context.Context, moduleRoot string) map[string]bool {
	requires := make(map[string]bool)

	goMod := filepath.Join(moduleRoot, "go.mod")
	data, err := os.ReadFile(goMod)
	if err != nil {
		r.logger.Debug(ctx, "No go.mod to probe", "path", goMod, "error", err.Error())
		return requires
	}

	file, err := modfile.ParseLax(goMod, data, nil)
	if err != nil {
		r.logger.Warn(ctx, err, "Cannot parse go.mod, skipping providers", "path", goMod)
		return requires
	}

	if file.Module != nil {
		requires[file.Module.Mod.Path] = true
	}
	for _, req := range file.Require {
		requires[req.Mod.Path] = true
	}
	return requires
}

// Environment is the set of providers detected for one project.
type Environment struct {
	providers []Provider
}

// New returns an environment with the given providers, outermost first.
func New(providers ...Provider) *Environment {
	return &Environment{providers: providers}
}

// Providers returns the detected providers, outermost first.
func (e *Environment) Providers() []Provider {
	if e == nil {
		return nil
	}
	return e.providers
}

// Names returns the provider names, outermost first.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.Providers()))
	for _, p := range e.Providers() {
		names = append(names, p.Name())
	}
	return names
}

// Wrap nests element inside every detected provider.
func (e *Environment) Wrap(element templ.Component) templ.Component {
	providers := e.Providers()
	for i := len(providers) - 1; i >= 0; i-- {
		element = providers[i].Wrap(element)
	}
	return element
}

type appliedKey struct{}

// Applied returns the providers whose context is installed in ctx,
// outermost first.
func Applied(ctx context.Context) []Provider {
	applied, _ := ctx.Value(appliedKey{}).([]Provider)
	return applied
}

func withApplied(ctx context.Context, p Provider) context.Context {
	prev := Applied(ctx)
	next := make([]Provider, len(prev), len(prev)+1)
	copy(next, prev)
	return context.WithValue(ctx, appliedKey{}, append(next, p))
}

// wrapWith renders child with install applied to the context.
func wrapWith(p Provider, child templ.Component, install func(context.Context) context.Context) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ctx = withApplied(install(ctx), p)
		return child.Render(ctx, w)
	})
}

// RoutingProvider installs an empty chi route context for the root path.
type RoutingProvider struct{}

// Name implements Provider.
func (p *RoutingProvider) Name() string { return "routing" }

// Wrap implements Provider.
func (p *RoutingProvider) Wrap(child templ.Component) templ.Component {
	return wrapWith(p, child, func(ctx context.Context) context.Context {
		rctx := chi.NewRouteContext()
		rctx.RouteMethod = http.MethodGet
		rctx.RoutePath = "/"
		rctx.RoutePatterns = []string{"/"}
		return context.WithValue(ctx, chi.RouteCtxKey, rctx)
	})
}

// HarnessImports implements Provider.
func (p *RoutingProvider) HarnessImports() []string {
	return []string{`chi "` + RoutingModule + `"`}
}

// HarnessSetup implements Provider.
func (p *RoutingProvider) HarnessSetup() string {
	return `rctx := chi.NewRouteContext()
rctx.RouteMethod = "GET"
rctx.RoutePath = "/"
rctx.RoutePatterns = []string{"/"}
ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)`
}
