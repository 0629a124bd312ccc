// Package checker runs the render-and-audit pipeline for one component.
//
// A check loads the component module, resolves the context providers its
// project needs, renders it, builds a document from the markup, audits the
// document and assembles the report. Handle is the error boundary: it
// always returns a Response, never a raw error or panic.
package checker

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/conneroisu/templaudit/internal/accessibility"
	"github.com/conneroisu/templaudit/internal/dom"
	"github.com/conneroisu/templaudit/internal/environment"
	"github.com/conneroisu/templaudit/internal/errors"
	"github.com/conneroisu/templaudit/internal/loader"
	"github.com/conneroisu/templaudit/internal/logging"
	"github.com/conneroisu/templaudit/internal/registry"
	"github.com/conneroisu/templaudit/internal/renderer"
	"github.com/conneroisu/templaudit/internal/report"
)

// Request identifies the component to check.
type Request struct {
	// Path is the component file, relative to the base directory or absolute.
	Path string `json:"path" validate:"required"`
	// Props are passed to the component by parameter name.
	Props map[string]any `json:"props,omitempty"`
	// Component selects a component by name. Empty selects the first
	// exported component of the file.
	Component string `json:"component,omitempty" validate:"omitempty,goident"`
}

// Response is the outcome of a check as returned to callers. Exactly one of
// Result and Error is set.
type Response struct {
	IsError bool                `json:"isError"`
	Result  *report.CheckResult `json:"result,omitempty"`
	Error   *errors.Payload     `json:"error,omitempty"`
}

// EngineFactory returns the auditor engine for a loaded module.
type EngineFactory func(ctx context.Context, module *loader.Module) (accessibility.Engine, error)

// NativeEngines audits every module with the native engine.
func NativeEngines(logger logging.Logger) EngineFactory {
	engine := accessibility.NewNativeEngine(logger)
	return func(context.Context, *loader.Module) (accessibility.Engine, error) {
		return engine, nil
	}
}

// AxeEngines audits with axe-core, locating the script relative to each
// module root unless script is absolute.
func AxeEngines(script string) EngineFactory {
	return func(_ context.Context, module *loader.Module) (accessibility.Engine, error) {
		path, err := accessibility.LocateAxeScript(module.ModuleRoot, script)
		if err != nil {
			return nil, err
		}
		return accessibility.NewAxeEngine(path), nil
	}
}

// Options wires the pipeline stages.
type Options struct {
	Loader   *loader.Loader
	Registry *registry.ModuleRegistry
	Resolver *environment.Resolver
	Renderer *renderer.Adapter
	Builder  dom.Builder
	Engines  EngineFactory
	Timeout  time.Duration
	Logger   logging.Logger
}

// Checker runs checks. It is safe for concurrent use; each check owns its
// document.
type Checker struct {
	loader   *loader.Loader
	registry *registry.ModuleRegistry
	resolver *environment.Resolver
	renderer *renderer.Adapter
	builder  dom.Builder
	engines  EngineFactory
	timeout  time.Duration
	validate *validator.Validate
	logger   logging.Logger
}

var goIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// New creates a checker. Loader is required; other missing stages get
// their defaults.
func New(opts Options) *Checker {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Resolver == nil {
		opts.Resolver = environment.NewResolver(environment.DefaultConfig(), opts.Logger)
	}
	if opts.Renderer == nil {
		opts.Renderer = renderer.NewAdapter(nil, opts.Logger)
	}
	if opts.Builder == nil {
		opts.Builder = dom.NewStaticBuilder(dom.DefaultOptions())
	}
	if opts.Engines == nil {
		opts.Engines = NativeEngines(opts.Logger)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = accessibility.DefaultTimeout
	}

	validate := validator.New()
	_ = validate.RegisterValidation("goident", func(fl validator.FieldLevel) bool {
		return goIdent.MatchString(fl.Field().String())
	})

	return &Checker{
		loader:   opts.Loader,
		registry: opts.Registry,
		resolver: opts.Resolver,
		renderer: opts.Renderer,
		builder:  opts.Builder,
		engines:  opts.Engines,
		timeout:  opts.Timeout,
		validate: validate,
		logger:   opts.Logger.WithComponent("checker"),
	}
}

// Registry returns the module registry the checker loads through, if known.
func (c *Checker) Registry() *registry.ModuleRegistry { return c.registry }

// Loader returns the checker's module loader.
func (c *Checker) Loader() *loader.Loader { return c.loader }

// Handle runs a check and converts every failure, including panics, into
// an error response.
func (c *Checker) Handle(ctx context.Context, req Request) (resp Response) {
	logger := c.logger.With("request_id", uuid.NewString())

	defer func() {
		if r := recover(); r != nil {
			err := errors.NewInternalError(errors.ErrCodeInternalError, fmt.Sprintf("check panicked: %v", r), nil).
				WithFile(req.Path)
			logger.Error(ctx, err, "Recovered from panic during check", "path", req.Path)
			resp = Response{IsError: true, Error: errors.ToPayload(err)}
		}
	}()

	result, err := c.check(ctx, req, logger)
	if err != nil {
		logger.Info(ctx, "Check failed", "path", req.Path, "kind", errors.KindOf(err), "error", err.Error())
		return Response{IsError: true, Error: errors.ToPayload(err)}
	}
	return Response{Result: result}
}

// Check runs the pipeline for req. Errors are *errors.CheckError values.
func (c *Checker) Check(ctx context.Context, req Request) (*report.CheckResult, error) {
	return c.check(ctx, req, c.logger.With("request_id", uuid.NewString()))
}

func (c *Checker) check(ctx context.Context, req Request, logger logging.Logger) (*report.CheckResult, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, "invalid check request", err)
	}

	perf := logging.StartOperation(logger, "check")

	module, err := c.loader.Load(ctx, req.Path, req.Component)
	if err != nil {
		perf.EndWithError(ctx, err, "path", req.Path, "stage", "load")
		return nil, err
	}

	env := c.resolver.Resolve(ctx, module.ModuleRoot)

	markup, err := c.renderer.Render(ctx, module, req.Props, env.Wrap)
	if err != nil {
		perf.EndWithError(ctx, err, "path", req.Path, "stage", "render", "providers", env.Names())
		return nil, err
	}

	engine, err := c.engines(ctx, module)
	if err != nil {
		err = errors.NewAuditError("cannot prepare auditor engine", err).
			WithFile(module.Path).WithComponent(module.Component.Name)
		perf.EndWithError(ctx, err, "path", req.Path, "stage", "audit")
		return nil, err
	}

	doc, err := c.builder.Build(ctx, markup)
	if err != nil {
		if errors.KindOf(err) == errors.KindInternal {
			err = errors.NewRenderError(errors.ErrCodeDocumentFailed, "cannot build document", err)
		}
		perf.EndWithError(ctx, err, "path", req.Path, "stage", "document")
		return nil, err
	}

	raw, err := accessibility.NewRunner(engine, c.timeout, logger).Audit(ctx, doc)
	if err != nil {
		perf.EndWithError(ctx, err, "path", req.Path, "stage", "audit", "engine", engine.Name())
		return nil, err
	}

	result := report.Assemble(module.Path, raw, module.Contract, req.Props)
	perf.End(ctx,
		"path", req.Path,
		"component", module.Component.Name,
		"violations", result.TotalViolations,
		"missing_props", len(result.MissingProps))

	return result, nil
}
