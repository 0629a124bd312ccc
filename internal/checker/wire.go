package checker

import (
	"github.com/conneroisu/templaudit/internal/config"
	"github.com/conneroisu/templaudit/internal/dom"
	"github.com/conneroisu/templaudit/internal/environment"
	"github.com/conneroisu/templaudit/internal/harness"
	"github.com/conneroisu/templaudit/internal/loader"
	"github.com/conneroisu/templaudit/internal/logging"
	"github.com/conneroisu/templaudit/internal/registry"
	"github.com/conneroisu/templaudit/internal/renderer"
)

// FromConfig assembles a checker from configuration, with the render
// harness as the component factory.
func FromConfig(cfg *config.Config, logger logging.Logger) *Checker {
	if logger == nil {
		logger = logging.Discard()
	}

	reg := registry.NewModuleRegistry(cfg.Cache.Size)
	h := harness.New(harness.Config{
		Dir:           cfg.Harness.Dir,
		TemplGenerate: cfg.Harness.TemplGenerate,
		Keep:          cfg.Harness.Keep,
		GoBinary:      cfg.Harness.GoBinary,
		TemplBinary:   cfg.Harness.TemplBinary,
	}, nil, logger)

	docOpts := dom.Options{
		Lang:   cfg.Document.Lang,
		Title:  cfg.Document.Title,
		Visual: cfg.Document.Visual,
	}
	var builder dom.Builder = dom.NewStaticBuilder(docOpts)
	if cfg.Document.Browser {
		builder = dom.NewBrowserBuilder(docOpts, cfg.Document.ChromePath)
	}

	engines := NativeEngines(logger)
	if cfg.Audit.Engine == config.EngineAxe {
		engines = AxeEngines(cfg.Audit.AxeScript)
	}

	return New(Options{
		Loader:   loader.New(cfg.Check.BaseDir, reg, h, logger),
		Registry: reg,
		Resolver: environment.NewResolver(environment.Config{
			Routing:    cfg.Environment.Routing,
			Theming:    cfg.Environment.Theming,
			ThemeFiles: cfg.Environment.ThemeFiles,
		}, logger),
		Renderer: renderer.NewAdapter(nil, logger),
		Builder:  builder,
		Engines:  engines,
		Timeout:  cfg.Audit.Timeout,
		Logger:   logger,
	})
}
