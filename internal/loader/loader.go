// Package loader resolves a source path to an executable component.
//
// Every load evicts the registry entry for the requested path and rescans
// the file, so repeated checks always see the current content. Sibling files
// in the same directory that provide rendered child components are scanned
// on demand and stay cached across loads.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/a-h/templ"
	"golang.org/x/mod/modfile"

	"github.com/conneroisu/templaudit/internal/errors"
	"github.com/conneroisu/templaudit/internal/logging"
	"github.com/conneroisu/templaudit/internal/registry"
	"github.com/conneroisu/templaudit/internal/scanner"
	"github.com/conneroisu/templaudit/internal/types"
)

// Factory builds the renderable element for one set of props.
type Factory func(ctx context.Context, props map[string]any) (templ.Component, error)

// FactoryProvider turns a loaded module into a Factory.
type FactoryProvider interface {
	Factory(ctx context.Context, module *Module) (Factory, error)
}

// FactoryProviderFunc adapts a function to FactoryProvider.
type FactoryProviderFunc func(ctx context.Context, module *Module) (Factory, error)

// Factory implements FactoryProvider.
func (f FactoryProviderFunc) Factory(ctx context.Context, module *Module) (Factory, error) {
	return f(ctx, module)
}

// Module is an executable component definition.
type Module struct {
	// Path is the resolved absolute path of the source file
	Path string
	// Package is the Go package name of the source file
	Package string
	// ImportPath is the import path of the package declaring the component
	ImportPath string
	// ModuleRoot is the directory holding the owning go.mod
	ModuleRoot string
	// ModulePath is the module path declared by that go.mod
	ModulePath string
	// Source is the scanned form of the file
	Source *types.ModuleInfo
	// Component is the selected component
	Component *types.ComponentInfo
	// Contract is the declared input contract of Component
	Contract types.Contract
	// Dependencies lists sibling module paths providing rendered children
	Dependencies []string
	// Factory builds the element
	Factory Factory
}

// Loader loads component modules through a shared registry.
type Loader struct {
	baseDir  string
	registry *registry.ModuleRegistry
	scanner  *scanner.ComponentScanner
	provider FactoryProvider
	logger   logging.Logger
}

// New creates a loader resolving relative paths against baseDir.
func New(baseDir string, reg *registry.ModuleRegistry, provider FactoryProvider, logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Loader{
		baseDir:  baseDir,
		registry: reg,
		scanner:  scanner.NewComponentScanner(),
		provider: provider,
		logger:   logger.WithComponent("loader"),
	}
}

// Resolve returns the absolute form of path relative to the base directory.
func (l *Loader) Resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		base := l.baseDir
		if base == "" {
			wd, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("getting working directory: %w", err)
			}
			base = wd
		}
		path = filepath.Join(base, path)
	}
	return registry.Key(path), nil
}

// Load resolves path, rescans it and builds the selected component. An empty
// componentName selects the first exported component in declaration order.
func (l *Loader) Load(ctx context.Context, path, componentName string) (*Module, error) {
	resolved, err := l.Resolve(path)
	if err != nil {
		return nil, errors.NewLoadError(errors.ErrCodeFileNotFound, "cannot resolve path", err).WithFile(path)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, errors.NewLoadError(errors.ErrCodeFileNotFound, "module not found", err).WithFile(resolved)
	}
	if info.IsDir() || !scanner.Supported(resolved) {
		return nil, errors.NewLoadError(errors.ErrCodeUnsupportedFile,
			"not a loadable module: expected a .templ or .go file", nil).WithFile(resolved)
	}

	if l.registry.Evict(resolved) {
		l.logger.Debug(ctx, "Evicted cached module", "path", resolved)
	}

	source, err := l.scanner.ScanFile(resolved)
	if err != nil {
		return nil, errors.NewLoadError(errors.ErrCodeNotAComponent, "cannot parse module", err).WithFile(resolved)
	}
	l.registry.Add(source)
	l.logger.Debug(ctx, "Scanned module", "path", resolved, "hash", source.Hash, "components", len(source.Components))

	component, err := selectComponent(source, componentName)
	if err != nil {
		return nil, err
	}

	root, modulePath, err := findModule(filepath.Dir(resolved))
	if err != nil {
		return nil, errors.NewLoadError(errors.ErrCodeNoModule, "no go.mod found for module", err).
			WithFile(resolved).WithComponent(component.Name)
	}
	importPath, err := importPathOf(root, modulePath, filepath.Dir(resolved))
	if err != nil {
		return nil, errors.NewLoadError(errors.ErrCodeNoModule, "cannot derive import path", err).
			WithFile(resolved).WithComponent(component.Name)
	}

	module := &Module{
		Path:         resolved,
		Package:      source.Package,
		ImportPath:   importPath,
		ModuleRoot:   root,
		ModulePath:   modulePath,
		Source:       source,
		Component:    component,
		Contract:     types.ContractOf(component),
		Dependencies: l.loadDependencies(ctx, source, component),
	}

	if l.provider == nil {
		return nil, errors.NewLoadError(errors.ErrCodeNotAComponent, "no component factory configured", nil).
			WithFile(resolved).WithComponent(component.Name)
	}
	factory, err := l.provider.Factory(ctx, module)
	if err != nil {
		return nil, errors.NewLoadError(errors.ErrCodeNotAComponent, "cannot build component factory", err).
			WithFile(resolved).WithComponent(component.Name)
	}
	module.Factory = factory

	return module, nil
}

func selectComponent(source *types.ModuleInfo, name string) (*types.ComponentInfo, error) {
	if source.Package == "main" {
		return nil, errors.NewLoadError(errors.ErrCodeNotAComponent,
			"not an invocable component: package main cannot be imported", nil).WithFile(source.Path)
	}

	if name != "" {
		component, ok := source.Component(name)
		if !ok {
			return nil, errors.NewLoadError(errors.ErrCodeComponentNotFound,
				fmt.Sprintf("component %s not declared", name), nil).WithFile(source.Path).WithComponent(name)
		}
		if !component.IsExported {
			return nil, errors.NewLoadError(errors.ErrCodeNotAComponent,
				"not an invocable component: component is not exported", nil).WithFile(source.Path).WithComponent(name)
		}
		return component, nil
	}

	for i := range source.Components {
		if source.Components[i].IsExported {
			return &source.Components[i], nil
		}
	}

	return nil, errors.NewLoadError(errors.ErrCodeNotAComponent,
		"not an invocable component: no exported component declared", nil).WithFile(source.Path)
}

// loadDependencies finds the sibling modules declaring the components that
// component renders, following their own dependencies in turn. Components
// declared in the same file are followed in place. Cached siblings are
// reused as they are.
func (l *Loader) loadDependencies(ctx context.Context, source *types.ModuleInfo, component *types.ComponentInfo) []string {
	visited := map[string]bool{component.Name: true}
	pending := append([]string(nil), component.Dependencies...)

	var (
		siblings []*types.ModuleInfo
		listed   bool
	)
	provided := make(map[string]bool)

	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]
		if visited[name] {
			continue
		}
		visited[name] = true

		if local, ok := source.Component(name); ok {
			pending = append(pending, local.Dependencies...)
			continue
		}

		if !listed {
			siblings = l.siblingModules(ctx, source.Path)
			listed = true
		}
		found := false
		for _, sibling := range siblings {
			c, ok := sibling.Component(name)
			if !ok {
				continue
			}
			found = true
			provided[sibling.Path] = true
			pending = append(pending, c.Dependencies...)
			break
		}
		if !found {
			l.logger.Debug(ctx, "Dependency not found among siblings", "component", component.Name, "dependency", name)
		}
	}
	if len(provided) == 0 {
		return nil
	}

	paths := make([]string, 0, len(provided))
	for p := range provided {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// siblingModules returns the scanned modules next to path, loading any that
// are not cached yet.
func (l *Loader) siblingModules(ctx context.Context, path string) []*types.ModuleInfo {
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		l.logger.Warn(ctx, err, "Cannot list sibling modules", "path", path)
		return nil
	}

	var modules []*types.ModuleInfo
	for _, entry := range entries {
		sibling := filepath.Join(filepath.Dir(path), entry.Name())
		if entry.IsDir() || sibling == path || !scanner.Supported(sibling) || scanner.Generated(sibling) {
			continue
		}

		if cached, ok := l.registry.Get(sibling); ok {
			modules = append(modules, cached)
			continue
		}

		scanned, err := l.scanner.ScanFile(sibling)
		if err != nil {
			l.logger.Debug(ctx, "Skipping unparsable sibling", "path", sibling, "error", err.Error())
			continue
		}
		l.registry.Add(scanned)
		modules = append(modules, scanned)
	}
	return modules
}

// findModule walks up from dir to the nearest go.mod and returns its
// directory and declared module path.
func findModule(dir string) (string, string, error) {
	for {
		goMod := filepath.Join(dir, "go.mod")
		data, err := os.ReadFile(goMod)
		if err == nil {
			modulePath := modfile.ModulePath(data)
			if modulePath == "" {
				return "", "", fmt.Errorf("%s declares no module path", goMod)
			}
			return dir, modulePath, nil
		}
		if !os.IsNotExist(err) {
			return "", "", fmt.Errorf("reading %s: %w", goMod, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", fmt.Errorf("no go.mod above %s", dir)
		}
		dir = parent
	}
}

func importPathOf(root, modulePath, dir string) (string, error) {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return modulePath, nil
	}
	return modulePath + "/" + filepath.ToSlash(rel), nil
}
