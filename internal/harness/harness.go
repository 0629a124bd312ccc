// Package harness renders components by compiling a throwaway program
// against the component's own Go module.
//
// For every render the harness writes a small main package to a temporary
// directory and hands it to go run through a build overlay, so the program
// appears inside the module without touching the module tree. templ
// generate still runs for templ sources and writes their _templ.go files.
// The program reads the props as JSON on stdin, installs the context
// providers that wrapped the element in this process and writes the
// rendered markup to stdout.
package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/templaudit/internal/environment"
	"github.com/conneroisu/templaudit/internal/loader"
	"github.com/conneroisu/templaudit/internal/logging"
	"github.com/conneroisu/templaudit/internal/scanner"
)

// DefaultDir is where harness programs appear, relative to the module root.
// Nothing is written there: the directory exists only in the build overlay.
const DefaultDir = "_templaudit/harness"

// Config controls harness behavior.
type Config struct {
	// Dir is the overlay program directory relative to the module root
	Dir string
	// TemplGenerate runs templ generate before building templ sources
	TemplGenerate bool
	// Keep leaves generated programs in the temporary directory for inspection
	Keep bool
	// GoBinary and TemplBinary name the external tools
	GoBinary    string
	TemplBinary string
}

// DefaultConfig returns the default harness configuration.
func DefaultConfig() Config {
	return Config{
		Dir:           DefaultDir,
		TemplGenerate: true,
		GoBinary:      "go",
		TemplBinary:   "templ",
	}
}

// Command is one external tool invocation.
type Command struct {
	Dir   string
	Name  string
	Args  []string
	Stdin []byte
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes external commands and returns their standard output.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner. A failing command's stderr is part of the error.
func (ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	if _, err := exec.LookPath(c.Name); err != nil {
		return nil, fmt.Errorf("%s command not found: %w", c.Name, err)
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed in %s: %w\nOutput: %s", c, c.Dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Harness builds component factories backed by generated programs.
type Harness struct {
	config Config
	runner Runner
	logger logging.Logger

	generating singleflight.Group
	mu         sync.Mutex
	sources    map[string]*sync.RWMutex
}

// New creates a harness. A nil runner selects ExecRunner.
func New(config Config, runner Runner, logger logging.Logger) *Harness {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if config.Dir == "" {
		config.Dir = DefaultDir
	}
	if config.GoBinary == "" {
		config.GoBinary = "go"
	}
	if config.TemplBinary == "" {
		config.TemplBinary = "templ"
	}
	return &Harness{
		config:  config,
		runner:  runner,
		logger:  logger.WithComponent("harness"),
		sources: make(map[string]*sync.RWMutex),
	}
}

// Factory implements loader.FactoryProvider. The program is generated once
// up front so unsupported parameter types fail the load.
func (h *Harness) Factory(_ context.Context, module *loader.Module) (loader.Factory, error) {
	if _, err := Generate(module, nil); err != nil {
		return nil, err
	}

	return func(ctx context.Context, props map[string]any) (templ.Component, error) {
		props, dropped := exactProps(module, props)
		if len(dropped) > 0 {
			h.logger.Warn(ctx, nil, "Ignoring props that differ from a parameter name only in case",
				"component", module.Component.Name, "props", dropped)
		}
		data, err := json.Marshal(props)
		if err != nil {
			return nil, fmt.Errorf("encoding props: %w", err)
		}
		return &element{harness: h, module: module, props: data}, nil
	}, nil
}

// element renders one component invocation through a generated program.
type element struct {
	harness *Harness
	module  *loader.Module
	props   []byte
}

// exactProps returns props without the keys that match a parameter name
// only case-insensitively. Prop names are case-sensitive, while the
// program's JSON decoding would otherwise fold them onto the parameter.
func exactProps(module *loader.Module, props map[string]any) (map[string]any, []string) {
	params := make(map[string]bool, len(module.Component.Parameters))
	for _, p := range module.Component.Parameters {
		params[p.Name] = true
	}

	kept := make(map[string]any, len(props))
	var dropped []string
	for key, value := range props {
		if !params[key] && foldsOnto(key, params) {
			dropped = append(dropped, key)
			continue
		}
		kept[key] = value
	}
	sort.Strings(dropped)
	return kept, dropped
}

func foldsOnto(key string, params map[string]bool) bool {
	for name := range params {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

// Render implements templ.Component.
func (e *element) Render(ctx context.Context, w io.Writer) error {
	h := e.harness
	providers := environment.Applied(ctx)

	src, err := Generate(e.module, providers)
	if err != nil {
		return err
	}

	tmp, err := os.MkdirTemp("", "templaudit-harness-")
	if err != nil {
		return fmt.Errorf("creating harness directory: %w", err)
	}
	if h.config.Keep {
		h.logger.Info(ctx, "Keeping harness program", "dir", tmp)
	} else {
		defer func() {
			if err := os.RemoveAll(tmp); err != nil {
				h.logger.Warn(ctx, err, "Failed to remove harness directory", "dir", tmp)
			}
		}()
	}

	program := filepath.Join(tmp, "main.go")
	if err := os.WriteFile(program, src, 0o600); err != nil {
		return fmt.Errorf("writing harness program: %w", err)
	}

	rel := filepath.Join(filepath.FromSlash(h.config.Dir), uuid.NewString())
	overlay, err := writeOverlay(tmp, map[string]string{
		filepath.Join(e.module.ModuleRoot, rel, "main.go"): program,
	})
	if err != nil {
		return err
	}

	sourceDir := filepath.Dir(e.module.Path)
	if h.config.TemplGenerate && filepath.Ext(e.module.Path) == scanner.ExtTempl {
		if err := h.generate(ctx, e.module.ModuleRoot, sourceDir); err != nil {
			return err
		}
	}

	run := Command{
		Dir:   e.module.ModuleRoot,
		Name:  h.config.GoBinary,
		Args:  []string{"run", "-overlay", overlay, "./" + filepath.ToSlash(rel)},
		Stdin: e.props,
	}
	h.logger.Debug(ctx, "Running harness", "command", run.String(), "providers", len(providers))

	lock := h.sourceLock(sourceDir)
	lock.RLock()
	out, err := h.runner.Run(ctx, run)
	lock.RUnlock()
	if err != nil {
		return fmt.Errorf("rendering %s: %w", e.module.Component.Name, err)
	}

	_, err = w.Write(out)
	return err
}

// writeOverlay writes a go build overlay file replacing each key with the
// file it maps to, and returns its path.
func writeOverlay(dir string, replace map[string]string) (string, error) {
	data, err := json.Marshal(struct {
		Replace map[string]string
	}{Replace: replace})
	if err != nil {
		return "", fmt.Errorf("encoding build overlay: %w", err)
	}
	path := filepath.Join(dir, "overlay.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing build overlay: %w", err)
	}
	return path, nil
}

// generate runs templ generate for dir. Concurrent requests for the same
// directory share one run, and a run never overlaps a go run compiling
// that directory.
func (h *Harness) generate(ctx context.Context, root, dir string) error {
	_, err, shared := h.generating.Do(dir, func() (any, error) {
		lock := h.sourceLock(dir)
		lock.Lock()
		defer lock.Unlock()

		cmd := Command{
			Dir:  root,
			Name: h.config.TemplBinary,
			Args: []string{"generate", "-path", dir},
		}
		h.logger.Debug(ctx, "Generating templ sources", "command", cmd.String())
		return h.runner.Run(ctx, cmd)
	})
	if shared {
		h.logger.Debug(ctx, "Shared templ generate run", "dir", dir)
	}
	if err != nil {
		return fmt.Errorf("running templ generate: %w", err)
	}
	return nil
}

// sourceLock returns the lock guarding generated sources in dir.
func (h *Harness) sourceLock(dir string) *sync.RWMutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	lock, ok := h.sources[dir]
	if !ok {
		lock = &sync.RWMutex{}
		h.sources[dir] = lock
	}
	return lock
}
