package accessibility

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/templaudit/internal/dom"
)

// AxeEngineName identifies the axe-core engine.
const AxeEngineName = "axe-core"

// DefaultAxeScript is where axe-core is looked up relative to the target
// module when no script path is configured.
var DefaultAxeScript = filepath.Join("node_modules", "axe-core", "axe.min.js")

const axeRunExpression = `axe.run(document, {resultTypes: ["violations"]})`

// AxeEngine runs axe-core inside a scriptable document.
type AxeEngine struct {
	script string
}

// NewAxeEngine creates an engine that injects the axe-core source found at
// script.
func NewAxeEngine(script string) *AxeEngine {
	return &AxeEngine{script: script}
}

// LocateAxeScript returns configured when set, otherwise the default
// location under moduleRoot. The file must exist.
func LocateAxeScript(moduleRoot, configured string) (string, error) {
	path := configured
	if path == "" {
		path = filepath.Join(moduleRoot, DefaultAxeScript)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(moduleRoot, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("axe-core script not found at %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("axe-core script %s is a directory", path)
	}
	return path, nil
}

// Name implements Engine.
func (e *AxeEngine) Name() string { return AxeEngineName }

// Inject implements Engine.
func (e *AxeEngine) Inject(ctx context.Context, doc dom.Document) error {
	scriptable, err := asScriptable(doc)
	if err != nil {
		return err
	}
	source, err := os.ReadFile(e.script)
	if err != nil {
		return fmt.Errorf("reading axe-core script: %w", err)
	}
	return scriptable.Inject(ctx, string(source))
}

// Run implements Engine.
func (e *AxeEngine) Run(ctx context.Context, doc dom.Document) (*RawResults, error) {
	scriptable, err := asScriptable(doc)
	if err != nil {
		return nil, err
	}
	var results RawResults
	if err := scriptable.Evaluate(ctx, axeRunExpression, &results); err != nil {
		return nil, err
	}
	if results.Violations == nil {
		results.Violations = []RawRule{}
	}
	return &results, nil
}

func asScriptable(doc dom.Document) (dom.Scriptable, error) {
	scriptable, ok := doc.(dom.Scriptable)
	if !ok {
		return nil, fmt.Errorf("the axe-core engine needs a browser document")
	}
	return scriptable, nil
}
