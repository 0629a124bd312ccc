// Package accessibility runs auditor engines against rendered documents.
//
// Engines produce axe-core shaped results. The NativeEngine evaluates a
// fixed rule set over the parsed document tree; the AxeEngine injects
// axe-core into a browser document. The Runner owns the document for the
// duration of one audit and bounds how long the caller waits.
package accessibility

import (
	"context"

	"github.com/conneroisu/templaudit/internal/dom"
)

// Impact levels reported by engines, from least to most severe.
const (
	ImpactMinor    = "minor"
	ImpactModerate = "moderate"
	ImpactSerious  = "serious"
	ImpactCritical = "critical"
)

// Engine is a rule-based accessibility auditor.
type Engine interface {
	// Name identifies the engine in logs and results.
	Name() string
	// Inject prepares doc for auditing, typically by loading the engine
	// source into the document's scripting context.
	Inject(ctx context.Context, doc dom.Document) error
	// Run audits doc and returns the engine's raw results.
	Run(ctx context.Context, doc dom.Document) (*RawResults, error)
}

// RawResults mirrors the result object of axe.run.
type RawResults struct {
	TestEngine   TestEngine `json:"testEngine"`
	TestRunner   TestRunner `json:"testRunner"`
	URL          string     `json:"url"`
	Timestamp    string     `json:"timestamp"`
	Violations   []RawRule  `json:"violations"`
	Passes       []RawRule  `json:"passes,omitempty"`
	Incomplete   []RawRule  `json:"incomplete,omitempty"`
	Inapplicable []RawRule  `json:"inapplicable,omitempty"`
}

// TestEngine names the engine that produced a result.
type TestEngine struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// TestRunner names the runner that drove the engine.
type TestRunner struct {
	Name string `json:"name"`
}

// RawRule is one rule outcome with the nodes it applied to.
type RawRule struct {
	ID          string    `json:"id"`
	Impact      *string   `json:"impact"`
	Tags        []string  `json:"tags"`
	Description string    `json:"description"`
	Help        string    `json:"help"`
	HelpURL     string    `json:"helpUrl"`
	Nodes       []RawNode `json:"nodes"`
}

// RawNode is a single DOM node a rule reported on.
type RawNode struct {
	HTML           string     `json:"html"`
	Target         []any      `json:"target"`
	Impact         *string    `json:"impact"`
	Any            []RawCheck `json:"any"`
	All            []RawCheck `json:"all"`
	None           []RawCheck `json:"none"`
	FailureSummary string     `json:"failureSummary,omitempty"`
}

// RawCheck is an individual check that contributed to a node result.
type RawCheck struct {
	ID      string `json:"id"`
	Impact  string `json:"impact"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func impact(level string) *string {
	return &level
}
