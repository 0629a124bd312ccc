// Package report turns raw auditor output into check results.
package report

import (
	"fmt"

	"github.com/conneroisu/templaudit/internal/accessibility"
	"github.com/conneroisu/templaudit/internal/types"
)

// Summary sentences.
const (
	PassSummary    = "No accessibility violations found. All checks passed."
	failureSummary = "Found %d accessibility violation(s). Review the violations list for details and remediation guidance."
)

// Impact is the severity an engine assigns to a violation.
type Impact string

// Impact levels, least severe first.
const (
	ImpactMinor    Impact = accessibility.ImpactMinor
	ImpactModerate Impact = accessibility.ImpactModerate
	ImpactSerious  Impact = accessibility.ImpactSerious
	ImpactCritical Impact = accessibility.ImpactCritical
)

// Rank orders impacts from 1 (minor) to 4 (critical). Unknown impacts rank 0.
func (i Impact) Rank() int {
	switch i {
	case ImpactMinor:
		return 1
	case ImpactModerate:
		return 2
	case ImpactSerious:
		return 3
	case ImpactCritical:
		return 4
	default:
		return 0
	}
}

// Node is one offending DOM node of a violation.
type Node struct {
	HTML           string `json:"html"`
	FailureSummary string `json:"failureSummary"`
}

// Violation is a failed rule and the nodes it failed on.
type Violation struct {
	ID          string  `json:"id"`
	Impact      *Impact `json:"impact"`
	Description string  `json:"description"`
	Help        string  `json:"help"`
	HelpURL     string  `json:"helpUrl"`
	Nodes       []Node  `json:"nodes"`
}

// CheckResult is the outcome of one successful check.
type CheckResult struct {
	File            string      `json:"file"`
	TotalViolations int         `json:"totalViolations"`
	Violations      []Violation `json:"violations"`
	MissingProps    []string    `json:"missingProps,omitempty"`
	Summary         string      `json:"summary"`
}

// Assemble builds the check result for file. Violations keep engine order
// and carry only the reported fields. Required props absent from props are
// listed in declaration order.
func Assemble(file string, raw *accessibility.RawResults, contract types.Contract, props map[string]any) *CheckResult {
	result := &CheckResult{
		File:       file,
		Violations: []Violation{},
	}

	if raw != nil {
		for _, rv := range raw.Violations {
			result.Violations = append(result.Violations, convert(rv))
		}
	}

	result.TotalViolations = len(result.Violations)
	result.MissingProps = contract.Missing(props)
	result.Summary = Summarize(result.TotalViolations)

	return result
}

// Summarize returns the summary sentence for a violation count.
func Summarize(violations int) string {
	if violations == 0 {
		return PassSummary
	}
	return fmt.Sprintf(failureSummary, violations)
}

func convert(rv accessibility.RawRule) Violation {
	v := Violation{
		ID:          rv.ID,
		Description: rv.Description,
		Help:        rv.Help,
		HelpURL:     rv.HelpURL,
		Nodes:       make([]Node, 0, len(rv.Nodes)),
	}
	if rv.Impact != nil {
		level := Impact(*rv.Impact)
		v.Impact = &level
	}
	for _, n := range rv.Nodes {
		v.Nodes = append(v.Nodes, Node{HTML: n.HTML, FailureSummary: n.FailureSummary})
	}
	return v
}
