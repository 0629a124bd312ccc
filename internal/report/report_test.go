package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/templaudit/internal/accessibility"
	"github.com/conneroisu/templaudit/internal/types"
)

func strPtr(s string) *string { return &s }

func rawWith(rules ...accessibility.RawRule) *accessibility.RawResults {
	return &accessibility.RawResults{
		TestEngine: accessibility.TestEngine{Name: "axe-core", Version: "4.10.0"},
		Violations: rules,
	}
}

func TestAssembleNoViolations(t *testing.T) {
	result := Assemble("ui/card.templ", rawWith(), types.Contract{}, nil)

	assert.Equal(t, "ui/card.templ", result.File)
	assert.Equal(t, 0, result.TotalViolations)
	assert.Empty(t, result.Violations)
	assert.Nil(t, result.MissingProps)
	assert.Equal(t, "No accessibility violations found. All checks passed.", result.Summary)
}

func TestAssembleCopiesReportedFields(t *testing.T) {
	raw := rawWith(
		accessibility.RawRule{
			ID:          "image-alt",
			Impact:      strPtr("critical"),
			Tags:        []string{"wcag2a"},
			Description: "Ensures <img> elements have alternate text",
			Help:        "Images must have alternate text",
			HelpURL:     "https://example.com/image-alt",
			Nodes: []accessibility.RawNode{{
				HTML:           `<img src="x.jpg">`,
				Target:         []any{"img"},
				Any:            []accessibility.RawCheck{{ID: "has-alt"}},
				FailureSummary: "Fix any of the following:\n  Element does not have an alt attribute",
			}},
		},
		accessibility.RawRule{ID: "region", Impact: nil, Nodes: []accessibility.RawNode{{HTML: "<p>x</p>"}}},
	)

	result := Assemble("card.templ", raw, types.Contract{}, nil)

	require.Equal(t, 2, result.TotalViolations)
	first := result.Violations[0]
	assert.Equal(t, "image-alt", first.ID)
	require.NotNil(t, first.Impact)
	assert.Equal(t, ImpactCritical, *first.Impact)
	assert.Equal(t, "Images must have alternate text", first.Help)
	assert.Equal(t, []Node{{
		HTML:           `<img src="x.jpg">`,
		FailureSummary: "Fix any of the following:\n  Element does not have an alt attribute",
	}}, first.Nodes)
	assert.Equal(t, "region", result.Violations[1].ID)
	assert.Nil(t, result.Violations[1].Impact)
	assert.Equal(t,
		"Found 2 accessibility violation(s). Review the violations list for details and remediation guidance.",
		result.Summary)

	encoded, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "testEngine")
	assert.NotContains(t, string(encoded), "target")
	assert.NotContains(t, string(encoded), "tags")
	assert.NotContains(t, string(encoded), "missingProps")
	assert.Contains(t, string(encoded), `"impact":null`)
}

func TestAssembleMissingProps(t *testing.T) {
	contract := types.Contract{Props: []types.PropDecl{
		{Name: "a", Type: "string", Required: true},
		{Name: "b", Type: "int", Required: true},
		{Name: "c", Type: "*Item", Required: false},
	}}

	result := Assemble("f.templ", rawWith(), contract, map[string]any{"a": 1})
	assert.Equal(t, []string{"b"}, result.MissingProps)

	result = Assemble("f.templ", rawWith(), contract, map[string]any{"a": 1, "b": 2})
	assert.Nil(t, result.MissingProps)
	encoded, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "missingProps")

	result = Assemble("f.templ", rawWith(), contract, map[string]any{"A": 1, "b": 2})
	assert.Equal(t, []string{"a"}, result.MissingProps)
}

func TestAssembleNilRaw(t *testing.T) {
	result := Assemble("f.go", nil, types.Contract{}, nil)
	assert.Equal(t, 0, result.TotalViolations)
	assert.NotNil(t, result.Violations)
}

func TestImpactRank(t *testing.T) {
	assert.Less(t, ImpactMinor.Rank(), ImpactModerate.Rank())
	assert.Less(t, ImpactModerate.Rank(), ImpactSerious.Rank())
	assert.Less(t, ImpactSerious.Rank(), ImpactCritical.Rank())
	assert.Equal(t, 0, Impact("unknown").Rank())
}

func TestWriteConsole(t *testing.T) {
	raw := rawWith(accessibility.RawRule{
		ID:      "image-alt",
		Impact:  strPtr("critical"),
		Help:    "Images must have alternate text",
		HelpURL: "https://example.com/image-alt",
		Nodes: []accessibility.RawNode{{
			HTML:           `<img src="x.jpg">`,
			FailureSummary: "Fix any of the following:\n  Element does not have an alt attribute",
		}},
	})
	contract := types.Contract{Props: []types.PropDecl{{Name: "title", Required: true}}}
	result := Assemble("card.templ", raw, contract, nil)

	var buf bytes.Buffer
	require.NoError(t, WriteConsole(&buf, result))
	out := buf.String()

	assert.Contains(t, out, "card.templ\n")
	assert.Contains(t, out, "1. [Critical] image-alt: Images must have alternate text")
	assert.Contains(t, out, `- <img src="x.jpg">`)
	assert.Contains(t, out, "Element does not have an alt attribute")
	assert.Contains(t, out, "Missing props: title")
	assert.Contains(t, out, "Found 1 accessibility violation(s).")
}
