package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/templaudit/internal/config"
)

// ComponentFlags selects a component and the props it is rendered with.
type ComponentFlags struct {
	Props     string
	PropsFile string
	Component string
}

// OutputFlags controls how results are reported.
type OutputFlags struct {
	Output          string
	FailOnViolation bool
}

func addComponentFlags(cmd *cobra.Command, flags *ComponentFlags) {
	cmd.Flags().StringVar(&flags.Props, "props", "", "Component properties (JSON or @file.json)")
	cmd.Flags().StringVarP(&flags.PropsFile, "props-file", "f", "", "Properties file (JSON)")
	cmd.Flags().StringVarP(&flags.Component, "component", "c", "", "Component to check (default: first exported component in the file)")
}

func addOutputFlags(cmd *cobra.Command, flags *OutputFlags) {
	cmd.Flags().StringVarP(&flags.Output, "output", "o", config.OutputJSON, "Output format (json|console)")
	cmd.Flags().BoolVar(&flags.FailOnViolation, "fail-on-violation", false, "Exit non-zero when any component has violations")
}

// ParseProps parses component properties with support for file references
func (f *ComponentFlags) ParseProps() (map[string]any, error) {
	if f.Props != "" && f.PropsFile != "" {
		return nil, fmt.Errorf("cannot specify both --props and --props-file")
	}

	switch {
	case f.PropsFile != "":
		return readProps(f.PropsFile)
	case strings.HasPrefix(f.Props, "@"):
		return readProps(strings.TrimPrefix(f.Props, "@"))
	case f.Props != "":
		var props map[string]any
		if err := json.Unmarshal([]byte(f.Props), &props); err != nil {
			return nil, fmt.Errorf("invalid JSON in props: %w", err)
		}
		return props, nil
	default:
		return map[string]any{}, nil
	}
}

func readProps(filename string) (map[string]any, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read props file %s: %w", filename, err)
	}

	var props map[string]any
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("invalid JSON in props file %s: %w", filename, err)
	}
	if props == nil {
		props = map[string]any{}
	}
	return props, nil
}
