package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/templaudit/internal/loader"
	"github.com/conneroisu/templaudit/internal/registry"
	"github.com/conneroisu/templaudit/internal/scanner"
	"github.com/conneroisu/templaudit/internal/types"
)

var listCmd = &cobra.Command{
	Use:     "list <path>...",
	Aliases: []string{"l"},
	Short:   "List the components a file declares and the props they take",
	Long: `List the components declared by each file with their props. Required
props are the ones a check reports as missing when they are not supplied.

Examples:
  templaudit list components/card.templ
  templaudit list components/*.templ --format json
  templaudit list components/card.templ -d     # Include rendered components`,
	Args: cobra.MinimumNArgs(1),
	RunE: runList,
}

var (
	listFormat   string
	listWithDeps bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "Output format (table|json|yaml)")
	listCmd.Flags().BoolVarP(&listWithDeps, "with-deps", "d", false, "Include components each component renders")
}

type listedComponent struct {
	Name         string           `json:"name" yaml:"name"`
	Package      string           `json:"package" yaml:"package"`
	File         string           `json:"file" yaml:"file"`
	Props        []types.PropDecl `json:"props" yaml:"props"`
	Dependencies []string         `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	l := loader.New(cfg.Check.BaseDir, registry.NewModuleRegistry(cfg.Cache.Size), nil, nil)
	s := scanner.NewComponentScanner()

	var components []listedComponent
	for _, path := range args {
		resolved, err := l.Resolve(path)
		if err != nil {
			return err
		}
		module, err := s.ScanFile(resolved)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", path, err)
		}
		for i := range module.Components {
			c := &module.Components[i]
			listed := listedComponent{
				Name:    c.Name,
				Package: c.Package,
				File:    path,
				Props:   types.ContractOf(c).Props,
			}
			if listWithDeps {
				listed.Dependencies = c.Dependencies
			}
			components = append(components, listed)
		}
	}

	w := cmd.OutOrStdout()
	switch strings.ToLower(listFormat) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(components)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(components)
	case "table":
		return outputTable(w, components)
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", listFormat)
	}
}

func outputTable(out io.Writer, components []listedComponent) error {
	if len(components) == 0 {
		_, err := fmt.Fprintln(out, "No components found.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	header := "NAME\tPACKAGE\tFILE\tPROPS"
	if listWithDeps {
		header += "\tDEPENDENCIES"
	}
	fmt.Fprintln(w, header)

	for _, c := range components {
		props := make([]string, 0, len(c.Props))
		for _, p := range c.Props {
			prop := fmt.Sprintf("%s:%s", p.Name, p.Type)
			if !p.Required {
				prop += "?"
			}
			props = append(props, prop)
		}

		row := fmt.Sprintf("%s\t%s\t%s\t%s", c.Name, c.Package, c.File, strings.Join(props, ", "))
		if listWithDeps {
			row += "\t" + strings.Join(c.Dependencies, ", ")
		}
		fmt.Fprintln(w, row)
	}

	fmt.Fprintf(w, "\nTotal: %d components\n", len(components))
	return w.Flush()
}
