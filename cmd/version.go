package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/templaudit/internal/accessibility"
	"github.com/conneroisu/templaudit/internal/version"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for templaudit, including the templ runtime
it renders with and the native auditor rules it ships.

Examples:
  templaudit version              # Show version
  templaudit version --short      # Show short version only
  templaudit version --detailed   # Show detailed version info
  templaudit version --format json # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()

	switch versionFormat {
	case "json":
		return outputVersionJSON(w)
	case "text":
		switch {
		case versionShort:
			_, err := fmt.Fprintln(w, version.GetShortVersion())
			return err
		case versionDetailed:
			return outputVersionDetailed(w)
		default:
			_, err := fmt.Fprintf(w, "templaudit %s\n", version.GetShortVersion())
			return err
		}
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}
}

func outputVersionDetailed(w io.Writer) error {
	fmt.Fprintln(w, version.GetDetailedVersion())

	rules := accessibility.NewNativeEngine(nil).Rules()
	fmt.Fprintf(w, "Native rules: %d\n", len(rules))

	buildType := "development"
	if version.IsRelease() {
		buildType = "release"
	}
	_, err := fmt.Fprintf(w, "Build type: %s\n", buildType)
	return err
}

func outputVersionJSON(w io.Writer) error {
	info := version.GetBuildInfo()

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		*version.BuildInfo
		IsRelease   bool     `json:"is_release"`
		NativeRules []string `json:"native_rules"`
	}{
		BuildInfo:   info,
		IsRelease:   version.IsRelease(),
		NativeRules: accessibility.NewNativeEngine(nil).Rules(),
	})
}
