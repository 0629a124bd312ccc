package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var title = cases.Title(language.English)

// WriteConsole writes a human readable rendering of result to w.
func WriteConsole(w io.Writer, result *CheckResult) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n", result.File)
	for i, v := range result.Violations {
		impact := "Unknown"
		if v.Impact != nil {
			impact = title.String(string(*v.Impact))
		}
		fmt.Fprintf(&sb, "  %d. [%s] %s: %s\n", i+1, impact, v.ID, v.Help)
		fmt.Fprintf(&sb, "     %s\n", v.HelpURL)
		for _, n := range v.Nodes {
			fmt.Fprintf(&sb, "     - %s\n", n.HTML)
			for _, line := range strings.Split(n.FailureSummary, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					fmt.Fprintf(&sb, "         %s\n", line)
				}
			}
		}
	}
	if len(result.MissingProps) > 0 {
		fmt.Fprintf(&sb, "  Missing props: %s\n", strings.Join(result.MissingProps, ", "))
	}
	fmt.Fprintf(&sb, "  %s\n", result.Summary)

	_, err := io.WriteString(w, sb.String())
	return err
}
