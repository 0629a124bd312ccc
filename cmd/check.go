package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/templaudit/internal/checker"
	"github.com/conneroisu/templaudit/internal/config"
	"github.com/conneroisu/templaudit/internal/report"
)

var checkCmd = &cobra.Command{
	Use:     "check <path>...",
	Aliases: []string{"c"},
	Short:   "Render components and audit them for accessibility",
	Long: `Render each component in isolation, build a document around its markup
and audit the document. One result is reported per path.

Examples:
  templaudit check components/card.templ
  templaudit check components/card.templ --props '{"title":"Hello"}'
  templaudit check components/card.templ --props @card.json --component CardHeader
  templaudit check components/*.templ --parallel 8 --output console`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

var (
	checkComponent ComponentFlags
	checkOutput    OutputFlags
	checkParallel  int
)

func init() {
	rootCmd.AddCommand(checkCmd)

	addComponentFlags(checkCmd, &checkComponent)
	addOutputFlags(checkCmd, &checkOutput)
	checkCmd.Flags().IntVarP(&checkParallel, "parallel", "p", config.DefaultParallel, "Number of components checked at once")
}

var checkBindings = map[string]string{
	"output":   "check.output",
	"parallel": "check.parallel",
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, checkBindings)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	props, err := checkComponent.ParseProps()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	requests := make([]checker.Request, len(args))
	for i, path := range args {
		requests[i] = checker.Request{Path: path, Props: props, Component: checkComponent.Component}
	}

	responses := checkAll(ctx, checker.FromConfig(cfg, logger), requests, cfg.Check.Parallel)

	if err := writeResponses(cmd.OutOrStdout(), cfg.Check.Output, requests, responses); err != nil {
		return err
	}
	return exitStatus(responses, checkOutput.FailOnViolation)
}

// checkAll runs requests with at most parallel checks in flight. Responses
// are in request order.
func checkAll(ctx context.Context, c *checker.Checker, requests []checker.Request, parallel int) []checker.Response {
	responses := make([]checker.Response, len(requests))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	for i, req := range requests {
		g.Go(func() error {
			responses[i] = c.Handle(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	return responses
}

func writeResponses(w io.Writer, format string, requests []checker.Request, responses []checker.Response) error {
	if format == config.OutputConsole {
		for i, resp := range responses {
			if len(responses) > 1 {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "==> %s\n", requests[i].Path)
			}
			if err := writeConsoleResponse(w, resp); err != nil {
				return err
			}
		}
		return nil
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if len(responses) == 1 {
		return encoder.Encode(responses[0])
	}
	return encoder.Encode(responses)
}

func writeConsoleResponse(w io.Writer, resp checker.Response) error {
	if !resp.IsError {
		return report.WriteConsole(w, resp.Result)
	}
	_, err := fmt.Fprintf(w, "Error (%s) %s\nHint: %s\n", resp.Error.Kind, resp.Error.Message, resp.Error.Hint)
	return err
}

// exitStatus returns an error when any check failed, or when failOnViolation
// is set and any component has violations.
func exitStatus(responses []checker.Response, failOnViolation bool) error {
	var failed, violating int
	for _, resp := range responses {
		switch {
		case resp.IsError:
			failed++
		case resp.Result.TotalViolations > 0:
			violating++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(responses))
	}
	if failOnViolation && violating > 0 {
		return fmt.Errorf("%d component(s) have accessibility violations", violating)
	}
	return nil
}
