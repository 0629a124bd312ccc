package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/templaudit/internal/checker"
	"github.com/conneroisu/templaudit/internal/logging"
	"github.com/conneroisu/templaudit/internal/registry"
	"github.com/conneroisu/templaudit/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch <path>...",
	Aliases: []string{"w"},
	Short:   "Re-check components whenever their sources change",
	Long: `Check each component once, then watch the directories holding them and
re-check a component when its file, or a sibling file declaring a component
it renders, changes.

Examples:
  templaudit watch components/card.templ
  templaudit watch components/card.templ components/nav.templ --output console`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

var (
	watchComponent ComponentFlags
	watchOutput    OutputFlags
	watchDebounce  time.Duration
)

func init() {
	rootCmd.AddCommand(watchCmd)

	addComponentFlags(watchCmd, &watchComponent)
	addOutputFlags(watchCmd, &watchOutput)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDelay, "Quiet period before re-checking after a change")
}

var watchBindings = map[string]string{
	"output": "check.output",
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, watchBindings)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	props, err := watchComponent.ParseProps()
	if err != nil {
		return err
	}

	c := checker.FromConfig(cfg, logger)

	// Targets are keyed by resolved path; requests keep the path as given.
	requests := make(map[string]checker.Request, len(args))
	targets := make([]string, 0, len(args))
	for _, path := range args {
		resolved, err := c.Loader().Resolve(path)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}
		if _, seen := requests[resolved]; seen {
			continue
		}
		requests[resolved] = checker.Request{Path: path, Props: props, Component: watchComponent.Component}
		targets = append(targets, resolved)
	}

	fileWatcher, err := watcher.NewFileWatcher(watchDebounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.SourceFilter)
	fileWatcher.AddFilter(watcher.NoHarnessFilter)

	recheck := func(ctx context.Context, paths []string) {
		batch := make([]checker.Request, 0, len(paths))
		for _, path := range paths {
			batch = append(batch, requests[path])
		}
		responses := checkAll(ctx, c, batch, cfg.Check.Parallel)
		if err := writeResponses(cmd.OutOrStdout(), cfg.Check.Output, batch, responses); err != nil {
			logger.Warn(ctx, err, "Failed to write results")
		}
		if err := exitStatus(responses, watchOutput.FailOnViolation); err != nil {
			logger.Info(ctx, "Checks reported problems", "detail", err.Error())
		}
	}

	fileWatcher.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		affected := watcher.Affected(c.Registry(), targets, events)
		logger.Debug(ctx, "Sources changed", "events", len(events), "affected", len(affected))
		if len(affected) > 0 {
			recheck(ctx, affected)
		}
		return nil
	})

	for _, target := range targets {
		if err := fileWatcher.AddPath(target); err != nil {
			return fmt.Errorf("failed to watch %s: %w", requests[target].Path, err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cacheEvents := c.Registry().Watch()
	defer c.Registry().UnWatch(cacheEvents)
	go logRegistryEvents(ctx, logger, cacheEvents)

	recheck(ctx, targets)

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	logger.Info(ctx, "Watching for changes", "targets", len(targets))

	<-ctx.Done()
	logger.Info(context.WithoutCancel(ctx), "Stopping file watcher")
	return nil
}

// logRegistryEvents reports module cache changes until events is closed.
func logRegistryEvents(ctx context.Context, logger logging.Logger, events <-chan registry.ModuleEvent) {
	for event := range events {
		if event.Type == registry.EventTypeDisplaced {
			logger.Info(ctx, "Module dropped from cache, rescanning on next use", "path", event.Path)
			continue
		}
		logger.Debug(ctx, "Module cache changed", "event", event.Type.String(), "path", event.Path)
	}
}
