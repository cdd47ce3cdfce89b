package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/bookgoat/internal/config"
	"github.com/IshaanNene/bookgoat/internal/engine"
	"github.com/IshaanNene/bookgoat/internal/fetcher"
	"github.com/IshaanNene/bookgoat/internal/observability"
)

// stageFunc runs one or both stages on a wired engine.
type stageFunc func(ctx context.Context, eng *engine.Engine) ([]*engine.Report, error)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Resolve ISBNs to URLs, then extract book details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(cmd, "run", func(ctx context.Context, eng *engine.Engine) ([]*engine.Report, error) {
				return eng.Run(ctx)
			})
		},
	}
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the ISBN list to product URLs (stage A only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(cmd, "resolve", single((*engine.Engine).RunResolve))
		},
	}
}

func detailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "details",
		Short: "Extract book details from the URL dataset (stage B only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(cmd, "details", single((*engine.Engine).RunDetails))
		},
	}
}

func single(fn func(*engine.Engine, context.Context) (*engine.Report, error)) stageFunc {
	return func(ctx context.Context, eng *engine.Engine) ([]*engine.Report, error) {
		r, err := fn(eng, ctx)
		if err != nil {
			return nil, err
		}
		return []*engine.Report{r}, nil
	}
}

// runStages wires the app, runs the stages under a signal-aware context
// and prints a summary with the total wall-clock time.
func runStages(cmd *cobra.Command, name string, run stageFunc) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info("starting",
		"command", name,
		"batch_size", a.cfg.Engine.BatchSize,
		"delay", a.cfg.Engine.InterBatchDelay,
		"headless", a.cfg.Browser.Headless,
		"fetcher", a.cfg.Fetcher.Type,
	)

	start := time.Now()
	reports, err := run(ctx, a.engine)
	elapsed := time.Since(start)

	for _, r := range reports {
		printReport(r)
	}
	if err != nil {
		if ctx.Err() != nil {
			a.logger.Warn("interrupted", "elapsed", elapsed)
		}
		return err
	}

	a.logger.Info("finished", "command", name, "elapsed", elapsed)
	fmt.Printf("\nCompleted in %s (run %s)\n", elapsed.Round(time.Millisecond), a.runID)
	return nil
}

func printReport(r *engine.Report) {
	fmt.Printf("\n%s stage complete in %s\n", r.Stage, r.Elapsed.Round(time.Millisecond))
	fmt.Printf("   Input:     %d read, %d skipped\n", r.Read, r.Skipped)
	fmt.Printf("   Items:     %d processed, %d succeeded, %d failed\n", r.Items, r.Succeeded, r.Failed)
	fmt.Printf("   Exported:  %d records\n", r.Exported)
	fmt.Printf("   Output:    %s\n", r.Output)
}

// probeCmd checks the HTTP status of a URL.
func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <url>",
		Short: "Print the HTTP status code returned by a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateURL(args[0]); err != nil {
				return fmt.Errorf("invalid URL %q: %w", args[0], err)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, closer, err := observability.NewLogger(cfg.Logging, verbose)
			if err != nil {
				return err
			}
			defer closer.Close()

			f, err := fetcher.NewHTTPFetcher(cfg, fetcher.NewProxyManager(&cfg.Proxy, logger), nil, logger)
			if err != nil {
				return err
			}
			defer f.Close()

			code, err := f.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%d %s\n", code, httpStatusText(code))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bookgoat %s\n", config.Version)
		},
	}
}

// configCmd prints the effective configuration after file, env and flags.
func configCmd() *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if asYAML {
				return writeConfigYAML(os.Stdout, cfg)
			}
			printConfig(os.Stdout, cfg)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print as a YAML config file")
	return cmd
}
