package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/interpreter"
	"mercator-hq/callisto/pkg/policy"
	"mercator-hq/callisto/pkg/scheduler"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/telemetry/tracing"
)

// shutdownTimeout bounds how long run waits for in-flight requests.
const shutdownTimeout = 10 * time.Second

var runFlags struct {
	requests string
	section  string
	format   string
	progress bool
	wait     bool
	logLevel string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run requests through the policy",
	Long: `Load the configuration, dictionary, modules and policy, then run every
request document in the requests file through its section and print the
outcomes.

The requests file is a YAML stream; use "-" to read it from stdin. With
--wait the process keeps running after the batch: the metrics endpoint
stays up, the policy is reloaded on change (policy.watch) or on SIGHUP, and
SIGINT or SIGTERM stops it.

Examples:
  # Run a batch with the default config
  callisto run --requests requests.yaml

  # Default section for documents without one, JSON output
  callisto run --requests - --section accounting --format json < batch.yaml

  # Keep serving metrics and reloading the policy
  callisto run --config /etc/callisto/callisto.yaml --requests warmup.yaml --wait`,
	RunE: runRequests,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.requests, "requests", "r", "", "YAML request file (\"-\" for stdin)")
	runCmd.Flags().StringVarP(&runFlags.section, "section", "s", "", "section for documents that name none")
	runCmd.Flags().StringVar(&runFlags.format, "format", "text", "output format: text, json, csv")
	runCmd.Flags().BoolVar(&runFlags.progress, "progress", false, "report progress on stderr")
	runCmd.Flags().BoolVar(&runFlags.wait, "wait", false, "keep running after the batch until signalled")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// runOptions are the inputs of a run, separated from flags for tests.
type runOptions struct {
	requests io.Reader
	section  string
	format   cli.OutputFormat
	progress cli.ProgressReporter
	wait     bool
	stdout   io.Writer
	stderr   io.Writer
	reload   <-chan os.Signal
}

func runRequests(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(runFlags.format)
	if err != nil {
		return cli.NewConfigError("--format", err.Error())
	}

	cfg, err := loadConfig(cfgFile, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	opts := runOptions{
		section: runFlags.section,
		format:  format,
		wait:    runFlags.wait,
		stdout:  cmd.OutOrStdout(),
		stderr:  cmd.ErrOrStderr(),
	}

	switch runFlags.requests {
	case "":
		if !runFlags.wait {
			return cli.NewConfigError("--requests", "a requests file is required unless --wait is set")
		}
	case "-":
		opts.requests = cmd.InOrStdin()
	default:
		f, err := os.Open(runFlags.requests)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer f.Close()
		opts.requests = f
	}
	if runFlags.progress {
		opts.progress = cli.NewProgressReporter(opts.stderr)
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()
	reload, stopReload := cli.ReloadSignals()
	defer stopReload()
	opts.reload = reload

	return execute(ctx, cfg, opts)
}

// execute wires the runtime together and runs one batch.
func execute(ctx context.Context, cfg *config.Config, opts runOptions) error {
	logger, err := newLogger(&cfg.Telemetry.Logging, opts.stderr, verbose)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(sctx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	if cfg.Telemetry.Metrics.Enabled {
		addr, err := collector.Serve(ctx, logger)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		logger.Info("metrics endpoint listening", "address", addr.String(), "path", cfg.Telemetry.Metrics.Path)
	}

	env, err := newPolicyEnv(cfg, logger)
	if err != nil {
		return err
	}
	defer env.close(logger)
	if err := env.startModules(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	manager, err := policy.NewManager(&cfg.Policy, env.compiler,
		policy.WithLogger(logger),
		policy.WithTracer(tracer),
		policy.WithReloadHook(collector.RecordPolicyReload),
	)
	if err != nil {
		return cli.NewConfigError("policy", err.Error())
	}
	if err := manager.Load(ctx); err != nil {
		return err
	}
	if cfg.Policy.Watch {
		go func() {
			if err := manager.Watch(ctx); err != nil {
				logger.Error("policy watcher stopped", "error", err)
			}
		}()
	}

	interp, err := interpreter.New(
		interpreter.Config{MaxStackDepth: cfg.Interpreter.MaxStackDepth},
		interpreter.WithLogger(logger),
		interpreter.WithObserver(collector.Observer()),
	)
	if err != nil {
		return cli.NewConfigError("interpreter", err.Error())
	}

	sched, err := scheduler.New(interp, manager, &cfg.Scheduler,
		scheduler.WithLogger(logger),
		scheduler.WithTracer(tracer),
		scheduler.WithMetrics(collector),
	)
	if err != nil {
		return cli.NewConfigError("scheduler", err.Error())
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sched.Close(sctx); err != nil {
			logger.Error("scheduler shutdown incomplete", "error", err)
		}
	}()

	var batchErr error
	if opts.requests != nil {
		batchErr = runBatch(ctx, env, sched, opts)
	}

	if opts.wait {
		waitForShutdown(ctx, manager, opts.reload, logger)
	}
	return batchErr
}

// runBatch submits every request document, then prints the outcomes in
// document order.
func runBatch(ctx context.Context, env *policyEnv, sched *scheduler.Scheduler, opts runOptions) error {
	docs, err := cli.ReadRequests(opts.requests, opts.section)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	if opts.progress != nil {
		opts.progress.Start(int64(len(docs)))
	}

	outs := make([]<-chan scheduler.Outcome, len(docs))
	table := make(outcomeTable, len(docs))
	for i := range docs {
		doc := &docs[i]
		lists, err := doc.Lists(env.dict)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("request %d: %w", i+1, err))
		}
		req := scheduler.NewRequest(lists)
		if doc.ID != "" {
			req.ID = doc.ID
		}

		rctx := tracing.ExtractFromMap(ctx, doc.Carrier())
		out, err := sched.Submit(rctx, doc.Section, req)
		if err != nil {
			// Recorded like any failed request so the batch keeps going.
			table[i] = outcomeRecord{ID: req.ID, Section: doc.Section, Rcode: interpreter.RcodeFail.String(), Error: err.Error()}
			if opts.progress != nil {
				opts.progress.Error(err)
				opts.progress.Increment()
			}
			continue
		}
		outs[i] = out
	}

	for i, out := range outs {
		if out == nil {
			continue
		}
		o := <-out
		table[i] = newOutcomeRecord(o)
		if opts.progress != nil {
			if o.Err != nil {
				opts.progress.Error(fmt.Errorf("%s: %w", o.RequestID, o.Err))
			}
			opts.progress.Increment()
		}
	}
	if opts.progress != nil {
		opts.progress.Finish()
	}

	if err := cli.NewFormatter(opts.format).FormatTo(opts.stdout, table); err != nil {
		return err
	}

	if n := table.failed(); n > 0 {
		return cli.NewCommandError("run", fmt.Errorf("%d of %d requests failed", n, len(table)))
	}
	return nil
}

// waitForShutdown blocks until ctx is done, reloading the policy on every
// reload signal.
func waitForShutdown(ctx context.Context, manager *policy.Manager, reload <-chan os.Signal, logger *slog.Logger) {
	logger.Info("waiting for shutdown signal")
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case sig := <-reload:
			logger.Info("reloading policy", "signal", sig.String())
			// Load logs and counts failures itself.
			_ = manager.Load(ctx)
		}
	}
}
