package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fluxfuzzer/statefuzz/internal/analyzer"
	"github.com/fluxfuzzer/statefuzz/internal/config"
	"github.com/fluxfuzzer/statefuzz/internal/engine"
	"github.com/fluxfuzzer/statefuzz/internal/metrics"
	"github.com/fluxfuzzer/statefuzz/internal/parallel"
	"github.com/fluxfuzzer/statefuzz/internal/protocol"
	"github.com/fluxfuzzer/statefuzz/internal/report"
	"github.com/fluxfuzzer/statefuzz/internal/transport"
	"github.com/fluxfuzzer/statefuzz/internal/ui"
	"github.com/fluxfuzzer/statefuzz/internal/web"
)

// session bundles one protocol instance with its own connection
type session struct {
	proto *protocol.Protocol
	conn  *transport.Conn
}

func newSession(cfg *config.Config, def *protocol.Definition, logger *slog.Logger, recorder *metrics.Recorder) (*session, error) {
	p, err := protocol.Build(def, cfg.Variables(),
		protocol.WithLogger(logger),
		protocol.WithSeed(cfg.Engine.Seed),
		protocol.WithCaptureObserver(recorder.OnCallback),
	)
	if err != nil {
		return nil, err
	}

	conn, err := transport.NewConn(&transport.Options{
		Host:     cfg.Target.Host,
		Port:     cfg.Target.Port,
		Proto:    cfg.Target.Proto,
		Timeout:  cfg.Engine.Timeout,
		RecvSize: cfg.Engine.RecvSize,
		RPS:      cfg.Engine.RPS,
	})
	if err != nil {
		return nil, err
	}
	return &session{proto: p, conn: conn}, nil
}

func runFuzz(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var logw io.Writer = os.Stderr
	if cfg.Output.TUI || cfg.Output.Quiet {
		logw = io.Discard
	}
	logger := newLogger(logw, cfg.Output.Verbose)
	out := cmd.OutOrStdout()

	def, err := loadDefinition(cfg.Protocol.Definition)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	primary, err := newSession(cfg, def, logger, recorder)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats := ui.NewStats()
	rep := report.NewReport("statefuzz run", cfg.Address())
	rep.Protocol = def.Name

	var collectorOpts []report.CollectorOption
	if cfg.Analyzer.Enabled {
		collectorOpts = append(collectorOpts, report.WithAnalyzer(analyzer.New(&analyzer.Config{
			MinSamples:        cfg.Analyzer.BaselineSamples,
			LengthMultiplier:  cfg.Analyzer.LengthMultiplier,
			DistanceThreshold: cfg.Analyzer.DistanceThreshold,
		})))
	}
	collector := report.NewCollector(rep, collectorOpts...)

	engineOpts := []engine.Option{
		engine.WithIndexWindow(cfg.Engine.IndexStart, cfg.Engine.IndexEnd),
		engine.WithSleep(cfg.Engine.Sleep),
		engine.WithObserver(recorder),
		engine.WithObserver(collector),
		engine.WithObserver(stats),
	}

	planner := engine.New(primary.proto.Graph, primary.proto.Session, primary.conn)
	plan, err := buildPlan(planner, cfg.Protocol.Method)
	if err != nil {
		return err
	}
	for _, entry := range plan {
		rep.Paths = append(rep.Paths, entry.Name)
	}
	stats.SetPlanned(int64(windowCases(plan, cfg.Engine.IndexStart, cfg.Engine.IndexEnd)))

	if dryRun {
		fmt.Fprintln(out, ui.RenderPlan(plan))
		return nil
	}

	if cfg.Metrics.Addr != "" {
		srv := web.NewServer(stats,
			web.WithLogger(logger),
			web.WithFindings(collector),
			web.WithCancel(cancel),
			web.WithTarget(cfg.Address()),
		)
		srv.SetPlan(plan)
		engineOpts = append(engineOpts, engine.WithObserver(srv))
		go func() {
			if err := srv.Start(cfg.Metrics.Addr); err != nil {
				logger.Error("status server stopped", slog.String("error", err.Error()))
			}
		}()
		defer srv.Stop()
		defer srv.SetRunning(false)
	}

	fuzz := func(ctx context.Context) (engine.Summary, error) {
		if cfg.Engine.Workers > 1 {
			factory := func() (*parallel.Instance, error) {
				s, err := newSession(cfg, def, logger, recorder)
				if err != nil {
					return nil, err
				}
				return &parallel.Instance{Graph: s.proto.Graph, Session: s.proto.Session, Transport: s.conn}, nil
			}
			runner := parallel.NewRunner(cfg.Engine.Workers, factory,
				parallel.WithLogger(logger),
				parallel.WithEngineOptions(engineOpts...),
			)
			return runner.Run(ctx, plan)
		}

		opts := append([]engine.Option{engine.WithLogger(logger)}, engineOpts...)
		e := engine.New(primary.proto.Graph, primary.proto.Session, primary.conn, opts...)
		for _, entry := range plan {
			if e.Done() {
				break
			}
			if err := e.FuzzNodes(ctx, entry.Nodes); err != nil {
				return e.Summary(), fmt.Errorf("path %s: %w", entry.Name, err)
			}
		}
		return e.Summary(), nil
	}

	if !cfg.Output.Quiet && !cfg.Output.TUI {
		fmt.Fprintln(out, ui.GetBannerStyled())
		logger.Info("starting run",
			slog.String("target", cfg.Address()),
			slog.String("protocol", def.Name),
			slog.Int("paths", len(plan)),
			slog.Int("workers", cfg.Engine.Workers),
		)
	}

	var sum engine.Summary
	var runErr error
	if cfg.Output.TUI {
		prog := ui.NewProgram(ui.NewDashboard(stats, cfg.Address(), cancel))
		engineOpts = append(engineOpts, engine.WithObserver(ui.ProgramObserver{Program: prog}))

		done := make(chan struct{})
		go func() {
			defer close(done)
			sum, runErr = fuzz(ctx)
			prog.Send(ui.DoneMsg{Err: runErr})
		}()
		if _, err := prog.Run(); err != nil {
			cancel()
			<-done
			return fmt.Errorf("dashboard: %w", err)
		}
		<-done
	} else {
		sum, runErr = fuzz(ctx)
	}

	final := collector.Report()
	path, err := report.NewManager(cfg.Output.Dir).Generate(final, cfg.Output.Format)
	if err != nil {
		return err
	}

	if cfg.Output.Quiet {
		fmt.Fprintln(out, path)
	} else {
		fmt.Fprintln(out, ui.RenderSummary(sum, len(final.Findings)))
		fmt.Fprintf(out, "report written to %s\n", path)
	}

	if errors.Is(runErr, context.Canceled) {
		logger.Warn("run interrupted", slog.Int("executed", sum.Executed))
		return nil
	}
	return runErr
}

// buildPlan returns the single named path, or every path the engine would fuzz
func buildPlan(e *engine.Engine, method string) ([]engine.PlanEntry, error) {
	if method == "" {
		return e.Plan()
	}
	entry, err := e.PlanPath(method)
	if err != nil {
		return nil, err
	}
	return []engine.PlanEntry{entry}, nil
}

// windowCases counts the planned cases inside the index window
func windowCases(plan []engine.PlanEntry, start, end int) int {
	total := 0
	for _, e := range plan {
		total += e.Cases
	}
	if end > 0 && end < total {
		total = end
	}
	if start > 1 {
		total -= start - 1
	}
	if total < 0 {
		return 0
	}
	return total
}
