// statefuzz - stateful protocol fuzzer
// Fuzzes one field of one request at a time while every other field of a
// multi-step session renders from live session state.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluxfuzzer/statefuzz/internal/config"
	"github.com/fluxfuzzer/statefuzz/internal/protocol"
	"github.com/fluxfuzzer/statefuzz/internal/report"
)

var version = "0.1.0-dev"

// CLI flags
var (
	configFile  string
	definition  string
	host        string
	port        int
	proto       string
	mediaPath   string
	method      string
	indexStart  int
	indexEnd    int
	rps         float64
	timeout     time.Duration
	sleep       time.Duration
	seed        int64
	workers     int
	outputDir   string
	format      string
	metricsAddr string
	verbose     bool
	quiet       bool
	tui         bool
	dryRun      bool
	noAnalyzer  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "statefuzz",
		Short: "statefuzz - stateful protocol fuzzer",
		Long: `statefuzz fuzzes stateful request/response protocols such as RTSP.

Every test case replays a path of requests through the session graph with
canonical values, threading sequence numbers and session tokens from each
response into the next request, then sends the path's last request with
exactly one field mutated.`,
		SilenceUsage: true,
		RunE:         runFuzz,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "Path to config file (YAML)")
	pf.StringVarP(&definition, "definition", "d", "rtsp", "Protocol definition: builtin name or YAML file")
	pf.StringVar(&host, "host", "127.0.0.1", "Target host")
	pf.IntVar(&port, "port", 554, "Target port")
	pf.StringVar(&proto, "proto", "tcp", "Transport protocol (tcp or udp)")
	pf.StringVar(&mediaPath, "path", "test.mp3", "Media path used in request lines")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	f := rootCmd.Flags()
	f.StringVarP(&method, "method", "m", "", "Named path to fuzz (see 'statefuzz list'); empty fuzzes every path")
	f.IntVar(&indexStart, "index-start", 0, "First test case index to run (1-based)")
	f.IntVar(&indexEnd, "index-end", 0, "Last test case index to run (0 = no limit)")
	f.Float64VarP(&rps, "rate", "r", 0, "Sends per second limit (0 = unlimited)")
	f.DurationVar(&timeout, "timeout", 5*time.Second, "Per-operation socket timeout")
	f.DurationVar(&sleep, "sleep", 0, "Pause between test cases")
	f.Int64Var(&seed, "seed", 1, "Seed for random payloads")
	f.IntVarP(&workers, "workers", "w", 1, "Paths fuzzed in parallel, each with its own session")
	f.StringVarP(&outputDir, "output", "o", "reports", "Report output directory")
	f.StringVarP(&format, "format", "f", "json", "Report format ("+strings.Join(report.NewManager("").Formats(), ", ")+")")
	f.StringVar(&metricsAddr, "metrics-addr", "", "Serve status API and /metrics on this address")
	f.BoolVarP(&quiet, "quiet", "q", false, "Print only the report path")
	f.BoolVar(&tui, "tui", false, "Show a live dashboard")
	f.BoolVar(&dryRun, "dry-run", false, "Print the test case plan without sending anything")
	f.BoolVar(&noAnalyzer, "no-analyzer", false, "Disable response deviation findings")

	rootCmd.AddCommand(newListCmd(), newRenderCmd(), &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "statefuzz version %s\n", version)
		},
	})

	return rootCmd
}

// loadConfig reads --config, then applies every flag the user set explicitly
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.LoadFile(configFile); err != nil {
			return nil, err
		}
	}

	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}

	if changed("definition") {
		cfg.Protocol.Definition = definition
	}
	if changed("host") {
		cfg.Target.Host = host
	}
	if changed("port") {
		cfg.Target.Port = port
	}
	if changed("proto") {
		cfg.Target.Proto = proto
	}
	if changed("path") {
		cfg.Target.Path = mediaPath
	}
	if changed("method") {
		cfg.Protocol.Method = method
	}
	if changed("index-start") {
		cfg.Engine.IndexStart = indexStart
	}
	if changed("index-end") {
		cfg.Engine.IndexEnd = indexEnd
	}
	if changed("rate") {
		cfg.Engine.RPS = rps
	}
	if changed("timeout") {
		cfg.Engine.Timeout = timeout
	}
	if changed("sleep") {
		cfg.Engine.Sleep = sleep
	}
	if changed("seed") {
		cfg.Engine.Seed = seed
	}
	if changed("workers") {
		cfg.Engine.Workers = workers
	}
	if changed("output") {
		cfg.Output.Dir = outputDir
	}
	if changed("format") {
		cfg.Output.Format = format
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}
	if changed("verbose") {
		cfg.Output.Verbose = verbose
	}
	if changed("quiet") {
		cfg.Output.Quiet = quiet
	}
	if changed("tui") {
		cfg.Output.TUI = tui
	}
	if noAnalyzer {
		cfg.Analyzer.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDefinition(name string) (*protocol.Definition, error) {
	if _, err := os.Stat(name); err == nil {
		return protocol.Load(name)
	}
	return protocol.Builtin(name)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
