// Package config handles configuration loading and management for statefuzz.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the global configuration for a run
type Config struct {
	Target   TargetConfig   `yaml:"target"`
	Engine   EngineConfig   `yaml:"engine"`
	Protocol ProtocolConfig `yaml:"protocol"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Output   OutputConfig   `yaml:"output"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// TargetConfig defines where test cases are sent
type TargetConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Proto string `yaml:"proto"` // tcp or udp
	Path  string `yaml:"path"`  // Media path substituted into request lines
}

// EngineConfig defines how test cases are run
type EngineConfig struct {
	IndexStart int           `yaml:"index_start"`
	IndexEnd   int           `yaml:"index_end"`
	RPS        float64       `yaml:"rps"`
	Timeout    time.Duration `yaml:"timeout"`
	RecvSize   int           `yaml:"recv_size"`
	Sleep      time.Duration `yaml:"sleep"`
	Seed       int64         `yaml:"seed"`
	Workers    int           `yaml:"workers"`
}

// ProtocolConfig selects the protocol definition and what to fuzz
type ProtocolConfig struct {
	Definition string            `yaml:"definition"` // Builtin name or YAML file
	Method     string            `yaml:"method"`     // Named path; empty fuzzes every path
	Variables  map[string]string `yaml:"variables"`
}

// AnalyzerConfig defines response deviation detection
type AnalyzerConfig struct {
	Enabled           bool    `yaml:"enabled"`
	BaselineSamples   int     `yaml:"baseline_samples"`
	LengthMultiplier  float64 `yaml:"length_multiplier"`
	DistanceThreshold int     `yaml:"distance_threshold"`
}

// OutputConfig defines the output configuration
type OutputConfig struct {
	Format  string `yaml:"format"` // json, markdown, md
	Dir     string `yaml:"dir"`
	Verbose bool   `yaml:"verbose"`
	TUI     bool   `yaml:"tui"`
	Quiet   bool   `yaml:"quiet"`
}

// MetricsConfig defines the status server
type MetricsConfig struct {
	Addr string `yaml:"addr"` // Empty disables the server
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			Host:  "127.0.0.1",
			Port:  554,
			Proto: "tcp",
			Path:  "test.mp3",
		},
		Engine: EngineConfig{
			Timeout:  5 * time.Second,
			RecvSize: 10000,
			Seed:     1,
			Workers:  1,
		},
		Protocol: ProtocolConfig{
			Definition: "rtsp",
		},
		Analyzer: AnalyzerConfig{
			Enabled:           true,
			BaselineSamples:   5,
			LengthMultiplier:  2.0,
			DistanceThreshold: 100,
		},
		Output: OutputConfig{
			Format: "json",
			Dir:    "reports",
		},
	}
}

// LoadFile reads a YAML file on top of the defaults. Unknown keys are errors.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	var errs []error

	if c.Target.Host == "" {
		errs = append(errs, errors.New("target.host is required"))
	}
	if c.Target.Port < 1 || c.Target.Port > 65535 {
		errs = append(errs, fmt.Errorf("target.port %d out of range", c.Target.Port))
	}
	if c.Target.Proto != "tcp" && c.Target.Proto != "udp" {
		errs = append(errs, fmt.Errorf("target.proto must be tcp or udp, got %q", c.Target.Proto))
	}
	if c.Engine.IndexStart < 0 || c.Engine.IndexEnd < 0 {
		errs = append(errs, errors.New("engine index window must not be negative"))
	}
	if c.Engine.IndexEnd > 0 && c.Engine.IndexEnd < c.Engine.IndexStart {
		errs = append(errs, fmt.Errorf("engine.index_end %d is before index_start %d", c.Engine.IndexEnd, c.Engine.IndexStart))
	}
	if c.Engine.RPS < 0 {
		errs = append(errs, errors.New("engine.rps must not be negative"))
	}
	if c.Engine.Timeout <= 0 {
		errs = append(errs, errors.New("engine.timeout must be positive"))
	}
	if c.Engine.RecvSize <= 0 {
		errs = append(errs, errors.New("engine.recv_size must be positive"))
	}
	if c.Engine.Workers < 1 {
		errs = append(errs, errors.New("engine.workers must be at least 1"))
	}
	if c.Protocol.Definition == "" {
		errs = append(errs, errors.New("protocol.definition is required"))
	}
	switch c.Output.Format {
	case "json", "markdown", "md":
	default:
		errs = append(errs, fmt.Errorf("unknown output.format %q", c.Output.Format))
	}
	if c.Output.TUI && c.Output.Quiet {
		errs = append(errs, errors.New("output.tui and output.quiet are exclusive"))
	}

	return errors.Join(errs...)
}

// Variables returns the protocol variables implied by the target section,
// overridden by explicit protocol variables
func (c *Config) Variables() map[string]string {
	vars := map[string]string{
		"host": c.Target.Host,
		"port": strconv.Itoa(c.Target.Port),
		"path": c.Target.Path,
	}
	for k, v := range c.Protocol.Variables {
		vars[k] = v
	}
	return vars
}

// Address returns host:port for display
func (c *Config) Address() string {
	return c.Target.Proto + "://" + c.Target.Host + ":" + strconv.Itoa(c.Target.Port)
}
