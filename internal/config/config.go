// Package config handles layered YAML configuration with environment overrides.
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

// Config holds all epaview configuration.
type Config struct {
	Engine Engine `yaml:"engine"`
	Plot   Plot   `yaml:"plot"`
	Server Server `yaml:"server"`
	Log    Log    `yaml:"log"`
	Batch  Batch  `yaml:"batch"`
}

// Engine holds solver settings.
type Engine struct {
	Name    string        `yaml:"name"`     // "toolkit" | "topology"
	Binary  string        `yaml:"binary"`   // solver executable for the toolkit engine
	Timeout time.Duration `yaml:"timeout"`  // per simulation
	WorkDir string        `yaml:"work_dir"` // scratch directory parent; empty uses the system temp dir
}

// Plot holds figure defaults.
type Plot struct {
	Width      float64 `yaml:"width"`  // inches
	Height     float64 `yaml:"height"` // inches
	Format     string  `yaml:"format"` // png | svg | pdf | jpg | tif | eps
	NodeRadius float64 `yaml:"node_radius"`
	TimeUnit   string  `yaml:"time_unit"` // "hours" | "seconds"
}

// Server holds HTTP front end settings.
type Server struct {
	Addr        string  `yaml:"addr"`
	UploadDir   string  `yaml:"upload_dir"`
	MaxUploadMB int64   `yaml:"max_upload_mb"`
	RateLimit   float64 `yaml:"rate_limit"` // requests per second per client; 0 disables
	Burst       int     `yaml:"burst"`
}

// Log holds logger settings.
type Log struct {
	Level  string `yaml:"level"`  // logrus level name
	Format string `yaml:"format"` // "text" | "json"
}

// Batch holds multi-network run settings.
type Batch struct {
	FailureMode    string `yaml:"failure_mode"`    // "abort" | "continue"
	CircuitBreaker int    `yaml:"circuit_breaker"` // Consecutive failures before stopping
	ResultsDir     string `yaml:"results_dir"`     // Where summaries and batch state are stored
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine: Engine{
			Name:    "toolkit",
			Binary:  "runepanet",
			Timeout: 2 * time.Minute,
		},
		Plot: Plot{
			Width:      10,
			Height:     8,
			Format:     "png",
			NodeRadius: 5,
			TimeUnit:   "hours",
		},
		Server: Server{
			Addr:        "127.0.0.1:5000",
			UploadDir:   ".epaview/uploads",
			MaxUploadMB: 16,
			RateLimit:   10,
			Burst:       20,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Batch: Batch{
			FailureMode:    "continue",
			CircuitBreaker: 3,
			ResultsDir:     ".epaview/results",
		},
	}
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
// If the file contains invalid YAML or unknown fields, an error is returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return &cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	switch c.Engine.Name {
	case "":
		return errors.New("config: engine.name cannot be empty")
	case "toolkit":
		if c.Engine.Binary == "" {
			return errors.New("config: engine.binary cannot be empty for the toolkit engine")
		}
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("config: engine.timeout must be positive, got %v", c.Engine.Timeout)
	}
	if c.Plot.Width <= 0 || c.Plot.Height <= 0 {
		return fmt.Errorf("config: plot.width and plot.height must be positive, got %vx%v", c.Plot.Width, c.Plot.Height)
	}
	switch c.Plot.Format {
	case "png", "svg", "pdf", "jpg", "tif", "eps":
		// valid
	default:
		return fmt.Errorf("config: plot.format %q is not supported", c.Plot.Format)
	}
	if c.Plot.NodeRadius < 0 {
		return fmt.Errorf("config: plot.node_radius must be non-negative, got %v", c.Plot.NodeRadius)
	}
	switch c.Plot.TimeUnit {
	case "hours", "seconds":
		// valid
	default:
		return fmt.Errorf("config: plot.time_unit must be \"hours\" or \"seconds\", got %q", c.Plot.TimeUnit)
	}
	if c.Server.Addr == "" {
		return errors.New("config: server.addr cannot be empty")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("config: server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("config: server.rate_limit must be non-negative, got %v", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		return fmt.Errorf("config: server.burst must be at least 1 when rate limiting, got %d", c.Server.Burst)
	}
	switch c.Log.Format {
	case "text", "json":
		// valid
	default:
		return fmt.Errorf("config: log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}
	switch c.Batch.FailureMode {
	case "", "abort", "continue":
		// valid
	default:
		return fmt.Errorf("config: batch.failure_mode must be \"abort\" or \"continue\", got %q", c.Batch.FailureMode)
	}
	if c.Batch.CircuitBreaker < 0 {
		return fmt.Errorf("config: batch.circuit_breaker must be non-negative, got %d", c.Batch.CircuitBreaker)
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: EPAVIEW_ENGINE, EPAVIEW_ENGINE_BINARY, EPAVIEW_TIMEOUT,
// EPAVIEW_ADDR, EPAVIEW_LOG_LEVEL, EPAVIEW_RATE_LIMIT.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("EPAVIEW_ENGINE"); v != "" {
		c.Engine.Name = v
	}
	if v := os.Getenv("EPAVIEW_ENGINE_BINARY"); v != "" {
		c.Engine.Binary = v
	}
	if v := os.Getenv("EPAVIEW_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid EPAVIEW_TIMEOUT %q: %w", v, err)
		}
		c.Engine.Timeout = d
	}
	if v := os.Getenv("EPAVIEW_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("EPAVIEW_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("EPAVIEW_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: invalid EPAVIEW_RATE_LIMIT %q: %w", v, err)
		}
		c.Server.RateLimit = f
	}
	return nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Engine *rawEngine `yaml:"engine"`
	Plot   *rawPlot   `yaml:"plot"`
	Server *rawServer `yaml:"server"`
	Log    *rawLog    `yaml:"log"`
	Batch  *rawBatch  `yaml:"batch"`
}

type rawEngine struct {
	Name    *string        `yaml:"name"`
	Binary  *string        `yaml:"binary"`
	Timeout *time.Duration `yaml:"timeout"`
	WorkDir *string        `yaml:"work_dir"`
}

type rawPlot struct {
	Width      *float64 `yaml:"width"`
	Height     *float64 `yaml:"height"`
	Format     *string  `yaml:"format"`
	NodeRadius *float64 `yaml:"node_radius"`
	TimeUnit   *string  `yaml:"time_unit"`
}

type rawServer struct {
	Addr        *string  `yaml:"addr"`
	UploadDir   *string  `yaml:"upload_dir"`
	MaxUploadMB *int64   `yaml:"max_upload_mb"`
	RateLimit   *float64 `yaml:"rate_limit"`
	Burst       *int     `yaml:"burst"`
}

type rawLog struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

type rawBatch struct {
	FailureMode    *string `yaml:"failure_mode"`
	CircuitBreaker *int    `yaml:"circuit_breaker"`
	ResultsDir     *string `yaml:"results_dir"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// set copies *src into *dst when src is non-nil.
func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if e := layer.Engine; e != nil {
		set(&c.Engine.Name, e.Name)
		set(&c.Engine.Binary, e.Binary)
		set(&c.Engine.Timeout, e.Timeout)
		set(&c.Engine.WorkDir, e.WorkDir)
	}
	if p := layer.Plot; p != nil {
		set(&c.Plot.Width, p.Width)
		set(&c.Plot.Height, p.Height)
		set(&c.Plot.Format, p.Format)
		set(&c.Plot.NodeRadius, p.NodeRadius)
		set(&c.Plot.TimeUnit, p.TimeUnit)
	}
	if s := layer.Server; s != nil {
		set(&c.Server.Addr, s.Addr)
		set(&c.Server.UploadDir, s.UploadDir)
		set(&c.Server.MaxUploadMB, s.MaxUploadMB)
		set(&c.Server.RateLimit, s.RateLimit)
		set(&c.Server.Burst, s.Burst)
	}
	if l := layer.Log; l != nil {
		set(&c.Log.Level, l.Level)
		set(&c.Log.Format, l.Format)
	}
	if b := layer.Batch; b != nil {
		set(&c.Batch.FailureMode, b.FailureMode)
		set(&c.Batch.CircuitBreaker, b.CircuitBreaker)
		set(&c.Batch.ResultsDir, b.ResultsDir)
	}
}
