// Package config loads and validates wavectl's wave-config.yaml, following
// the teacher's GlobalSettings-with-ApplyDefaults/Validate pattern
// (engine/config/unified_config.go) generalised to this domain's sections.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the root of wave-config.yaml.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Sync        SyncConfig        `yaml:"sync"`
	History     HistoryConfig     `yaml:"history"`
	MetricBuf   MetricBufferConfig `yaml:"metric_buffer"`
	Variables   VariablesConfig   `yaml:"variables"`
	Collectors  CollectorConfig   `yaml:"collectors"`
	Observ      ObservabilityConfig `yaml:"observability"`
}

// ServerConfig is the HTTP admin/ingestion surface's bind address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig selects and connects the Definition Store.
type StoreConfig struct {
	// DBURL is a sqlite:// or postgres:// URL; scheme selects the driver.
	DBURL                     string `yaml:"db_url"`
	ResetDefinitionsOnStartup bool   `yaml:"reset_definitions_on_startup"`
}

// SyncConfig controls the Definition Synchroniser's poll cadence.
type SyncConfig struct {
	WatchDefinitionDurationMS int `yaml:"watch_definition_duration"`
}

// WatchInterval returns the poll cadence as a time.Duration.
func (s SyncConfig) WatchInterval() time.Duration {
	return time.Duration(s.WatchDefinitionDurationMS) * time.Millisecond
}

// HistoryConfig controls the History Log's retention sweep.
type HistoryConfig struct {
	RetentionDuration string `yaml:"autoscaling_history_retention"`
}

// Retention parses RetentionDuration, e.g. "1d", "2w", into a
// time.Duration. Plain Go duration suffixes (h, m, s) are also accepted;
// "d" and "w" are handled here since time.ParseDuration doesn't support
// them.
func (h HistoryConfig) Retention() (time.Duration, error) {
	s := strings.TrimSpace(h.RetentionDuration)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if strings.HasSuffix(s, "d") {
		n, err := parsePositiveInt(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("config: invalid retention %q: %w", s, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	if strings.HasSuffix(s, "w") {
		n, err := parsePositiveInt(strings.TrimSuffix(s, "w"))
		if err != nil {
			return 0, fmt.Errorf("config: invalid retention %q: %w", s, err)
		}
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("config: invalid retention %q", s)
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return n, nil
}

// MetricBufferConfig sizes the in-memory metric ring buffer.
type MetricBufferConfig struct {
	BudgetBytes    int64 `yaml:"budget_bytes"`
	PersistEnabled bool  `yaml:"persist_enabled"`
}

// VariablesConfig points the Variable Mapper at its source directory.
type VariablesConfig struct {
	Dir string `yaml:"dir"`
}

// CollectorConfig holds per-{collector}_{os_arch} download URLs for the
// Collector Config Emitter, plus where it keeps downloaded binaries and
// generated configs on disk.
type CollectorConfig struct {
	DownloadURLs map[string]string `yaml:"download_urls"`
	BinDir       string            `yaml:"bin_dir"`
	ConfigDir    string            `yaml:"config_dir"`
}

// ObservabilityConfig is the ambient logging/metrics surface, carried
// regardless of spec.md's functional non-goals.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	// MetricsBackend selects the Provider metrics.NewProvider constructs:
	// "prometheus" (default, exposed over /metrics) or "otel" (an
	// in-process OTEL MeterProvider, exporter-less until a deployment
	// layers one on, matching the teacher's own OTEL bridge).
	MetricsBackend string `yaml:"metrics_backend"`
	// TracingEnabled registers an OTEL TracerProvider and starts a span
	// around every scheduler dispatch, so logging's trace/span
	// correlation has something real to correlate.
	TracingEnabled bool `yaml:"tracing_enabled"`
}

// Load reads and parses path, then applies defaults and validates.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns an AppConfig with every section already at its default
// value; Load starts from this and overlays the YAML document on top.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in every section's zero-valued fields with sensible
// defaults, mirroring the teacher's per-section ApplyXDefaults methods.
func (c *AppConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	c.applyServerDefaults()
	c.applySyncDefaults()
	c.applyHistoryDefaults()
	c.applyMetricBufferDefaults()
	c.applyObservabilityDefaults()
	c.applyCollectorDefaults()
}

func (c *AppConfig) applyServerDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3024
	}
	if c.Store.DBURL == "" {
		c.Store.DBURL = "sqlite://wavectl.db"
	}
}

func (c *AppConfig) applySyncDefaults() {
	if c.Sync.WatchDefinitionDurationMS == 0 {
		c.Sync.WatchDefinitionDurationMS = 500
	}
}

func (c *AppConfig) applyHistoryDefaults() {
	if c.History.RetentionDuration == "" {
		c.History.RetentionDuration = "2w"
	}
}

func (c *AppConfig) applyMetricBufferDefaults() {
	if c.MetricBuf.BudgetBytes == 0 {
		c.MetricBuf.BudgetBytes = 64 << 20
	}
}

func (c *AppConfig) applyObservabilityDefaults() {
	if c.Observ.LogLevel == "" {
		c.Observ.LogLevel = "info"
	}
	if c.Observ.MetricsBackend == "" {
		c.Observ.MetricsBackend = "prometheus"
	}
}

func (c *AppConfig) applyCollectorDefaults() {
	if c.Collectors.BinDir == "" {
		c.Collectors.BinDir = "./collectors/bin"
	}
	if c.Collectors.ConfigDir == "" {
		c.Collectors.ConfigDir = "./collectors/config"
	}
}

// Validate checks every section in turn, following the teacher's
// validateXPolicy-per-section structure.
func (c *AppConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("config: app config cannot be nil")
	}
	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.validateStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.validateSync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := c.validateHistory(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if err := c.validateMetricBuffer(); err != nil {
		return fmt.Errorf("metric_buffer: %w", err)
	}
	if err := c.validateObservability(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

func (c *AppConfig) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	return nil
}

func (c *AppConfig) validateStore() error {
	if strings.TrimSpace(c.Store.DBURL) == "" {
		return fmt.Errorf("db_url cannot be empty")
	}
	if !strings.HasPrefix(c.Store.DBURL, "sqlite://") && !strings.HasPrefix(c.Store.DBURL, "postgres://") {
		return fmt.Errorf("db_url must use sqlite:// or postgres://: %s", c.Store.DBURL)
	}
	return nil
}

func (c *AppConfig) validateSync() error {
	if c.Sync.WatchDefinitionDurationMS <= 0 {
		return fmt.Errorf("watch_definition_duration must be positive")
	}
	return nil
}

func (c *AppConfig) validateHistory() error {
	if _, err := c.History.Retention(); err != nil {
		return err
	}
	return nil
}

func (c *AppConfig) validateMetricBuffer() error {
	if c.MetricBuf.BudgetBytes <= 0 {
		return fmt.Errorf("budget_bytes must be positive")
	}
	return nil
}

func (c *AppConfig) validateObservability() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Observ.LogLevel)] {
		return fmt.Errorf("invalid log level: %s", c.Observ.LogLevel)
	}
	validBackends := map[string]bool{"prometheus": true, "otel": true}
	if !validBackends[strings.ToLower(c.Observ.MetricsBackend)] {
		return fmt.Errorf("invalid metrics backend: %s", c.Observ.MetricsBackend)
	}
	return nil
}
