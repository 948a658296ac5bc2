package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/vdiff/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "vdiff.json"

	// DefaultPort is the default server port.
	DefaultPort = 7070

	// DefaultHost is the default server host. Empty binds every interface.
	DefaultHost = ""

	// DefaultMetricsPath is where Prometheus metrics are served.
	DefaultMetricsPath = "/metrics"

	// DefaultNamespace is the Prometheus namespace.
	DefaultNamespace = "vdiff"

	// DefaultTracerName is the OpenTelemetry tracer name.
	DefaultTracerName = "github.com/vango-dev/vdiff"

	// DefaultSnapshotDir is the disk snapshot directory, relative to the
	// config file.
	DefaultSnapshotDir = "snapshots"
)

// Environment variables that override file values.
const (
	EnvPort = "VDIFF_PORT"
	EnvHost = "VDIFF_HOST"
)

// Config represents the complete vdiff.json configuration.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `json:"tracing"`

	// Reconcile contains reconciler settings.
	Reconcile ReconcileConfig `json:"reconcile"`

	// Snapshot contains snapshot storage configuration.
	Snapshot SnapshotConfig `json:"snapshot"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains mount server settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// ReadTimeout is the HTTP read timeout (e.g., "30s").
	ReadTimeout string `json:"readTimeout,omitempty"`

	// WriteTimeout is the HTTP and WebSocket frame write timeout.
	WriteTimeout string `json:"writeTimeout,omitempty"`

	// MaxBodyBytes limits the size of a rendered document.
	MaxBodyBytes int64 `json:"maxBodyBytes,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled serves metrics and instruments renders.
	Enabled bool `json:"enabled"`

	// Path is the metrics endpoint.
	Path string `json:"path,omitempty"`

	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled wraps every render in a span.
	Enabled bool `json:"enabled"`

	// TracerName is the instrumentation scope name.
	TracerName string `json:"tracerName,omitempty"`
}

// ReconcileConfig contains reconciler settings.
type ReconcileConfig struct {
	// StrictKeys rejects documents with duplicate sibling keys. When false
	// the first occurrence of a key wins.
	StrictKeys bool `json:"strictKeys"`
}

// SnapshotConfig contains snapshot storage settings.
type SnapshotConfig struct {
	// Backend is "disk", "s3", or empty for no snapshots.
	Backend string `json:"backend,omitempty"`

	// Dir is the disk backend directory.
	Dir string `json:"dir,omitempty"`

	// Bucket is the S3 bucket.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is prepended to every S3 object key.
	Prefix string `json:"prefix,omitempty"`

	// Region is the AWS region. Empty uses the SDK default chain.
	Region string `json:"region,omitempty"`

	// Endpoint overrides the S3 endpoint, for MinIO and similar services.
	Endpoint string `json:"endpoint,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ReadTimeout:  "30s",
			WriteTimeout: "10s",
			MaxBodyBytes: 4 << 20,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      DefaultMetricsPath,
			Namespace: DefaultNamespace,
		},
		Tracing: TracingConfig{
			TracerName: DefaultTracerName,
		},
		Reconcile: ReconcileConfig{
			StrictKeys: true,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for vdiff.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path and applies
// environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E040").
				WithDetail("No vdiff.json found in " + filepath.Dir(path)).
				WithSuggestion("Create vdiff.json or run without --config to use defaults")
		}
		return nil, errors.New("E041").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E041").
			WithDetail("Failed to parse vdiff.json: " + err.Error()).
			WithSuggestion("Check that vdiff.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrNew loads vdiff.json from dir, falling back to defaults (with
// environment overrides) when the file does not exist.
func LoadOrNew(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if err == nil {
		return cfg, nil
	}
	if errors.CodeOf(err) != "E040" {
		return nil, err
	}
	cfg = New()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E041").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E041").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "30s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "10s"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 4 << 20
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}

	c.Snapshot.Backend = strings.ToLower(c.Snapshot.Backend)
	if c.Snapshot.Backend == "disk" && c.Snapshot.Dir == "" {
		c.Snapshot.Dir = DefaultSnapshotDir
	}
}

// ApplyEnv applies VDIFF_PORT and VDIFF_HOST.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("E042").
				WithDetail(fmt.Sprintf("%s=%q is not a port number", EnvPort, v))
		}
		c.Server.Port = port
	}
	if v, ok := os.LookupEnv(EnvHost); ok {
		c.Server.Host = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E042").
			WithDetail("Port must be between 0 and 65535")
	}
	if c.Server.MaxBodyBytes < 0 {
		return errors.New("E042").
			WithDetail("maxBodyBytes must not be negative")
	}
	for name, value := range map[string]string{
		"readTimeout":  c.Server.ReadTimeout,
		"writeTimeout": c.Server.WriteTimeout,
	} {
		if _, err := parseDuration(value); err != nil {
			return errors.New("E042").
				WithDetail(fmt.Sprintf("server.%s: %v", name, err)).
				WithSuggestion(`Use a Go duration such as "30s"`)
		}
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("E042").
			WithDetail(fmt.Sprintf("metrics.path %q must start with /", c.Metrics.Path))
	}

	switch c.Snapshot.Backend {
	case "":
	case "disk":
		if c.Snapshot.Dir == "" {
			return errors.New("E042").WithDetail("snapshot.dir is required for the disk backend")
		}
	case "s3":
		if c.Snapshot.Bucket == "" {
			return errors.New("E042").WithDetail("snapshot.bucket is required for the s3 backend")
		}
	default:
		return errors.New("E042").
			WithDetail(fmt.Sprintf("unknown snapshot backend %q", c.Snapshot.Backend)).
			WithSuggestion(`Use "disk", "s3", or leave it empty`)
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

// Address returns the listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ReadTimeout returns the parsed read timeout, or zero if unset or invalid.
func (c *Config) ReadTimeout() time.Duration {
	d, _ := parseDuration(c.Server.ReadTimeout)
	return d
}

// WriteTimeout returns the parsed write timeout, or zero if unset or invalid.
func (c *Config) WriteTimeout() time.Duration {
	d, _ := parseDuration(c.Server.WriteTimeout)
	return d
}

// SnapshotDir returns the absolute path to the disk snapshot directory.
func (c *Config) SnapshotDir() string {
	path := c.Snapshot.Dir
	if path == "" {
		path = DefaultSnapshotDir
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindRoot walks up directories to find one containing vdiff.json.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E040").
				WithDetail("No vdiff.json found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}
