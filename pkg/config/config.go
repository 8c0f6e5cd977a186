package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/ctfkit/pkg/compression"
	"github.com/ajitpratap0/ctfkit/pkg/ctf"
	"github.com/ajitpratap0/ctfkit/pkg/errors"
	"github.com/ajitpratap0/ctfkit/pkg/logger"
	"github.com/ajitpratap0/ctfkit/pkg/observability"
)

// ValueType names the element type values are materialised as.
type ValueType string

const (
	// ValueFloat materialises values as float32
	ValueFloat ValueType = "float"
	// ValueDouble materialises values as float64
	ValueDouble ValueType = "double"
	// ValueInt8 materialises values as int8
	ValueInt8 ValueType = "int8"
	// ValueInt16 materialises values as int16
	ValueInt16 ValueType = "int16"
	// ValueInt32 materialises values as int32
	ValueInt32 ValueType = "int32"
	// ValueInt64 materialises values as int64
	ValueInt64 ValueType = "int64"
)

// Valid reports whether t is a supported element type.
func (t ValueType) Valid() bool {
	switch t {
	case ValueFloat, ValueDouble, ValueInt8, ValueInt16, ValueInt32, ValueInt64:
		return true
	}
	return false
}

// Output formats understood by pkg/export.
const (
	FormatJSONL   = "jsonl"
	FormatAvro    = "avro"
	FormatArrow   = "arrow"
	FormatParquet = "parquet"
	FormatCTF     = "ctf"
)

// LoaderConfig is the complete configuration of one load.
type LoaderConfig struct {
	// Input is the CTF file to read
	Input string `yaml:"input" json:"input"`
	// Compression forces an input decoder (none, auto, gzip, zstd, lz4, snappy, s2)
	Compression string `yaml:"compression" json:"compression"`
	// WindowSize is the cursor window in bytes
	WindowSize int `yaml:"window_size" json:"window_size"`
	// Mmap reads the input through a memory mapping
	Mmap bool `yaml:"mmap" json:"mmap"`
	// ValueType selects the element type of the typed dataset
	ValueType ValueType `yaml:"value_type" json:"value_type"`

	// Streams describes every stream of interest, in output order
	Streams []StreamConfig `yaml:"streams" json:"streams"`

	Output  OutputConfig  `yaml:"output" json:"output"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// StreamConfig is the YAML form of ctf.StreamSchemaEntry.
type StreamConfig struct {
	Name      string         `yaml:"name" json:"name"`
	Alias     string         `yaml:"alias,omitempty" json:"alias,omitempty"`
	Dimension int            `yaml:"dimension" json:"dimension"`
	Kind      ctf.StreamKind `yaml:"kind" json:"kind"`
	Storage   ctf.Storage    `yaml:"storage" json:"storage"`
}

// OutputConfig selects the exporter used by the convert command.
type OutputConfig struct {
	// Format is one of jsonl, avro, arrow or ctf
	Format string `yaml:"format" json:"format"`
	// Path is the destination file
	Path string `yaml:"path" json:"path"`
	// Compression wraps jsonl and ctf output in a compressed stream
	Compression string `yaml:"compression" json:"compression"`
	// Codec is the Avro block codec (null, deflate, snappy)
	Codec string `yaml:"codec" json:"codec"`
}

// LoggingConfig is applied to the global logger.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Format      string `yaml:"format" json:"format"`
	Development bool   `yaml:"development" json:"development"`
}

// MetricsConfig controls the Prometheus textfile dump.
type MetricsConfig struct {
	// Textfile receives the metrics registry after the command finishes
	Textfile string `yaml:"textfile" json:"textfile"`
}

// TracingConfig controls the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" json:"enabled"`
	Exporter   string  `yaml:"exporter" json:"exporter"`
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate"`
	Pretty     bool    `yaml:"pretty" json:"pretty"`
}

// NewLoaderConfig returns a configuration with defaults for every field but
// the input and the schema.
func NewLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		Compression: string(compression.Auto),
		WindowSize:  ctf.DefaultWindowSize,
		ValueType:   ValueFloat,
		Output: OutputConfig{
			Format:      FormatJSONL,
			Compression: string(compression.None),
			Codec:       "null",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Exporter:   "stdout",
			SampleRate: 1.0,
		},
	}
}

// Validate checks the configuration without touching the input file.
func (c *LoaderConfig) Validate() error {
	if strings.TrimSpace(c.Input) == "" {
		return errors.New(errors.ErrorTypeConfig, "input is required")
	}
	if _, err := compression.ParseAlgorithm(c.Compression); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression")
	}
	if c.WindowSize < 0 {
		return errors.New(errors.ErrorTypeConfig, "window_size cannot be negative")
	}
	if !c.ValueType.Valid() {
		return errors.Newf(errors.ErrorTypeConfig, "unsupported value_type %q", c.ValueType)
	}
	if _, err := c.ToSchema(); err != nil {
		return err
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return errors.New(errors.ErrorTypeConfig, "tracing.sample_rate must be within [0, 1]")
	}
	return nil
}

// Validate checks the output section. An empty path means no export.
func (o *OutputConfig) Validate() error {
	switch o.Format {
	case FormatJSONL, FormatAvro, FormatArrow, FormatParquet, FormatCTF:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported output format %q", o.Format)
	}
	if _, err := compression.ParseAlgorithm(o.Compression); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid output compression")
	}
	switch o.Codec {
	case "", "null", "deflate", "snappy":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported avro codec %q", o.Codec)
	}
	return nil
}

// ToSchema converts the stream section into a validated ctf.Schema.
func (c *LoaderConfig) ToSchema() (ctf.Schema, error) {
	schema := make(ctf.Schema, 0, len(c.Streams))
	for _, s := range c.Streams {
		schema = append(schema, ctf.StreamSchemaEntry{
			Name:      s.Name,
			Alias:     s.Alias,
			Dimension: s.Dimension,
			Kind:      s.Kind,
			Storage:   s.Storage,
		})
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return schema, nil
}

// LoadConfig returns the ctf.Config for this load.
func (c *LoaderConfig) LoadConfig() (ctf.Config, error) {
	algo, err := compression.ParseAlgorithm(c.Compression)
	if err != nil {
		return ctf.Config{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression")
	}
	return ctf.Config{WindowSize: c.WindowSize, Compression: algo, Mmap: c.Mmap}, nil
}

// LoggerConfig returns the settings for logger.Init.
func (l LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       l.Level,
		Encoding:    l.Format,
		Development: l.Development,
		OutputPaths: []string{"stderr"},
	}
}

// ObservabilityConfig returns the settings for observability.InitTracing.
// A disabled section selects the "none" exporter.
func (t TracingConfig) ObservabilityConfig(version string) observability.TracingConfig {
	cfg := observability.DefaultTracingConfig()
	cfg.ServiceName = "ctfload"
	cfg.ServiceVersion = version
	cfg.SamplingRate = t.SampleRate
	cfg.PrettyPrint = t.Pretty
	cfg.ExporterType = t.Exporter
	if !t.Enabled {
		cfg.ExporterType = "none"
	}
	return cfg
}

// Load reads a LoaderConfig from a YAML file. ${VAR} references are replaced
// with environment values before parsing, and defaults fill omitted fields.
// A relative input path is resolved against the directory of the file.
func Load(filePath string) (*LoaderConfig, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path is supplied by the caller
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}

	cfg := NewLoaderConfig()
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").
			WithDetail("path", filePath)
	}
	if cfg.Input != "" && !filepath.IsAbs(cfg.Input) {
		cfg.Input = filepath.Join(filepath.Dir(filePath), cfg.Input)
	}
	return cfg, nil
}

// Save writes cfg to a YAML file.
func Save(filePath string, cfg *LoaderConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", filePath)
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// ${VAR_NAME:-fallback} uses fallback when the variable is unset or empty.
func substituteEnvVars(content string) string {
	var sb strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		name, fallback, _ := strings.Cut(content[start+2:end], ":-")
		value := os.Getenv(name)
		if value == "" {
			value = fallback
		}
		sb.WriteString(content[:start])
		sb.WriteString(value)
		content = content[end+1:]
	}
	sb.WriteString(content)
	return sb.String()
}
