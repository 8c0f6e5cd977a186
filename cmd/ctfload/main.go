package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/ctfkit/pkg/config"
	"github.com/ajitpratap0/ctfkit/pkg/errors"
	"github.com/ajitpratap0/ctfkit/pkg/logger"
	"github.com/ajitpratap0/ctfkit/pkg/metrics"
	"github.com/ajitpratap0/ctfkit/pkg/observability"
)

var version = "0.1.0"

// envPrefix namespaces environment overrides, e.g. CTFLOAD_LOG_LEVEL.
const envPrefix = "CTFLOAD"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	a := newApp()
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if ferr := a.finish(); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// app carries the state shared by the commands of one invocation.
type app struct {
	v        *viper.Viper
	cfg      *config.LoaderConfig
	shutdown func(context.Context) error
}

func newApp() *app {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &app{v: v}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ctfload",
		Short: "ctfload - CNTK text format loader",
		Long: `ctfload parses CNTK text format (CTF) datasets, projects them through a
stream schema and optionally converts them to JSON Lines, Avro, Arrow, Parquet
or CTF.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "Path to the loader YAML configuration")
	flags.StringP("input", "i", "", "CTF input file (overrides the configuration)")
	flags.String("value-type", "", "Element type: float, double, int8, int16, int32 or int64")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log encoding (json or console)")
	flags.Bool("trace", false, "Print OpenTelemetry spans to stderr")
	flags.String("metrics-file", "", "Write Prometheus metrics to this textfile on exit")
	_ = a.v.BindPFlags(flags)

	root.AddCommand(
		a.versionCommand(),
		a.parseCommand(),
		a.convertCommand(),
		a.validateCommand(),
	)
	return root
}

// setup loads the configuration and applies its ambient sections. The
// version command needs neither.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Init(cfg.Logging.LoggerConfig()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}

	shutdown, err := observability.InitTracing(cfg.Tracing.ObservabilityConfig(version))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize tracing")
	}
	a.shutdown = shutdown

	logger.Debug("configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("input", cfg.Input),
		zap.String("value_type", string(cfg.ValueType)),
		zap.Int("streams", len(cfg.Streams)),
	)
	return nil
}

// loadConfig reads the YAML file named by --config and applies flag and
// CTFLOAD_* environment overrides on top of it.
func (a *app) loadConfig() (*config.LoaderConfig, error) {
	path := a.v.GetString("config")
	if path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"input":        &cfg.Input,
		"log-level":    &cfg.Logging.Level,
		"log-format":   &cfg.Logging.Format,
		"metrics-file": &cfg.Metrics.Textfile,
		"format":       &cfg.Output.Format,
		"output":       &cfg.Output.Path,
		"compression":  &cfg.Output.Compression,
	}
	for key, field := range overrides {
		if a.v.IsSet(key) && a.v.GetString(key) != "" {
			*field = a.v.GetString(key)
		}
	}
	if a.v.IsSet("value-type") && a.v.GetString("value-type") != "" {
		cfg.ValueType = config.ValueType(a.v.GetString("value-type"))
	}
	if a.v.IsSet("trace") {
		cfg.Tracing.Enabled = a.v.GetBool("trace")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish flushes spans and dumps metrics once the command has run.
func (a *app) finish() error {
	var firstErr error
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil {
			firstErr = errors.Wrap(err, errors.ErrorTypeInternal, "failed to flush traces")
		}
	}
	if a.cfg != nil && a.cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, errors.ErrorTypeFile, "failed to write metrics textfile")
		}
	}
	_ = logger.Sync()
	return firstErr
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ctfload v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
