package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/ctfkit/pkg/compression"
	"github.com/ajitpratap0/ctfkit/pkg/config"
	"github.com/ajitpratap0/ctfkit/pkg/ctf"
	"github.com/ajitpratap0/ctfkit/pkg/errors"
	"github.com/ajitpratap0/ctfkit/pkg/export"
	jsonpool "github.com/ajitpratap0/ctfkit/pkg/json"
	"github.com/ajitpratap0/ctfkit/pkg/logger"
	"github.com/ajitpratap0/ctfkit/pkg/performance"
)

func (a *app) parseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse",
		Short: "Load a CTF file and print a summary",
		Long: `Parse the configured CTF input, project it through the configured streams
and print a JSON summary with per-stream counts and resource usage.

Example:
  ctfload parse --config train.yaml --input train.ctf.zst`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			s, err := loadAndSummarize(ctx, a.cfg, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		},
	}
}

func (a *app) convertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Load a CTF file and export it to another format",
		Long: `Convert the configured CTF input to JSON Lines, Avro, Arrow, Parquet or CTF text.
Compression of the output is taken from output.compression or, when that is
"auto", from the extension of the output path. Compressed JSON Lines and CTF
outputs get the compression extension appended when the path lacks it.

Example:
  ctfload convert --config train.yaml --format arrow --output train.arrow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			opts, err := exportOptions(a.cfg.Output)
			if err != nil {
				return err
			}
			a.cfg.Output.Path = outputPath(a.cfg.Output.Path, opts)
			s, err := loadAndSummarize(ctx, a.cfg, &opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		},
	}
	cmd.Flags().StringP("format", "f", "", "Output format: jsonl, avro, arrow, parquet or ctf")
	cmd.Flags().StringP("output", "o", "", "Output file path")
	cmd.Flags().String("compression", "", "Output compression: auto, none, gzip, zstd, lz4, snappy or s2")
	_ = a.v.BindPFlag("format", cmd.Flags().Lookup("format"))
	_ = a.v.BindPFlag("output", cmd.Flags().Lookup("output"))
	_ = a.v.BindPFlag("compression", cmd.Flags().Lookup("compression"))
	return cmd
}

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and stream schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := a.cfg.ToSchema()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration is valid")
			fmt.Fprintf(out, "Input: %s\n", a.cfg.Input)
			fmt.Fprintf(out, "Value type: %s\n", a.cfg.ValueType)
			for _, e := range schema {
				fmt.Fprintf(out, "  - %s (%s, %s, dimension %d)\n", e.Name, e.Kind, e.Storage, e.Dimension)
			}
			return nil
		},
	}
}

func exportOptions(out config.OutputConfig) (export.Options, error) {
	if out.Path == "" {
		return export.Options{}, errors.New(errors.ErrorTypeConfig, "output path is required for convert")
	}
	format, err := export.ParseFormat(out.Format)
	if err != nil {
		return export.Options{}, err
	}
	algo, err := compression.ParseAlgorithm(out.Compression)
	if err != nil {
		return export.Options{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid output compression")
	}
	return export.Options{Format: format, Compression: algo, AvroCodec: out.Codec}, nil
}

// outputPath appends the compression extension to a compressed JSON Lines or
// CTF output whose path does not already imply that compression.
func outputPath(path string, opts export.Options) string {
	if opts.Format != export.JSONL && opts.Format != export.CTF {
		return path
	}
	ext := compression.Extension(opts.Compression)
	if ext == "" || compression.Detect(path) == opts.Compression {
		return path
	}
	return path + ext
}

// streamSummary counts one schema stream across all sequences.
type streamSummary struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Storage   string `json:"storage"`
	Dimension int    `json:"dimension"`
	Sequences int    `json:"sequences"`
	Values    int    `json:"values"`
}

type summary struct {
	Input     string                    `json:"input"`
	ValueType config.ValueType          `json:"value_type"`
	Sequences int                       `json:"sequences"`
	Streams   []streamSummary           `json:"streams"`
	Export    *export.Stats             `json:"export,omitempty"`
	Output    string                    `json:"output,omitempty"`
	Resources performance.ResourceUsage `json:"resources"`
}

// loadAndSummarize instantiates the load for the configured element type.
// With opts set the typed dataset is also exported to cfg.Output.Path.
func loadAndSummarize(ctx context.Context, cfg *config.LoaderConfig, opts *export.Options) (*summary, error) {
	switch cfg.ValueType {
	case config.ValueFloat:
		return loadTyped[float32](ctx, cfg, opts)
	case config.ValueDouble:
		return loadTyped[float64](ctx, cfg, opts)
	case config.ValueInt8:
		return loadTyped[int8](ctx, cfg, opts)
	case config.ValueInt16:
		return loadTyped[int16](ctx, cfg, opts)
	case config.ValueInt32:
		return loadTyped[int32](ctx, cfg, opts)
	case config.ValueInt64:
		return loadTyped[int64](ctx, cfg, opts)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported value_type %q", cfg.ValueType)
	}
}

func loadTyped[T ctf.Number](ctx context.Context, cfg *config.LoaderConfig, opts *export.Options) (*summary, error) {
	monitor := performance.NewResourceMonitor()
	log := logger.Get().With(zap.String("component", "ctfload-cli"))

	schema, err := cfg.ToSchema()
	if err != nil {
		return nil, err
	}
	loadCfg, err := cfg.LoadConfig()
	if err != nil {
		return nil, err
	}
	loadCfg.Logger = log

	typed, err := ctf.Load[T](ctx, cfg.Input, schema, loadCfg)
	if err != nil {
		return nil, err
	}

	s := &summary{
		Input:     cfg.Input,
		ValueType: cfg.ValueType,
		Sequences: typed.Len(),
		Streams:   summarizeStreams(typed),
	}

	if opts != nil {
		stats, err := export.ExportFile(ctx, cfg.Output.Path, typed, *opts)
		if err != nil {
			return nil, err
		}
		s.Export = &stats
		s.Output = cfg.Output.Path
	}

	s.Resources = monitor.Usage()
	log.Info("load finished", append([]zap.Field{
		zap.String("input", cfg.Input),
		zap.Int("sequences", s.Sequences),
	}, s.Resources.Fields()...)...)
	return s, nil
}

func summarizeStreams[T ctf.Number](typed *ctf.TypedDataset[T]) []streamSummary {
	out := make([]streamSummary, len(typed.Schema))
	for i, e := range typed.Schema {
		out[i] = streamSummary{
			Name:      e.Name,
			Kind:      e.Kind.String(),
			Storage:   e.Storage.String(),
			Dimension: e.Dimension,
		}
	}
	for _, seq := range typed.Sequences {
		for i, rec := range seq.Records {
			if rec.Len() == 0 {
				continue
			}
			out[i].Sequences++
			out[i].Values += rec.Len()
		}
	}
	return out
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := jsonpool.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode summary")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
