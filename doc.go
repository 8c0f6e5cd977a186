// Package ctfkit reads CNTK text format (CTF) datasets and turns them into
// typed, schema-shaped sequences for training pipelines.
//
// A CTF file holds one record per line. Each record may start with a
// sequence id and carries any number of named samples plus an optional
// comment:
//
//	0 |features 0.1 0.2 0.3 |labels 3:1 |# first sample
//	0 |features 0.4 0.5 0.6
//	1 |features 0.7 0.8 0.9 |labels 1:1
//
// Records sharing an id form one sequence. Values are dense lists or sparse
// index:value pairs.
//
// # Architecture
//
// Loading happens in two stages:
//
// 1. Parse: a backtracking cursor over a fixed-size window feeds a
// recursive-descent parser that groups records into an untyped Dataset.
// Input may be plain, gzip, zstd, lz4, snappy or s2 compressed, or memory
// mapped.
//
// 2. Project: a Schema picks the streams of interest, their storage (dense
// or sparse) and dimension, and converts values to the requested element
// type (float32, float64 or a signed integer type).
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/ctfkit/pkg/ctf"
//	)
//
//	schema := ctf.Schema{
//	    {Name: "features", Dimension: 3, Kind: ctf.Feature, Storage: ctf.Dense},
//	    {Name: "labels", Dimension: 10, Kind: ctf.Label, Storage: ctf.Sparse},
//	}
//	typed, err := ctf.Load[float32](ctx, "train.ctf.zst", schema, ctf.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Key Packages
//
//   - pkg/ctf: cursor, grammar, sequence assembly, projection and CTF writer
//   - pkg/export: JSON Lines, Avro, Arrow IPC, Parquet and CTF exporters
//   - pkg/config: YAML loader configuration with environment substitution
//   - pkg/compression: stream codecs shared by input and output
//   - pkg/errors: typed errors with details and stack capture
//   - pkg/logger, pkg/metrics, pkg/observability: zap logging, Prometheus
//     metrics and OpenTelemetry tracing
//   - pkg/pool, pkg/strings, pkg/json: pooled buffers and allocation-light
//     helpers
//   - pkg/performance: process resource usage reporting
//
// # Command Line
//
// cmd/ctfload loads a dataset described by a YAML file:
//
//	ctfload parse --config train.yaml
//	ctfload convert --config train.yaml --format arrow --output train.arrow
//	ctfload convert --config train.yaml --format ctf --output copy.ctf --compression zstd
//	ctfload validate --config train.yaml
//
// Every flag may also be set through a CTFLOAD_* environment variable or a
// .env file.
//
// # Errors
//
// Failures are *errors.Error values. Format errors carry the offending
// Position (byte offset and line) and a FormatKind; a failed parse never
// returns a partial dataset.
package ctfkit
