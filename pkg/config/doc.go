// Package config provides the configuration of a CTF load.
//
// A LoaderConfig names the input file, the stream schema, the element type
// values are materialised as and where an exported copy is written.
//
// # Sections
//
//   - Input: path, forced compression, cursor window size and mmap
//   - Streams: one entry per stream (name, alias, dimension, kind, storage)
//   - Output: export format, destination, compression and Avro codec
//   - Logging, Metrics, Tracing: ambient settings applied by the CLI
//
// # File Format
//
//	input: ${DATA_DIR}/train.ctf.zst
//	value_type: float
//	streams:
//	  - name: features
//	    alias: F
//	    dimension: 784
//	    kind: feature
//	    storage: dense
//	  - name: labels
//	    dimension: 10
//	    kind: label
//	    storage: sparse
//	output:
//	  format: arrow
//	  path: train.arrow
//
// ${VAR} is replaced with the environment value and ${VAR:-fallback} falls
// back when the variable is unset. A relative input is resolved against the
// directory holding the file.
//
// # Usage
//
//	cfg, err := config.Load("train.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	schema, _ := cfg.ToSchema()
//	loadCfg, _ := cfg.LoadConfig()
//	typed, err := ctf.Load[float32](ctx, cfg.Input, schema, loadCfg)
package config
