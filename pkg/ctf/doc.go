// Package ctf reads CNTK text format (CTF) training data.
//
// A CTF file is line oriented. Each line optionally starts with a sequence
// id and then carries one or more samples or comments:
//
//	0 |features 0.1 0.2 0.3 |labels 2:1
//	0 |features 0.4 0.5 0.6 |# second step of sequence 0
//	1 |features 1 2 3 |labels 0:1
//
// A sample is a '|' followed by a stream name and its values. Values are
// numbers, optionally prefixed with a sparse index ("index:value"). Lines
// without an id continue the previous sequence; an id-less first line
// opens sequence 1.
//
// # Basic Usage
//
//	schema := ctf.Schema{
//	    {Name: "features", Dimension: 3, Kind: ctf.Feature, Storage: ctf.Dense},
//	    {Name: "labels", Dimension: 10, Kind: ctf.Label, Storage: ctf.Sparse},
//	}
//	ds, err := ctf.Load[float32](ctx, "train.ctf.zst", schema, ctf.Config{})
//	if err != nil {
//	    return err
//	}
//	for _, seq := range ds.Sequences {
//	    features, _ := seq.Record(schema, "features")
//	    for _, row := range features.Rows() {
//	        ...
//	    }
//	}
//
// Loading is all or nothing: the first malformed token aborts the parse and
// no partial dataset is returned. Format errors carry their kind and input
// position, see FormatKindOf and PositionOf.
//
// Inputs are read through a fixed-size window, so memory for the reader
// stays constant regardless of file size. Compressed inputs (.gz, .zst,
// .lz4, .sz, .s2) are decoded transparently. Config.Mmap reads the file
// through a memory mapping instead of a file handle.
package ctf
