// Package pool implements type-safe object pooling for ctfkit.
//
// The loader allocates one fixed-size read window per CTF file and a small
// scratch buffer per token. Both are recycled through the pools in this
// package so that loading many files in one process does not churn the heap.
//
// Core Types:
//
//   - Pool[T]: generic wrapper around sync.Pool with reset hooks and stats
//   - BufferPool: byte buffers bucketed by power-of-two sizes
//
// Usage:
//
//	window := pool.Windows.Get(64 * 1024)
//	defer pool.Windows.Put(window)
//
//	scratch := pool.GetScratch()
//	defer pool.PutScratch(scratch)
package pool
