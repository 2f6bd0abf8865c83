// Package cache provides a two-level cache for extracted document text. It
// includes an in-memory LRU cache (L1) and a zstd-compressed disk cache (L2)
// keyed by the sha256 of the uploaded bytes.
package cache
