// Package progress reports publish-loop progress. It renders the in-place
// terminal bar and fans structured events out to pluggable sinks such as
// structured logs, Prometheus metrics, and run history storage.
package progress
