// Package sinks implements concrete progress consumers: Prometheus metrics,
// run-history persistence, structured logging, and an in-memory snapshot of
// the latest run. Each sink satisfies the progress.Sink interface and is safe
// for repeated Consume/Close cycles.
package sinks
