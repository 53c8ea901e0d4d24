// Package logx configures bcast's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//
// Loggers created from a Service stay "live" across Service.Apply() calls,
// so sinks and levels can change at runtime without re-plumbing loggers
// through every component.
package logx
