// Package logx configures tickkit's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//
// Loggers created from the Service stay "live" across Apply()
// reconfigurations, so hot-reloading the log level or sinks never requires
// re-plumbing loggers through the app.
package logx
