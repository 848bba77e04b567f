// Package logger provides a simple, thread-safe logging facility.
//
// The logger supports four levels: Debug, Info, Warn, and Error.
// Each log entry includes a timestamp, level, optional component ID, and
// message. The dispatcher logs as "main" or with an empty component, each
// worker as "core-N".
//
// # Basic Usage
//
// Using the default logger (writes to stderr):
//
//	logger.Info("", "Dispatcher started")
//	logger.Warn("core-1", "Malformed task: %v", err)
//	logger.Error("main", "Send failed: %v", err)
//
// Creating a custom logger:
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("core-2", "Debug message")
//
// # Log Levels
//
// Messages below the configured level are filtered:
//   - LevelDebug: all messages
//   - LevelInfo: Info, Warn, Error
//   - LevelWarn: Warn, Error
//   - LevelError: Error only
//
// # Thread Safety
//
// All logging operations are protected by a mutex and safe for concurrent use.
package logger
