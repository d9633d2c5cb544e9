// Package logger provides the shared zap-based logging facilities for all
// deployment binaries.
//
// A global sugared logger backs every message; contexts may carry a named or
// field-scoped child logger which takes precedence. Binaries set the level
// once at startup from the --log-level flag.
package logger
