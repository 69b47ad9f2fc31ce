// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON
// or text logging with configurable log levels. Every handler built here passes
// attributes through redact.ReplaceAttr, so passwords, national IDs, phones and
// verification codes never reach the log output.
package logger
