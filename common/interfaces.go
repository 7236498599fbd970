// Package common provides shared constants, types, and utilities
// used across the auto-mudfish application.
package common

// SecretCodec protects bytes so that only the current operating-system user
// can recover them. Implementations may use the system keyring, a
// platform protection API, or a fixed key in tests.
type SecretCodec interface {
	// Encrypt seals plaintext.
	Encrypt(plaintext []byte) ([]byte, error)
	// Decrypt opens data produced by Encrypt. It must fail rather than
	// return partially recovered data.
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Logger defines the interface for structured logging.
// Core components write human-readable lines to a Logger supplied by the
// caller; nothing in the core reaches for a process-wide logger.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
