// Package common provides shared constants, types, utilities, and interfaces
// used throughout auto-mudfish.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: admin page defaults, element selectors, timeouts and file names
//   - Errors: sentinel errors and a stable ErrorKind classification
//   - Interfaces: the SecretCodec capability and the Logger sink
//   - Logger: leveled logging with optional rotated file output
//   - LogRecorder: an in-memory sink front-ends use to replay an operation's log
//
// # Usage
//
//	logger, err := common.NewLogger(common.LogConfig{Level: common.LevelInfo})
//	logger.Info("Starting connection to %s", adminURL)
//
//	if errors.Is(err, common.ErrVaultNotFound) {
//	    // prompt for --setup
//	}
//
//	kind := common.KindOf(err) // "vault_not_found"
package common
