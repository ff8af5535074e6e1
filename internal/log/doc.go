// Package log provides the crawler's structured logging, built on top of the
// standard slog package.
//
// This package extends slog to provide:
//   - Automatic redaction of node private keys and other secrets
//   - A LevelFatal severity for failures that end the process
//   - Level parsing for the --log-level flag
//   - A handler that can be shared with go-ethereum's logger
//
// # Redaction
//
// The SecureHandler masks values whose attribute key names a secret
// ("nodekey", "private_key", "secret", ...) and values that look like PEM
// private key blocks. Node IDs, public keys and ENRs are public and are
// logged as-is.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, slog.LevelInfo)
//	logger.Info("cycle complete", "cycle", 3, "measured", 812)
//
//	// go-ethereum components log through the same handler
//	gethlog.NewLogger(logger.Handler())
package log
