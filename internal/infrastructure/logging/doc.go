// Package logging provides structured logging for medminder.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same service/version fields and level filtering.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("dose recorded", "medication_id", id)
//
// Never log NFC tag identifiers at info level; diagnostics redact them.
package logging
