// Package log records the byte-level transcript of an update session.
//
// It is separate from operational logging (slog): every byte read from or
// written to the target, every stage transition, every marker wait and every
// failure is captured as an Event, giving a machine-readable trace that can be
// replayed when a run fails on a build server.
//
// # Basic Usage
//
//	// Console mirror while developing
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// Binary transcript for later analysis
//	logger, _ := log.NewFileLogger("update.rlog")
//
//	// Both
//	logger := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fileLogger)
//
// # File Format
//
// Transcripts are CBOR sequences with integer map keys (.rlog). The rvbl-log
// command views, exports and summarizes them.
package log
