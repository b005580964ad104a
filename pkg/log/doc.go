/*
Package log provides structured logging for drex using zerolog.

A single package-level Logger is configured once with Init and shared by
every component. Components derive child loggers carrying identifying
fields:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("scheduler")
	logger.Info().
		Str("file_id", "f-1").
		Str("scheme", "2-of-3").
		Msg("placement committed")

# Levels

  - debug: per-candidate search detail (candidates evaluated, rejected)
  - info: committed placements, command progress
  - warn: predictor fallback, persistence retries
  - error: failed decisions surfaced to the caller

# Output

JSONOutput selects machine-readable lines; otherwise a zerolog
ConsoleWriter with RFC3339 timestamps is used. Output defaults to stdout.
*/
package log
