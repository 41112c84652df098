/*
Package log provides structured logging for the queue and planner core
using zerolog.

The global Logger is configured once via Init and then used directly or
through context helpers (WithQueue, WithJob, WithSpan, WithResourceType)
that attach a field without requiring callers to carry a logger by hand.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithQueue("batch")
	logger.Info().Int64("job_id", 42).Msg("job inserted")
*/
package log
