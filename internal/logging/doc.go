// Package logging provides structured logging for dl1merge runs.
//
// The package wraps log/slog with a JSON handler. Every entry carries the
// persistent attributes of the logger that produced it, so a single run can
// be followed across the readiness gate, the merge dispatch and the
// relocation step:
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLog := logger.WithRun(runID).WithParticle("gamma")
//	runLog.WithSet("testing").Info("merge submitted", "job_id", "123456")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"merge submitted","run_id":"...","particle":"gamma","set":"testing","job_id":"123456"}
//
// Log files live at {dir}/dl1merge.log. [NewLoggerWithRotation] rotates the
// file once it grows past RotationConfig.MaxSizeMB, keeping numbered backups
// (dl1merge.log.1 is the most recent). An empty directory sends output to
// stderr. Tests use [NopLogger].
package logging
