// Package logging provides the subsystem-tagged logger used across evault.
//
// It is a thin layer over log/slog. Every entry carries a "subsystem"
// attribute so that output from the session core, the backend client and the
// web front can be told apart:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Session", "Callback completed for device type %s", dt)
//	logging.Error("Backend", err, "Repository listing failed")
//
// The CLI uses a text handler. `evault serve` uses InitForServer, which emits
// JSON lines suitable for journald or a log shipper.
//
// Token values, CSRF secrets and authorization codes are never passed to the
// logger.
package logging
