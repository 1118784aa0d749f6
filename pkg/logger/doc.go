// Package logger provides a structured logging interface for igsync.
//
// It wraps zerolog with:
//   - leveled and field-based logging (InfoWithFields, WithField, WithError)
//   - colorized console output on stderr
//   - optional JSON file output rotated by lumberjack
//   - a capturing TestLogger and a NopLogger for tests
//
// Components receive a Logger through their constructors. The CLI calls
// Initialize once so that GetLogger returns a configured instance:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "acquisition")
//	log.InfoWithFields("state transition", map[string]interface{}{
//	    "entity": "nasa",
//	    "state":  "STAGED",
//	})
package logger
