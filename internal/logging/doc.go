// Package logging installs the process logger.
//
// Library packages log through log/slog. The binary backs slog with a zerolog
// writer so console output is human readable and JSON output is one object per
// line:
//
//	logger, err := logging.New(cfg.Log, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
// Group names become dotted key prefixes ("session.room_id").
package logging
