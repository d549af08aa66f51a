package grantauth

import (
	"log/slog"
	"os"
)

// defaultLogger returns the shared package logger when a GranteeManager is
// constructed without one.
func defaultLogger() *slog.Logger {
	if l := slog.Default(); l != nil {
		return l
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
