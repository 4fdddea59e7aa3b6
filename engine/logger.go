package engine

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gi/common"
)

// SetLogger configures the logger shared by every engine package. Components created
// afterwards default to it. By default nothing is logged; passing nil restores that.
//
// Parameters:
//   - l: the logger to install, or nil to disable logging
func SetLogger(l *slog.Logger) {
	common.SetLogger(l)
}

// Logger returns the logger shared by every engine package.
//
// Returns:
//   - *slog.Logger: the installed logger, never nil
func Logger() *slog.Logger {
	return common.Logger()
}
