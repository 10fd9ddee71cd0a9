package logging

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// New builds the console logger used by the CLI and the MCP server. The MCP
// server speaks on stdout, so callers pass stderr.
func New(level string, w io.Writer) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
		Prefix:          "storygraph",
	}), nil
}

// Discard returns a logger that drops everything. Tests and library callers
// without a logger use it.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
