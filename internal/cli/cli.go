// Package cli holds the setup shared by the overlay commands.
package cli

import (
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/config"
)

// ConfigFlag registers the -config flag on fs.
func ConfigFlag(fs *flag.FlagSet) *string {
	return fs.String("config", config.DefaultPath(), "configuration file")
}

// NewLogger returns a text logger writing to w at the configured level.
func NewLogger(l config.Log, w io.Writer) (*slog.Logger, error) {
	level, err := l.SlogLevel()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// SetupLogging installs a stderr logger as the overlay package logger.
func SetupLogging(l config.Log) error {
	lg, err := NewLogger(l, os.Stderr)
	if err != nil {
		return err
	}
	overlay.SetLogger(lg)
	return nil
}

// IsTerminal reports whether f is a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Color reports whether output to f should be coloured. NO_COLOR disables
// colour regardless of the terminal.
func Color(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return IsTerminal(f)
}
