package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/textmode-dev/joint/internal/errors"
)

// newLogger builds the process logger from the --log-level and
// --log-format flags.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.New("J400").
			WithDetail(fmt.Sprintf("--log-level %q", level)).
			WithSuggestion("Use debug, info, warn or error")
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.New("J400").
			WithDetail(fmt.Sprintf("--log-format %q", format)).
			WithSuggestion("Use text or json")
	}
}
