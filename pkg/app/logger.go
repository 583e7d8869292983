package app

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the command logger. format is "console" or "json"; an empty level
// means info.
func NewLogger(level, format string, w io.Writer) (zerolog.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), NewError(ErrCodeInvalidInput, fmt.Sprintf("unknown log level %q", level), err)
	}

	var out io.Writer
	switch format {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	case "json":
		out = w
	default:
		return zerolog.Nop(), NewError(ErrCodeInvalidInput, fmt.Sprintf("unknown log format %q", format), nil)
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
