package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.elastic.co/ecszerolog"
)

// Options selects the logger output.
type Options struct {
	Env    string
	Level  string
	Format string // console, json or ecs; empty picks console in development and json elsewhere
	Out    io.Writer
}

// New builds the root logger for the server. ECS output is meant for log
// shippers that index into Elasticsearch.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "json"
		if opts.Env == "development" {
			format = "console"
		}
	}

	var logger zerolog.Logger
	switch format {
	case "ecs":
		logger = ecszerolog.New(out)
	case "console":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	default:
		logger = zerolog.New(out).With().Timestamp().Logger()
	}

	return logger.Level(ParseLevel(opts.Level)).With().Str("service", "chart-server").Logger()
}

// ParseLevel falls back to info for unknown or empty values.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
