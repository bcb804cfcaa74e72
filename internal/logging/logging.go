// Package logging configures the process-wide structured logger used by
// every component of the execution core.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. level is parsed case
// insensitively ("debug", "info", "warn", "error"); an empty or invalid
// level falls back to info. When pretty is true, output is a human-readable
// console writer (suitable for an interactive terminal); otherwise it is
// newline-delimited JSON (suitable for CI log collection).
func Init(level string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// ForFeature returns a logger annotated with a feature identity, used by the
// suite runner and call registry so every lifecycle line can be correlated
// back to the feature that produced it.
func ForFeature(featureID string) zerolog.Logger {
	return log.Logger.With().Str("feature", featureID).Logger()
}

// ForScenario returns a logger annotated with both feature and scenario name.
func ForScenario(featureID, scenarioName string) zerolog.Logger {
	return log.Logger.With().Str("feature", featureID).Str("scenario", scenarioName).Logger()
}
