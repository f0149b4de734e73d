package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. Output goes to stderr so it
// never interleaves with the terminal UI on stdout.
func Init() {
	level := zerolog.ErrorLevel // default: production only shows errors

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch l {
		case "dev", "development", "debug":
			level = zerolog.DebugLevel
		case "info":
			level = zerolog.InfoLevel
		case "warn", "warning":
			level = zerolog.WarnLevel
		case "error", "production", "prod":
			level = zerolog.ErrorLevel
		}
	}

	zerolog.SetGlobalLevel(level)

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	if os.Getenv("LOG_FORMAT") == "json" {
		out = os.Stderr
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// Component returns a logger tagged with a module name, the convention used
// across all internal packages.
func Component(name string) zerolog.Logger {
	return log.With().Str("module", name).Logger()
}
