package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/orgsync/pkg/logging"
)

// NewLogger builds the CLI logger. The level comes from --log-level or
// LOG_LEVEL when set, then from -q, then from -v.
func NewLogger(config *Config) zerolog.Logger {
	level := determineLogLevel(config)
	verbose := level == zerolog.DebugLevel || level == zerolog.TraceLevel

	return logging.NewLoggerFromConfig(&logging.Config{
		Level:     level.String(),
		Format:    config.LogFormat,
		Output:    config.LogOutput,
		NoColor:   config.NoColor || os.Getenv("NO_COLOR") != "",
		AddCaller: verbose,
		Fields:    map[string]any{"app": "orgsync"},
	})
}

func determineLogLevel(config *Config) zerolog.Level {
	if name := strings.TrimSpace(config.LogLevel); name != "" {
		level := logging.ParseLevel(name)
		if _, err := zerolog.ParseLevel(strings.ToLower(name)); err != nil && level == zerolog.InfoLevel {
			fmt.Fprintf(os.Stderr, "Warning: unknown log level %q, using %s\n", name, level)
		}
		return level
	}

	switch {
	case config.Quiet:
		if config.Verbose {
			fmt.Fprintln(os.Stderr, "Warning: --verbose and --quiet both set, using --quiet")
		}
		return zerolog.WarnLevel
	case config.Verbose:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
