package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/orgsync/pkg/constants"
)

// Config describes where log lines go and what they look like.
type Config struct {
	Level  string // trace, debug, info, warn, error or off
	Format string // json, console or auto
	Output string // stderr, stdout, discard or a file path

	NoColor   bool
	AddCaller bool

	// Fields are attached to every line.
	Fields map[string]any
}

// DefaultConfig reads LOG_LEVEL, LOG_FORMAT and LOG_OUTPUT, falling back to
// info-level auto-formatted output on stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:   envOr("LOG_LEVEL", "info"),
		Format:  envOr("LOG_FORMAT", "auto"),
		Output:  envOr("LOG_OUTPUT", "stderr"),
		NoColor: os.Getenv("NO_COLOR") != "",
	}
}

// NewLoggerFromConfig builds a logger and sets zerolog's global level to
// match, so a quiet CLI run also silences library loggers.
func NewLoggerFromConfig(cfg *Config) zerolog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	lc := zerolog.New(writerFor(cfg)).Level(level).With().Timestamp()
	if cfg.AddCaller {
		lc = lc.Caller()
	}
	for key, value := range cfg.Fields {
		lc = appendField(lc, key, value)
	}
	return lc.Logger()
}

var levelAliases = map[string]zerolog.Level{
	"":        zerolog.InfoLevel,
	"warning": zerolog.WarnLevel,
	"off":     zerolog.Disabled,
	"none":    zerolog.Disabled,
}

// ParseLevel maps a level name to a zerolog level. Unknown names mean info.
func ParseLevel(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if level, ok := levelAliases[name]; ok {
		return level
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func writerFor(cfg *Config) io.Writer {
	out := openOutput(cfg.Output)

	console := false
	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		console = true
	case "", "auto":
		f, ok := out.(*os.File)
		console = ok && isTerminal(f)
	}
	if !console {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: cfg.NoColor}
}

// openOutput falls back to stderr when a log file cannot be opened.
func openOutput(target string) io.Writer {
	switch strings.ToLower(target) {
	case "", "stderr":
		return os.Stderr
	case "stdout":
		return os.Stdout
	case "discard", "none":
		return io.Discard
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_APPEND|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return os.Stderr
	}
	return f
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
