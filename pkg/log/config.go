package log

import (
	"fmt"
	"strings"
)

// Config declares logger settings resolvable from flags or environment.
type Config struct {
	Level  string // debug|info|warn|error|fatal
	Format string // text|json
}

// ParseLevel converts a level name to a Level. Empty input is an error so
// callers can distinguish "unset" from "invalid".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// ApplyConfig builds a Logger from a declarative Config. Unset fields fall
// back to info level and text format.
func ApplyConfig(cfg *Config) (Logger, error) {
	level := InfoLevel
	if cfg != nil && cfg.Level != "" {
		l, err := ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		level = l
	}
	var formatter Formatter = &TextFormatter{}
	if cfg != nil {
		switch strings.ToLower(cfg.Format) {
		case "", "text":
		case "json":
			formatter = &JSONFormatter{}
		default:
			return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
		}
	}
	return NewLogger(WithLevel(level), WithFormatter(formatter), WithOutput(NewConsoleOutput())), nil
}
