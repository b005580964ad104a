package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var zerologLevels = map[Level]zerolog.Level{
	DebugLevel: zerolog.DebugLevel,
	InfoLevel:  zerolog.InfoLevel,
	WarnLevel:  zerolog.WarnLevel,
	ErrorLevel: zerolog.ErrorLevel,
}

// ParseLevel maps a flag value onto a Level, defaulting to info
func ParseLevel(s string) Level {
	if _, ok := zerologLevels[Level(s)]; ok {
		return Level(s)
	}
	return InfoLevel
}

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init configures the global logger. Unknown levels log at info.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(zerologLevels[ParseLevel(string(cfg.Level))])

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithNodeID creates a child logger for inventory changes to one node
func WithNodeID(nodeID string) zerolog.Logger {
	return Logger.With().Str("node_id", nodeID).Logger()
}

// WithFileID creates a child logger for one placement decision
func WithFileID(fileID string) zerolog.Logger {
	return Logger.With().Str("file_id", fileID).Logger()
}

// WithStrategy creates a child logger with strategy field
func WithStrategy(strategy string) zerolog.Logger {
	return Logger.With().Str("strategy", strategy).Logger()
}
