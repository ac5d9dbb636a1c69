// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects where and how logs are written.
type Options struct {
	// Level is a zerolog level name; empty means info.
	Level string
	// File, when set, receives JSON logs rotated by size.
	File string
	// Console mirrors logs to stderr in human-readable form.
	Console bool

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup installs the global logger and returns a closer for the log file, if any.
func Setup(opts Options) (io.Closer, error) {
	lvl := zerolog.InfoLevel
	if opts.Level != "" {
		var err error
		if lvl, err = zerolog.ParseLevel(strings.ToLower(opts.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var (
		writers []io.Writer
		closer  io.Closer = nopCloser{}
	)
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
			Compress:   true,
		}
		writers = append(writers, lj)
		closer = lj
	}
	if opts.Console || opts.File == "" {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return closer, nil
}

// CM log severities, syslog ordered.
const (
	CMAlert    int32 = 1
	CMCritical int32 = 2
	CMError    int32 = 3
	CMWarning  int32 = 4
	CMNotice   int32 = 5
	CMInfo     int32 = 6
	CMDebug    int32 = 7
)

// FromCMLevel maps a CM severity to a zerolog level.
func FromCMLevel(v int32) (zerolog.Level, bool) {
	switch v {
	case CMAlert:
		return zerolog.PanicLevel, true
	case CMCritical:
		return zerolog.FatalLevel, true
	case CMError:
		return zerolog.ErrorLevel, true
	case CMWarning:
		return zerolog.WarnLevel, true
	case CMNotice, CMInfo:
		return zerolog.InfoLevel, true
	case CMDebug:
		return zerolog.DebugLevel, true
	}
	return zerolog.NoLevel, false
}

// SetLevel changes the global level at runtime.
func SetLevel(l zerolog.Level) {
	zerolog.SetGlobalLevel(l)
	log.Info().Str("level", l.String()).Msg("log level changed")
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
