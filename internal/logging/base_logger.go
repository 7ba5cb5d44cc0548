// Package logging wires the gateway's structured logging: level parsing,
// an optional lumberjack-backed file sink, the ring buffer used by the
// debug CLI subcommand, and the Gin request-logging middleware.
package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetLogLevel parses a human-friendly level name and applies it to the
// package-global logrus logger. Unknown values fall back to InfoLevel.
func SetLogLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "verbose":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn", "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "quiet", "silent":
		log.SetLevel(log.FatalLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// SetupBaseLogger installs the text formatter, attaches the ring buffer
// hook, and optionally tees output to a rotated log file via lumberjack
// when logFilePath is non-empty.
func SetupBaseLogger(logFilePath string) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.AddHook(GlobalBuffer)

	if strings.TrimSpace(logFilePath) == "" {
		log.SetOutput(os.Stdout)
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
}
