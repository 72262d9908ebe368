package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

var (
	Info    *log.Logger
	Warn    *log.Logger
	Debug   *log.Logger
	Verbose *log.Logger
	Error   *log.Logger
	Always  *log.Logger // Always logs to file regardless of log level
)

// Log levels in increasing verbosity. The configured level enables itself
// and everything below it.
var levels = map[string]int{
	"error":   0,
	"warn":    1,
	"info":    2,
	"debug":   3,
	"verbose": 4,
}

func Init() error {
	return InitWithLevel("info")
}

func InitWithLevel(logLevel string) error {
	return InitWithConfig(logLevel, "marlin.log")
}

func InitWithConfig(logLevel, logFilePath string) error {
	threshold, ok := levels[logLevel]
	if !ok {
		threshold = levels["info"]
	}

	// Open log file
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", logFilePath, err)
	}

	sink := func(level string) io.Writer {
		if levels[level] <= threshold {
			return logFile
		}
		return io.Discard
	}

	Info = log.New(sink("info"), "ℹ️  INFO: ", log.Ldate|log.Ltime)
	Warn = log.New(sink("warn"), "⚠️  WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
	Debug = log.New(sink("debug"), "🐛 DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	Verbose = log.New(sink("verbose"), "🔍 VERBOSE: ", log.Ldate|log.Ltime|log.Lshortfile)
	// Errors always reach stderr as well as the file
	Error = log.New(io.MultiWriter(os.Stderr, logFile), "❌ ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	Always = log.New(logFile, "📝 ALWAYS: ", log.Ldate|log.Ltime)

	return nil
}
