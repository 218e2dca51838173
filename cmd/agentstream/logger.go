package main

import (
	"fmt"
	"os"

	"github.com/agentstream-io/agentstream/pkg/config"
	"github.com/agentstream-io/agentstream/pkg/logger"
)

const (
	// DefaultLogFormat is used when neither a flag, an environment variable
	// nor the config file chooses one.
	DefaultLogFormat = "simple"

	logLevelEnvVar  = "LOG_LEVEL"
	logFileEnvVar   = "LOG_FILE"
	logFormatEnvVar = "LOG_FORMAT"
)

// initLoggerFromCLI initializes the logger from CLI flags and environment
// variables. Priority: CLI flags > env vars > defaults. The returned bool
// reports whether any flag or env var was set, so callers know whether the
// config file's logger section should apply instead.
func initLoggerFromCLI(cliLogLevel, cliLogFile, cliLogFormat string) (bool, func(), error) {
	logLevel := cliLogLevel
	if logLevel == "" {
		logLevel = os.Getenv(logLevelEnvVar)
	}
	logFile := cliLogFile
	if logFile == "" {
		logFile = os.Getenv(logFileEnvVar)
	}
	logFormat := cliLogFormat
	if logFormat == "" {
		logFormat = os.Getenv(logFormatEnvVar)
	}

	overridden := logLevel != "" || logFile != "" || logFormat != ""

	cleanup, err := initLogger(logLevel, logFile, logFormat)
	if err != nil {
		return false, nil, err
	}
	return overridden, cleanup, nil
}

// initLoggerFromConfig applies the config file's logger section. Called
// after config loading when no CLI flag or env var overrode the settings.
func initLoggerFromConfig(cfg *config.LoggerConfig) (func(), error) {
	return initLogger(cfg.Level, cfg.File, cfg.Format)
}

func initLogger(logLevel, logFile, logFormat string) (func(), error) {
	if logLevel == "" {
		logLevel = "info"
	}
	if logFormat == "" {
		logFormat = DefaultLogFormat
	}

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	var cleanup func()
	if logFile != "" {
		file, cleanupFn, err := logger.OpenLogFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = cleanupFn
	}

	logger.Init(level, output, logFormat)
	return cleanup, nil
}
