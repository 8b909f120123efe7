// Package observability owns the CLI's single structured logger.
//
// CLILogger is a package-level *zap.Logger, constructed once by Init from
// the resolved Logging.Level/Logging.Profile configuration, then used
// directly by every cobra command (observability.CLILogger.Info(...),
// .Warn(...), .Error(...)) with structured fields rather than format
// strings.
package observability

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is ready to use before Init runs (a no-op logger), so code
// paths exercised by tests never need to call Init first.
var CLILogger = zap.NewNop()

// Init builds CLILogger from the resolved logging configuration.
// profile "STRUCTURED" (case-insensitive) selects a JSON encoder for
// machine consumption in CI; anything else selects a colorized console
// encoder for interactive use.
func Init(level, profile string) error {
	zapLevel, err := parseLevel(level)
	if err != nil {
		return err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(profile, "STRUCTURED") {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), zapLevel)
	CLILogger = zap.New(core)
	return nil
}

func parseLevel(level string) (zapcore.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("observability: invalid logging level %q: %w", level, err)
	}
	return l, nil
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	_ = CLILogger.Sync()
}
