package logger

import (
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/config"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap's SugaredLogger so the rest of the core logs with a
// consistent structured key/value style.
type Logger struct {
	*zap.SugaredLogger
}

// NewLogger builds a Logger from configuration, switching between a
// development (console, colored) and production (JSON) encoder.
func NewLogger(cfg *config.Configuration) (*Logger, error) {
	var zapCfg zap.Config
	if cfg != nil && cfg.Deployment.Mode == types.ModeLocal {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg != nil {
		if level, err := zapcore.ParseLevel(string(cfg.Logging.Level)); err == nil {
			zapCfg.Level = zap.NewAtomicLevelAt(level)
		}
	}

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// Debugw, Infow, Warnw, Errorw are inherited from zap.SugaredLogger; these
// helpers exist for call sites that prefer printf-style formatting.
func (l *Logger) Debugf(template string, args ...interface{}) { l.SugaredLogger.Debugf(template, args...) }
func (l *Logger) Infof(template string, args ...interface{})  { l.SugaredLogger.Infof(template, args...) }
func (l *Logger) Warnf(template string, args ...interface{})  { l.SugaredLogger.Warnf(template, args...) }
func (l *Logger) Errorf(template string, args ...interface{}) { l.SugaredLogger.Errorf(template, args...) }

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.SugaredLogger.Sync()
}

// NewTestLogger returns a logger for tests. It passes a nil config, so it
// uses the production (JSON) encoder at the default info level.
func NewTestLogger() *Logger {
	l, err := NewLogger(nil)
	if err != nil {
		panic(err)
	}
	return l
}
