package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel string
	DevMode  bool
}

// Logger is the logging surface used across the service.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})
	With(keysAndValues ...interface{}) Logger
	Sync() error
}

type appLogger struct {
	sugar *zap.SugaredLogger
}

var levels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
	"fatal": zapcore.FatalLevel,
}

func NewAppLogger(cfg *Config) Logger {
	level, ok := levels[cfg.LogLevel]
	if !ok {
		level = zapcore.InfoLevel
	}

	var encoderCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if cfg.DevMode {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "time"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zap.NewAtomicLevelAt(level))
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &appLogger{sugar: l.Sugar()}
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() Logger {
	return &appLogger{sugar: zap.NewNop().Sugar()}
}

func (l *appLogger) Debug(args ...interface{})                   { l.sugar.Debug(args...) }
func (l *appLogger) Debugf(template string, args ...interface{}) { l.sugar.Debugf(template, args...) }
func (l *appLogger) Info(args ...interface{})                    { l.sugar.Info(args...) }
func (l *appLogger) Infof(template string, args ...interface{})  { l.sugar.Infof(template, args...) }
func (l *appLogger) Warn(args ...interface{})                    { l.sugar.Warn(args...) }
func (l *appLogger) Warnf(template string, args ...interface{})  { l.sugar.Warnf(template, args...) }
func (l *appLogger) Error(args ...interface{})                   { l.sugar.Error(args...) }
func (l *appLogger) Errorf(template string, args ...interface{}) { l.sugar.Errorf(template, args...) }
func (l *appLogger) Fatal(args ...interface{})                   { l.sugar.Fatal(args...) }
func (l *appLogger) Fatalf(template string, args ...interface{}) { l.sugar.Fatalf(template, args...) }

func (l *appLogger) With(keysAndValues ...interface{}) Logger {
	return &appLogger{sugar: l.sugar.With(keysAndValues...)}
}

func (l *appLogger) Sync() error {
	return l.sugar.Sync()
}
