package whatsapp

import (
	"fmt"

	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
)

// zapLogger routes whatsmeow logs into the global zap logger.
type zapLogger struct {
	log *zap.Logger
}

// NewZapLogger returns a whatsmeow logger named module.
func NewZapLogger(module string) waLog.Logger {
	return &zapLogger{log: zap.L().Named(module).With(zap.String("namespace", "whatsapp"))}
}

func (l *zapLogger) Debugf(msg string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(msg, args...))
}

func (l *zapLogger) Infof(msg string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(msg, args...))
}

func (l *zapLogger) Warnf(msg string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(msg, args...))
}

func (l *zapLogger) Errorf(msg string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(msg, args...))
}

func (l *zapLogger) Sub(module string) waLog.Logger {
	return &zapLogger{log: l.log.Named(module)}
}
