// Package zap adapts go.uber.org/zap to the types.Logger interface.
//
// The types.Logger method set is already compatible with zap.SugaredLogger's
// key/value variants; this package just pins the mapping and provides a
// convenient constructor.
//
// Usage:
//
//	z, _ := zap.NewProduction()
//	pool, _ := bastion.NewPool(factory,
//	    bastion.WithLogger(zapadapter.New(z.Sugar())),
//	)
package zap

import (
	"go.uber.org/zap"

	"github.com/bastionpool/bastion/types"
)

// Logger wraps a zap.SugaredLogger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New wraps a SugaredLogger as a types.Logger.
//
// Parameters:
//   - sugar: The sugared logger to delegate to
//
// Returns:
//   - *Logger: The adapter
func New(sugar *zap.SugaredLogger) *Logger {
	return &Logger{sugar: sugar}
}

// Debug logs a message at debug level with key/value pairs.
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs a message at info level with key/value pairs.
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a message at warn level with key/value pairs.
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs a message at error level with key/value pairs.
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Compile-time interface check.
var _ types.Logger = (*Logger)(nil)
