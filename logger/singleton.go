package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu       sync.RWMutex
	instance *zap.Logger
)

// Init builds the process logger from cfg and replaces the current one.
// If cfg cannot be built a production logger is used instead.
func Init(cfg Config) {
	l, err := New(cfg)
	if err != nil {
		l, _ = zap.NewProduction()
	}

	Set(l)
}

// Set replaces the process logger.
func Set(l *zap.Logger) {
	mu.Lock()
	instance = l
	mu.Unlock()
}

// L returns the process logger, creating a development logger on first use
// when Init was never called.
func L() *zap.Logger {
	mu.RLock()
	l := instance
	mu.RUnlock()

	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()

	if instance == nil {
		instance, _ = New(Config{Level: "info"})
		if instance == nil {
			instance = zap.NewNop()
		}
	}

	return instance
}

// Named returns the process logger with a component name.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushes buffered entries.
func Sync() error {
	return L().Sync()
}
