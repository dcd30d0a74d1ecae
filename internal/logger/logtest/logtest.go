// Package logtest captures engine log output in tests.
package logtest

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/lodestone/internal/logger"
)

// Observe routes the package logger into memory at level and above until
// the test ends.
func Observe(t testing.TB, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	logger.SetLogger(zap.New(core))
	t.Cleanup(func() { logger.SetLogger(nil) })
	return logs
}

// Warnings observes warnings and errors.
func Warnings(t testing.TB) *observer.ObservedLogs {
	return Observe(t, zapcore.WarnLevel)
}
