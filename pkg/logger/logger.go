package logger

import (
	"go.uber.org/zap"
)

var Log *zap.Logger

func NewLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// NewNop returns a silent logger for tests.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
