package logger

import (
	"go.uber.org/zap"
)

// New builds the process logger. Namespace ends up as an initial field on
// every entry so log lines from the agent and its fakes stay separable.
func New(namespace string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.InitialFields = map[string]interface{}{
		"namespace": namespace,
	}

	log, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return log
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
