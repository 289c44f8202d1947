package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

func TestRulesWatcherMissingFile(t *testing.T) {
	w := NewRulesWatcher(filepath.Join(t.TempDir(), "none.yaml"), logger.NewNop())
	assert.Error(t, w.Start(context.Background()))
}

func TestRulesWatcherStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(sampleRulesYAML), 0o644))

	w := NewRulesWatcher(path, logger.NewNop())

	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()
	w.Stop()
	assert.NoError(t, <-done)
}
