// Package unit covers ambient surfaces that don't have a natural home in
// any single internal package's own test suite.
package unit

import (
	"testing"

	"github.com/behrlich/go-httpx/internal/config"
)

func TestConfigDefaults(t *testing.T) {
	cfg := config.Default()

	if cfg.WorkerThreads <= 0 {
		t.Error("WorkerThreads should be positive")
	}
	if cfg.SlabCapacity <= 0 {
		t.Error("SlabCapacity should be positive")
	}
	if cfg.MaxIntentCredits == 0 {
		t.Error("MaxIntentCredits should be nonzero")
	}
	if cfg.PredictiveDepth <= 0 {
		t.Error("PredictiveDepth should be positive")
	}
	if cfg.ProductionMode {
		t.Error("default config should not enable production mode")
	}
}
