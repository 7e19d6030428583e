// Package config defines the runtime configuration surface the core
// consumes. Loading it from flags/env/file is an external collaborator's
// job (see cmd/httpx-server), not the core's.
package config

import "github.com/behrlich/go-httpx/internal/constants"

// Config names the runtime-tunable knobs a running server needs.
type Config struct {
	Host string
	Port uint16

	// WorkerThreads is the number of per-worker dispatcher loops.
	WorkerThreads int

	// MaxIntentCredits is the configured ceiling on outstanding intents
	// across a worker (distinct from a session's per-peer IIW credit). It
	// is loaded from flags/env but no component reads it; nothing bounds
	// outstanding intents per worker.
	MaxIntentCredits uint32

	// PredictiveDepth is the configured bit-path depth for speculative
	// decisions. It is loaded from flags/env but the engine does not read
	// it; the engine always walks a context's full bit path.
	PredictiveDepth int

	// SlabCapacity is the number of slots in the Secure Slab.
	SlabCapacity int

	// ProductionMode is passed to ring.Config, whose constructors ignore
	// it. It does not select the slab layout (slab.New always tries a
	// huge-page mapping first and falls back to the guarded layout) or the
	// ring backend (chosen at build time by the giouring tag), and no
	// backend enables kernel-poll submission.
	ProductionMode bool
}

// Default returns an unprivileged dev loopback listener with conservative
// slab/credit sizing.
func Default() Config {
	return Config{
		Host:             "127.0.0.1",
		Port:             8080,
		WorkerThreads:    2,
		MaxIntentCredits: constants.DefaultMaxIntentCredits,
		PredictiveDepth:  5,
		SlabCapacity:     1024,
		ProductionMode:   false,
	}
}
