package app

import (
	"fmt"
	"log/slog"

	"matrixci/internal/config"
	"matrixci/internal/core"
	"matrixci/internal/ledger"
	"matrixci/internal/security"
	"matrixci/internal/storage"
)

// Recording wires a runner that saves every plan and records it in the ledger.
type Recording struct {
	Runner  *core.Runner
	Ledger  *ledger.Ledger
	Storage *storage.PlanStorage
}

// NewRecording opens the ledger and signing keys named by cfg. A missing key
// pair is generated on first use.
func NewRecording(cfg *config.Config, logger *slog.Logger) (*Recording, error) {
	l, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", cfg.LedgerPath, err)
	}
	kp, generated, err := security.EnsureKeyPair(cfg.KeyDir)
	if err != nil {
		return nil, fmt.Errorf("init signing keys in %s: %w", cfg.KeyDir, err)
	}
	if generated {
		logger.Info("Generated new ledger signing keys.", "dir", cfg.KeyDir)
	} else {
		logger.Debug("Loaded existing ledger signing keys.", "dir", cfg.KeyDir)
	}

	plans := storage.NewPlanStorage(cfg.PlanDir)
	runner := core.NewRunner(core.ExpandOptions{DefaultPythonVersion: cfg.DefaultPython})
	runner.Store = plans
	runner.Recorder = ledger.NewRecorder(l, kp)

	return &Recording{Runner: runner, Ledger: l, Storage: plans}, nil
}
