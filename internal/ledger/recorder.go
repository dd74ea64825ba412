package ledger

import (
	"encoding/json"
	"fmt"
	"sync"

	"matrixci/internal/core"
	"matrixci/internal/security"
	"matrixci/pkg/utils"
)

// Recorder appends a signed entry for every plan it is given.
type Recorder struct {
	mu     sync.Mutex
	ledger *Ledger
	keys   *security.KeyPair
}

func NewRecorder(l *Ledger, kp *security.KeyPair) *Recorder {
	return &Recorder{ledger: l, keys: kp}
}

// PlanHash is the sha256 of the canonical JSON of a plan's job list.
func PlanHash(plan *core.Plan) (string, error) {
	data, err := json.Marshal(plan.Jobs)
	if err != nil {
		return "", err
	}
	return utils.HashBytes(data), nil
}

func (r *Recorder) Record(plan *core.Plan) error {
	planHash, err := PlanHash(plan)
	if err != nil {
		return fmt.Errorf("hash plan %s: %w", plan.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := NewEntry(r.ledger.NextIndex(), plan.Source, plan.SourceHash, plan.ID, planHash, len(plan.Jobs), r.ledger.LastHash())
	if err != nil {
		return err
	}
	return r.ledger.Append(e, r.keys)
}
