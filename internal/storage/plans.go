package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"matrixci/internal/core"
	"matrixci/pkg/utils"
)

// ErrPlanNotFound is returned by FindPlan when no saved plan has the id.
var ErrPlanNotFound = errors.New("plan not found")

// PlanStorage manages saving expanded plans to files
type PlanStorage struct {
	BaseDir string
}

// NewPlanStorage creates a new plan storage handler
func NewPlanStorage(baseDir string) *PlanStorage {
	return &PlanStorage{BaseDir: baseDir}
}

// SavePlan writes the plan as indented JSON and returns its path.
func (ps *PlanStorage) SavePlan(plan *core.Plan) (string, error) {
	if err := os.MkdirAll(ps.BaseDir, 0775); err != nil {
		return "", err
	}

	// source name, timestamp and id prefix keep names unique and sortable
	source := strings.TrimSuffix(filepath.Base(plan.Source), filepath.Ext(plan.Source))
	filename := fmt.Sprintf("%s_%s_%s.json", utils.Slug(source), plan.CreatedAt.UTC().Format("20060102_150405"), idSuffix(plan.ID))
	path := filepath.Join(ps.BaseDir, filename)

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// LoadPlan reads a plan written by SavePlan.
func (ps *PlanStorage) LoadPlan(path string) (*core.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var plan core.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", path, err)
	}
	return &plan, nil
}

// ListPlans returns the saved plan files sorted by name. A missing directory
// holds no plans.
func (ps *PlanStorage) ListPlans() ([]string, error) {
	entries, err := os.ReadDir(ps.BaseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(ps.BaseDir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// FindPlan loads the saved plan with the given id.
func (ps *PlanStorage) FindPlan(id string) (*core.Plan, error) {
	if id == "" {
		return nil, ErrPlanNotFound
	}
	paths, err := ps.ListPlans()
	if err != nil {
		return nil, err
	}
	suffix := "_" + idSuffix(id) + ".json"
	for _, path := range paths {
		if !strings.HasSuffix(path, suffix) {
			continue
		}
		plan, err := ps.LoadPlan(path)
		if err != nil {
			return nil, err
		}
		if plan.ID == id {
			return plan, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
}

func idSuffix(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return utils.Slug(id)
}
