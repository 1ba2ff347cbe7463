package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"CloudCostIQ/internal/services/anomaly"
	"CloudCostIQ/internal/services/forecasting"
	"CloudCostIQ/pkg/logger"
)

// ModelType identifies the two registerable model families.
type ModelType string

const (
	ModelForecast ModelType = "forecast"
	ModelAnomaly  ModelType = "anomaly"
)

// Entry is one registered model version. Entries are append-only; exactly
// one per (org, type) is active.
type Entry struct {
	ID           string    `json:"id"`
	OrgID        string    `json:"org_id"`
	Type         ModelType `json:"type"`
	Path         string    `json:"path"`
	Active       bool      `json:"active"`
	TrainedAt    time.Time `json:"trained_at"`
	RegisteredAt time.Time `json:"registered_at"`
}

type key struct {
	org string
	typ ModelType
}

// Registry maps (org, model type) to the active trained model. Models are
// immutable; registering a new version saves its artifact, deactivates the
// previous entry and swaps the in-memory pointer under the lock.
type Registry struct {
	log *logger.Logger
	dir string

	mu          sync.RWMutex
	entries     []Entry
	forecasters map[string]*forecasting.Forecaster
	detectors   map[string]*anomaly.Detector
}

// Open loads the index from dir and restores every active model. A model
// whose artifact fails to load is logged and left unregistered; the caller
// trains a fresh one on demand.
func Open(log *logger.Logger, dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}
	r := &Registry{
		log:         log,
		dir:         dir,
		forecasters: map[string]*forecasting.Forecaster{},
		detectors:   map[string]*anomaly.Detector{},
	}

	b, err := os.ReadFile(r.indexPath())
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry index: %w", err)
	}
	if err := json.Unmarshal(b, &r.entries); err != nil {
		return nil, fmt.Errorf("parse registry index: %w", err)
	}

	for _, e := range r.entries {
		if !e.Active {
			continue
		}
		switch e.Type {
		case ModelForecast:
			f, err := forecasting.Load(log, e.Path)
			if err != nil {
				log.Warn("skipping forecast artifact",
					logger.String("org_id", e.OrgID), logger.Error(err))
				continue
			}
			r.forecasters[e.OrgID] = f
		case ModelAnomaly:
			d, err := anomaly.Load(log, e.Path)
			if err != nil {
				log.Warn("skipping anomaly artifact",
					logger.String("org_id", e.OrgID), logger.Error(err))
				continue
			}
			r.detectors[e.OrgID] = d
		}
	}
	return r, nil
}

func (r *Registry) indexPath() string {
	return filepath.Join(r.dir, "index.json")
}

func (r *Registry) artifactPath(orgID string, typ ModelType, ts time.Time) string {
	name := fmt.Sprintf("%s-%s-%s.json", typ, orgID, ts.Format("20060102T150405"))
	return filepath.Join(r.dir, name)
}

// RegisterForecaster persists the model and makes it the active version.
func (r *Registry) RegisterForecaster(orgID string, f *forecasting.Forecaster) (Entry, error) {
	now := time.Now().UTC()
	path := r.artifactPath(orgID, ModelForecast, now)
	if err := f.Save(path); err != nil {
		return Entry{}, fmt.Errorf("save forecast artifact: %w", err)
	}
	entry := Entry{
		ID:           fmt.Sprintf("%s-%s-%d", ModelForecast, orgID, now.UnixNano()),
		OrgID:        orgID,
		Type:         ModelForecast,
		Path:         path,
		Active:       true,
		TrainedAt:    f.TrainedAt(),
		RegisteredAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.deactivate(orgID, ModelForecast)
	r.entries = append(r.entries, entry)
	r.forecasters[orgID] = f
	if err := r.persistIndex(); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// RegisterDetector persists the model and makes it the active version.
func (r *Registry) RegisterDetector(orgID string, d *anomaly.Detector) (Entry, error) {
	now := time.Now().UTC()
	path := r.artifactPath(orgID, ModelAnomaly, now)
	if err := d.Save(path); err != nil {
		return Entry{}, fmt.Errorf("save anomaly artifact: %w", err)
	}
	entry := Entry{
		ID:           fmt.Sprintf("%s-%s-%d", ModelAnomaly, orgID, now.UnixNano()),
		OrgID:        orgID,
		Type:         ModelAnomaly,
		Path:         path,
		Active:       true,
		TrainedAt:    d.TrainedAt(),
		RegisteredAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.deactivate(orgID, ModelAnomaly)
	r.entries = append(r.entries, entry)
	r.detectors[orgID] = d
	if err := r.persistIndex(); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// deactivate clears the active flag on the current version. Caller holds the
// write lock.
func (r *Registry) deactivate(orgID string, typ ModelType) {
	for i := range r.entries {
		if r.entries[i].OrgID == orgID && r.entries[i].Type == typ {
			r.entries[i].Active = false
		}
	}
}

func (r *Registry) persistIndex() error {
	b, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry index: %w", err)
	}
	if err := os.WriteFile(r.indexPath(), b, 0o644); err != nil {
		return fmt.Errorf("write registry index: %w", err)
	}
	return nil
}

// Forecaster returns the active forecasting model for an org.
func (r *Registry) Forecaster(orgID string) (*forecasting.Forecaster, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.forecasters[orgID]
	return f, ok
}

// Detector returns the active anomaly model for an org.
func (r *Registry) Detector(orgID string) (*anomaly.Detector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detectors[orgID]
	return d, ok
}

// Entries returns the version history for an org, newest last.
func (r *Registry) Entries(orgID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.entries {
		if e.OrgID == orgID {
			out = append(out, e)
		}
	}
	return out
}

// Orgs returns every org with at least one registered model.
func (r *Registry) Orgs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, e := range r.entries {
		if !seen[e.OrgID] {
			seen[e.OrgID] = true
			out = append(out, e.OrgID)
		}
	}
	return out
}
