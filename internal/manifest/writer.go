package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/AnyUserName/sizefit/internal/search"
	"github.com/google/uuid"
)

// New creates an empty manifest for a run.
func New(preset string, target int64, params search.Params) *Manifest {
	return &Manifest{
		Version:     SupportedManifestVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		RunID:       uuid.NewString(),
		Preset:      preset,
		TargetBytes: target,
		Params:      params,
		Files:       make(map[string]Entry),
	}
}

// Add records the entry for key, replacing any previous one.
func (m *Manifest) Add(key string, e Entry) {
	if m.Files == nil {
		m.Files = make(map[string]Entry)
	}
	m.Files[key] = e
}

// ComputeStats recalculates aggregate statistics from entries.
// Failed is preserved since failures have no entry.
func (m *Manifest) ComputeStats() {
	s := Stats{Failed: m.Stats.Failed}
	s.TotalFiles = len(m.Files)
	for _, e := range m.Files {
		s.TotalInputBytes += e.Source.Size
		s.TotalOutputBytes += e.Output.Size
		s.TotalProbes += e.Output.Probes
		if e.Output.WithinBudget {
			s.WithinBudget++
		} else {
			s.OverBudget++
		}
		if e.Output.InBand {
			s.InBand++
		}
		if e.Output.Copied {
			s.Copied++
		}
	}
	m.Stats = s
}

// WriteJSON serializes the manifest to a JSON file with stable ordering.
func WriteJSON(m *Manifest, path string) error {
	m.ComputeStats()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON loads a manifest. Unknown fields are ignored.
func ReadJSON(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
