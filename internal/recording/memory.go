package recording

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps recorded runs in memory. It is the default store
// when no database path is configured, and the one tests use.
type MemoryStore struct {
	mu      sync.RWMutex
	labels  map[string]string
	spikes  map[string][]SpikeRecord
	samples map[string][]Sample
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		labels:  make(map[string]string),
		spikes:  make(map[string][]SpikeRecord),
		samples: make(map[string][]Sample),
	}
}

func (s *MemoryStore) NewRun(_ context.Context, label string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.labels[id] = label
	return id, nil
}

func (s *MemoryStore) WriteSpikes(_ context.Context, runID string, records []SpikeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.labels[runID]; !ok {
		return fmt.Errorf("unknown run %q", runID)
	}
	s.spikes[runID] = append(s.spikes[runID], records...)
	return nil
}

func (s *MemoryStore) WriteSamples(_ context.Context, runID string, samples []Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.labels[runID]; !ok {
		return fmt.Errorf("unknown run %q", runID)
	}
	s.samples[runID] = append(s.samples[runID], samples...)
	return nil
}

func (s *MemoryStore) Spikes(_ context.Context, runID string) ([]SpikeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.labels[runID]; !ok {
		return nil, fmt.Errorf("unknown run %q", runID)
	}
	out := make([]SpikeRecord, len(s.spikes[runID]))
	copy(out, s.spikes[runID])
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Step != out[j].Step {
			return out[i].Step < out[j].Step
		}
		return out[i].Source < out[j].Source
	})
	return out, nil
}

func (s *MemoryStore) Samples(_ context.Context, runID string) ([]Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.labels[runID]; !ok {
		return nil, fmt.Errorf("unknown run %q", runID)
	}
	out := make([]Sample, len(s.samples[runID]))
	copy(out, s.samples[runID])
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Step != out[j].Step {
			return out[i].Step < out[j].Step
		}
		if out[i].Node != out[j].Node {
			return out[i].Node < out[j].Node
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
