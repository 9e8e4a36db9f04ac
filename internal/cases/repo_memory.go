package cases

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu    sync.Mutex
	cases map[string]Case
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{cases: map[string]Case{}}
}

func (r *MemoryRepo) Create(ctx context.Context, c Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cases[c.ID]; exists {
		return fmt.Errorf("cases: duplicate id %s", c.ID)
	}
	r.cases[c.ID] = c
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return Case{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, id string, to CaseStatus) (Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return Case{}, ErrNotFound
	}
	if !canTransition(c.Status, to) {
		return Case{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.Status, to)
	}
	c.Status = to
	c.UpdatedAt = time.Now().UTC()
	r.cases[id] = c
	return c, nil
}

func (r *MemoryRepo) SetDiagnosisID(ctx context.Context, id, diagnosisID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return ErrNotFound
	}
	c.DiagnosisID = diagnosisID
	c.UpdatedAt = time.Now().UTC()
	r.cases[id] = c
	return nil
}
