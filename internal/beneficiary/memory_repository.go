package beneficiary

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests and dev mode.
type MemoryRepository struct {
	mu            sync.RWMutex
	beneficiaries map[string]Beneficiary
}

// NewMemoryRepository builds an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{beneficiaries: make(map[string]Beneficiary)}
}

func (r *MemoryRepository) Create(_ context.Context, b Beneficiary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beneficiaries[b.ID] = b
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Beneficiary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.beneficiaries[id]
	if !ok {
		return Beneficiary{}, ErrNotFound
	}
	return b, nil
}

func (r *MemoryRepository) ListByAccount(_ context.Context, accountID string) ([]Beneficiary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Beneficiary
	for _, b := range r.beneficiaries {
		if b.AccountID == accountID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) SetActive(_ context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.beneficiaries[id]
	if !ok {
		return ErrNotFound
	}
	b.Active = active
	r.beneficiaries[id] = b
	return nil
}
