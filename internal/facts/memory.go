package facts

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/veritas-legal/factgate/internal/model"
)

// MemoryRepository is an in-memory Repository for tests and local
// development. Safe for concurrent use; writes under CreateFactWithRelations
// are atomic under the mutex, matching the transactional contract.
type MemoryRepository struct {
	mu        sync.RWMutex
	cases     map[uuid.UUID]model.Case
	factsByID map[uuid.UUID]model.CaseFact
	relations []model.FactRelation
	seq       map[uuid.UUID]int // insertion order, for stable newest-first sorting
	nextSeq   int
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		cases:     make(map[uuid.UUID]model.Case),
		factsByID: make(map[uuid.UUID]model.CaseFact),
		seq:       make(map[uuid.UUID]int),
	}
}

// AddCase registers a case so facts can be attached to it.
func (r *MemoryRepository) AddCase(c model.Case) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases[c.ID] = c
}

// CaseExists implements Repository.
func (r *MemoryRepository) CaseExists(_ context.Context, caseID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cases[caseID]
	return ok, nil
}

// GetFact implements Repository.
func (r *MemoryRepository) GetFact(_ context.Context, id uuid.UUID) (model.CaseFact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fact, ok := r.factsByID[id]
	if !ok {
		return model.CaseFact{}, fmt.Errorf("fact %s: %w", id, ErrFactNotFound)
	}
	return fact, nil
}

// CreateFactWithRelations implements Repository.
func (r *MemoryRepository) CreateFactWithRelations(_ context.Context, fact model.CaseFact, relations []model.FactRelation) (model.CaseFact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factsByID[fact.ID] = fact
	r.seq[fact.ID] = r.nextSeq
	r.nextSeq++
	r.relations = append(r.relations, relations...)
	return fact, nil
}

// ListFactsByCase implements Repository.
func (r *MemoryRepository) ListFactsByCase(_ context.Context, caseID uuid.UUID, filters ListFilters) ([]model.CaseFact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.CaseFact
	for _, fact := range r.factsByID {
		if fact.CaseID != caseID {
			continue
		}
		if !filters.IncludeRejected && fact.SignOffStatus == model.SignOffRejected {
			continue
		}
		if filters.FactType != nil && fact.FactType != *filters.FactType {
			continue
		}
		if filters.VerificationStatus != nil && fact.VerificationStatus != *filters.VerificationStatus {
			continue
		}
		if filters.Importance != nil && fact.Importance != *filters.Importance {
			continue
		}
		out = append(out, fact)
	}

	// Newest first; insertion order breaks created_at ties.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.seq[out[i].ID] > r.seq[out[j].ID]
	})
	return out, nil
}

// ListCriticalDates implements Repository.
func (r *MemoryRepository) ListCriticalDates(_ context.Context, caseID uuid.UUID) ([]model.CaseFact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.CaseFact
	for _, fact := range r.factsByID {
		if fact.CaseID != caseID || fact.FactType != model.FactTypeDate {
			continue
		}
		if fact.SignOffStatus == model.SignOffRejected {
			continue
		}
		if fact.Importance != model.ImportanceCritical && fact.Importance != model.ImportanceHigh {
			continue
		}
		out = append(out, fact)
	}

	// Ascending by fact_date; undated facts sort last.
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].FactDate, out[j].FactDate
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})
	return out, nil
}

// UpdateGovernance implements Repository.
func (r *MemoryRepository) UpdateGovernance(_ context.Context, factID uuid.UUID, update GovernanceUpdate) (model.CaseFact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fact, ok := r.factsByID[factID]
	if !ok {
		return model.CaseFact{}, fmt.Errorf("fact %s: %w", factID, ErrFactNotFound)
	}

	if update.VerificationStatus != nil {
		fact.VerificationStatus = *update.VerificationStatus
		by := update.By
		at := update.At
		fact.VerifiedBy = &by
		fact.VerifiedAt = &at
	}
	if update.SignOffStatus != nil {
		fact.SignOffStatus = *update.SignOffStatus
		by := update.By
		at := update.At
		fact.SignOffBy = &by
		fact.SignOffAt = &at
	}
	if update.AmendmentReason != nil {
		fact.AmendmentReason = update.AmendmentReason
	}
	fact.UpdatedAt = update.At
	r.factsByID[factID] = fact
	return fact, nil
}

// Relations returns a copy of all persisted relations, for assertions.
func (r *MemoryRepository) Relations() []model.FactRelation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.FactRelation, len(r.relations))
	copy(out, r.relations)
	return out
}
