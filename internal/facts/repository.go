package facts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-legal/factgate/internal/model"
)

// ListFilters narrows a case fact listing. Nil fields are ignored.
// Rejected facts are excluded unless IncludeRejected is set.
type ListFilters struct {
	FactType           *model.FactType
	VerificationStatus *model.VerificationStatus
	Importance         *model.Importance
	IncludeRejected    bool
}

// GovernanceUpdate mutates only the governance fields of a fact. The core
// fields (type, text, citations, provenance) are immutable after creation.
type GovernanceUpdate struct {
	VerificationStatus *model.VerificationStatus
	SignOffStatus      *model.SignOffStatus
	By                 string
	At                 time.Time
	AmendmentReason    *string
}

// Repository is the persistence capability the governance engine depends on.
// Implementations must provide transactional semantics for
// CreateFactWithRelations (fact and relations persist together or not at
// all) and read-after-write consistency within a call.
type Repository interface {
	// CaseExists reports whether the case is on file.
	CaseExists(ctx context.Context, caseID uuid.UUID) (bool, error)

	// GetFact returns a fact by ID, or an error wrapping ErrFactNotFound.
	GetFact(ctx context.Context, id uuid.UUID) (model.CaseFact, error)

	// CreateFactWithRelations persists a fact and its detected relations
	// atomically and returns the stored fact.
	CreateFactWithRelations(ctx context.Context, fact model.CaseFact, relations []model.FactRelation) (model.CaseFact, error)

	// ListFactsByCase returns the case's facts matching the filters,
	// newest-created-first.
	ListFactsByCase(ctx context.Context, caseID uuid.UUID, filters ListFilters) ([]model.CaseFact, error)

	// ListCriticalDates returns non-rejected date facts of critical or high
	// importance, ascending by fact_date.
	ListCriticalDates(ctx context.Context, caseID uuid.UUID) ([]model.CaseFact, error)

	// UpdateGovernance applies a governance mutation and returns the updated
	// fact, or an error wrapping ErrFactNotFound.
	UpdateGovernance(ctx context.Context, factID uuid.UUID, update GovernanceUpdate) (model.CaseFact, error)
}
