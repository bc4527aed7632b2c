// Package facts implements the fact governance engine: the citation gate for
// AI-extracted assertions, the verification and sign-off state machines, and
// conflict-relation bookkeeping over a case's fact record.
//
// The service is storage-agnostic: it orchestrates against the Repository
// capability, so the HTTP layer, tests, and any future transport share one
// governing contract.
package facts

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/veritas-legal/factgate/internal/compliance"
	"github.com/veritas-legal/factgate/internal/conflicts"
	"github.com/veritas-legal/factgate/internal/metrics"
	"github.com/veritas-legal/factgate/internal/model"
)

// DefaultBulkSyncLimit is the largest batch processed synchronously by
// BulkExtract; anything larger is scheduled in the background.
const DefaultBulkSyncLimit = 10

// Options holds optional service configuration.
type Options struct {
	// ExtractionModel is recorded on AI-extracted facts as provenance.
	ExtractionModel string
	// BulkSyncLimit overrides DefaultBulkSyncLimit when positive.
	BulkSyncLimit int
}

// Service is the fact governance engine.
type Service struct {
	repo    Repository
	checker *compliance.Checker
	sink    metrics.Sink
	logger  *slog.Logger

	extractionModel string
	bulkSyncLimit   int

	// bulkJobs tracks in-flight background extractions so shutdown can drain.
	bulkJobs sync.WaitGroup
}

// New creates the governance service. sink may be metrics.Nop{}.
func New(repo Repository, checker *compliance.Checker, sink metrics.Sink, logger *slog.Logger, opts Options) *Service {
	limit := opts.BulkSyncLimit
	if limit <= 0 {
		limit = DefaultBulkSyncLimit
	}
	return &Service{
		repo:            repo,
		checker:         checker,
		sink:            sink,
		logger:          logger,
		extractionModel: opts.ExtractionModel,
		bulkSyncLimit:   limit,
	}
}

// SaveFactInput carries everything needed to record one fact.
type SaveFactInput struct {
	CaseID           uuid.UUID
	FactText         string
	FactType         model.FactType
	SourceDocumentID *uuid.UUID
	SourcePage       *string
	SourceText       *string
	Citations        []model.Citation
	ExtractedByAI    bool
	Importance       model.Importance
	Category         *string
	Tags             []string
	UserID           string
}

// SaveFact records a fact after the compliance gate.
//
// The case must exist. AI-extracted facts must pass the citation policy or
// nothing is persisted and a hallucination block is counted. Manual entries
// skip the gate and enter verified under the acting user. After the insert,
// the new fact is compared against the case's existing non-rejected facts
// and a contradiction relation is stored for every hit — fact and relations
// commit together or not at all.
func (s *Service) SaveFact(ctx context.Context, input SaveFactInput) (model.CaseFact, error) {
	start := time.Now()
	defer func() { s.sink.OperationDuration(ctx, "save_fact", time.Since(start)) }()

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("factgate.case_id", input.CaseID.String()),
		attribute.String("factgate.fact_type", string(input.FactType)),
		attribute.Bool("factgate.extracted_by_ai", input.ExtractedByAI),
	)

	exists, err := s.repo.CaseExists(ctx, input.CaseID)
	if err != nil {
		return model.CaseFact{}, err
	}
	if !exists {
		return model.CaseFact{}, ErrCaseNotFound
	}

	// The anti-hallucination gate. Only AI-extracted facts are gated;
	// manual entries are trusted by construction.
	if input.ExtractedByAI {
		ok, reason := s.checker.CheckCitations(ctx, input.FactText, input.Citations)
		if !ok {
			s.sink.HallucinationBlock(ctx)
			s.logger.Warn("blocked fact without proper citations",
				"case_id", input.CaseID, "fact_text", truncateText(input.FactText, 100))
			return model.CaseFact{}, &CitationPolicyError{Reason: reason}
		}
	}

	now := time.Now().UTC()
	fact := model.CaseFact{
		ID:               uuid.New(),
		CaseID:           input.CaseID,
		FactType:         defaultFactType(input.FactType),
		FactText:         input.FactText,
		SourceDocumentID: input.SourceDocumentID,
		SourcePage:       input.SourcePage,
		SourceText:       input.SourceText,
		Citations:        input.Citations,
		ExtractedByAI:    input.ExtractedByAI,
		ConfidenceScore:  compliance.Confidence(input.Citations),
		Importance:       defaultImportance(input.Importance),
		Category:         input.Category,
		Tags:             input.Tags,
		SignOffStatus:    model.SignOffSuggested,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if input.ExtractedByAI {
		fact.VerificationStatus = model.VerificationUnverified
		if s.extractionModel != "" {
			fact.ExtractionModel = &s.extractionModel
		}
		ts := now
		fact.ExtractionTimestamp = &ts
	} else {
		// Manual entry is self-verifying.
		fact.VerificationStatus = model.VerificationVerified
		if input.UserID != "" {
			userID := input.UserID
			fact.VerifiedBy = &userID
		}
		verifiedAt := now
		fact.VerifiedAt = &verifiedAt
	}

	if fact.FactType == model.FactTypeDate {
		fact.FactDate = ExtractDate(input.FactText)
	}

	// Conflict detection sees the pre-transaction snapshot of the case.
	// Two concurrent saves can therefore miss a conflict between each other;
	// callers needing strict completeness serialize per case or rescan with
	// FindConflictingFacts afterward.
	existing, err := s.repo.ListFactsByCase(ctx, input.CaseID, ListFilters{})
	if err != nil {
		return model.CaseFact{}, err
	}
	relations := conflicts.RelationsFor(fact, existing)

	saved, err := s.repo.CreateFactWithRelations(ctx, fact, relations)
	if err != nil {
		return model.CaseFact{}, err
	}

	s.logger.Info("saved fact",
		"fact_id", saved.ID, "case_id", saved.CaseID,
		"fact_type", saved.FactType, "relations", len(relations))
	return saved, nil
}

// VerifyFact records the human judgment of a fact: verified or disputed.
// Independent of sign-off state. A disputed verdict requires a reason.
func (s *Service) VerifyFact(ctx context.Context, factID uuid.UUID, status model.VerificationStatus, userID string, reason *string) (model.CaseFact, error) {
	start := time.Now()
	defer func() { s.sink.OperationDuration(ctx, "verify_fact", time.Since(start)) }()

	if status != model.VerificationVerified && status != model.VerificationDisputed {
		return model.CaseFact{}, ErrInvalidStatus
	}
	if status == model.VerificationDisputed && emptyReason(reason) {
		return model.CaseFact{}, ErrReasonRequired
	}

	return s.repo.UpdateGovernance(ctx, factID, GovernanceUpdate{
		VerificationStatus: &status,
		By:                 userID,
		At:                 time.Now().UTC(),
		AmendmentReason:    reason,
	})
}

// SignOffFact records the case-management disposition of a fact. Rejection
// drops the fact from default listings, critical-date queries, and future
// conflict scans; it never deletes. An amended disposition requires a reason.
func (s *Service) SignOffFact(ctx context.Context, factID uuid.UUID, status model.SignOffStatus, userID string, reason *string) (model.CaseFact, error) {
	start := time.Now()
	defer func() { s.sink.OperationDuration(ctx, "sign_off_fact", time.Since(start)) }()

	if status != model.SignOffAccepted && status != model.SignOffAmended && status != model.SignOffRejected {
		return model.CaseFact{}, ErrInvalidStatus
	}
	if status == model.SignOffAmended && emptyReason(reason) {
		return model.CaseFact{}, ErrReasonRequired
	}

	updated, err := s.repo.UpdateGovernance(ctx, factID, GovernanceUpdate{
		SignOffStatus:   &status,
		By:              userID,
		At:              time.Now().UTC(),
		AmendmentReason: reason,
	})
	if err != nil {
		return model.CaseFact{}, err
	}

	s.sink.SignOff(ctx, string(status))
	s.logger.Info("fact signed off", "fact_id", factID, "status", status, "user", userID)
	return updated, nil
}

// GetFact returns a single fact by ID.
func (s *Service) GetFact(ctx context.Context, factID uuid.UUID) (model.CaseFact, error) {
	return s.repo.GetFact(ctx, factID)
}

// GetCaseFacts lists a case's facts, newest first, applying the filters.
func (s *Service) GetCaseFacts(ctx context.Context, caseID uuid.UUID, filters ListFilters) ([]model.CaseFact, error) {
	start := time.Now()
	defer func() { s.sink.OperationDuration(ctx, "get_case_facts", time.Since(start)) }()

	return s.repo.ListFactsByCase(ctx, caseID, filters)
}

// GetCriticalDates lists the case's critical and high importance date facts,
// ascending by date, excluding rejected ones.
func (s *Service) GetCriticalDates(ctx context.Context, caseID uuid.UUID) ([]model.CaseFact, error) {
	start := time.Now()
	defer func() { s.sink.OperationDuration(ctx, "get_critical_dates", time.Since(start)) }()

	return s.repo.ListCriticalDates(ctx, caseID)
}

// FindConflictingFacts runs the read-only pairwise contradiction scan over
// the case's non-rejected facts. It persists nothing; automatic relation
// creation happens only inside SaveFact.
func (s *Service) FindConflictingFacts(ctx context.Context, caseID uuid.UUID) ([]conflicts.Pair, error) {
	start := time.Now()
	defer func() { s.sink.OperationDuration(ctx, "find_conflicting_facts", time.Since(start)) }()

	caseFacts, err := s.repo.ListFactsByCase(ctx, caseID, ListFilters{})
	if err != nil {
		return nil, err
	}
	return conflicts.FindPairs(caseFacts), nil
}

// BulkResult reports the outcome of a bulk extraction. Either the batch ran
// synchronously (Saved and Failed populated) or it was scheduled in the
// background (Scheduled set with the candidate count).
type BulkResult struct {
	Saved          []model.CaseFact
	Failed         int
	Scheduled      bool
	ScheduledCount int
}

// BulkExtract saves AI-extracted candidates from one document. Candidates
// without citations, or failing the citation policy, are counted as failures
// and skipped — one bad candidate never aborts the batch. Batches above the
// sync limit are processed in the background from a detached context and
// acknowledged immediately.
func (s *Service) BulkExtract(ctx context.Context, caseID, documentID uuid.UUID, candidates []model.ExtractedFact) (BulkResult, error) {
	start := time.Now()
	defer func() { s.sink.OperationDuration(ctx, "bulk_extract_facts", time.Since(start)) }()

	if len(candidates) > s.bulkSyncLimit {
		bgCtx := context.WithoutCancel(ctx)
		s.bulkJobs.Add(1)
		go func() {
			defer s.bulkJobs.Done()
			saved, failed := s.processCandidates(bgCtx, caseID, documentID, candidates)
			s.logger.Info("background bulk extraction finished",
				"case_id", caseID, "document_id", documentID,
				"saved", len(saved), "failed", failed)
		}()
		return BulkResult{Scheduled: true, ScheduledCount: len(candidates)}, nil
	}

	saved, failed := s.processCandidates(ctx, caseID, documentID, candidates)
	return BulkResult{Saved: saved, Failed: failed}, nil
}

// DrainBulkJobs blocks until in-flight background extractions complete.
// Called during graceful shutdown.
func (s *Service) DrainBulkJobs() {
	s.bulkJobs.Wait()
}

func (s *Service) processCandidates(ctx context.Context, caseID, documentID uuid.UUID, candidates []model.ExtractedFact) ([]model.CaseFact, int) {
	var saved []model.CaseFact
	failed := 0

	for _, candidate := range candidates {
		if len(candidate.Citations) == 0 {
			s.logger.Warn("skipping candidate without citations",
				"case_id", caseID, "text", truncateText(candidate.Text, 50))
			failed++
			continue
		}

		fact, err := s.SaveFact(ctx, SaveFactInput{
			CaseID:           caseID,
			FactText:         candidate.Text,
			FactType:         defaultFactType(candidate.Type),
			SourceDocumentID: &documentID,
			SourcePage:       candidate.Page,
			SourceText:       candidate.SourceText,
			Citations:        candidate.Citations,
			ExtractedByAI:    true,
			Importance:       defaultImportance(candidate.Importance),
			Category:         candidate.Category,
			Tags:             candidate.Tags,
		})
		if err != nil {
			s.logger.Error("failed to save extracted fact", "case_id", caseID, "error", err)
			failed++
			continue
		}
		saved = append(saved, fact)
	}
	return saved, failed
}

func defaultFactType(t model.FactType) model.FactType {
	if t == "" {
		return model.FactTypeGeneral
	}
	return t
}

func defaultImportance(i model.Importance) model.Importance {
	if i == "" {
		return model.ImportanceMedium
	}
	return i
}

func emptyReason(reason *string) bool {
	return reason == nil || strings.TrimSpace(*reason) == ""
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
