package facts_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-legal/factgate/internal/compliance"
	"github.com/veritas-legal/factgate/internal/facts"
	"github.com/veritas-legal/factgate/internal/model"
)

// recordingSink captures metric observations for assertions.
type recordingSink struct {
	mu       sync.Mutex
	checks   []bool
	blocks   int
	signOffs []string
}

func (s *recordingSink) CitationCheck(_ context.Context, passed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, passed)
}

func (s *recordingSink) HallucinationBlock(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks++
}

func (s *recordingSink) SignOff(_ context.Context, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signOffs = append(s.signOffs, status)
}

func (s *recordingSink) OperationDuration(context.Context, string, time.Duration) {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	svc    *facts.Service
	repo   *facts.MemoryRepository
	sink   *recordingSink
	caseID uuid.UUID
}

func newFixture(t *testing.T, opts facts.Options) *fixture {
	t.Helper()

	repo := facts.NewMemoryRepository()
	caseID := uuid.New()
	repo.AddCase(model.Case{ID: caseID, CaseNumber: "2024-HC-0001", Title: "Jones v Smith Ltd"})

	sink := &recordingSink{}
	checker := compliance.NewChecker(func() compliance.Policy {
		return compliance.Policy{
			CitationRequired:       true,
			MinCitationConfidence:  0.95,
			AllowedCitationDomains: []string{"legislation.gov.uk", "bailii.org", "judiciary.uk"},
		}
	}, sink, testLogger())

	return &fixture{
		svc:    facts.New(repo, checker, sink, testLogger(), opts),
		repo:   repo,
		sink:   sink,
		caseID: caseID,
	}
}

func goodCitation() model.Citation {
	return model.Citation{Source: "https://www.bailii.org/ew/cases/EWCA/Civ/2020/123.html", Confidence: 0.99}
}

func strPtr(s string) *string { return &s }

func TestSaveFactUnknownCase(t *testing.T) {
	f := newFixture(t, facts.Options{})

	_, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   uuid.New(),
		FactText: "some fact",
		FactType: model.FactTypeGeneral,
	})
	assert.ErrorIs(t, err, facts.ErrCaseNotFound)
}

func TestSaveFactBlocksUncitedAIFact(t *testing.T) {
	f := newFixture(t, facts.Options{})

	_, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:        f.caseID,
		FactText:      "The defendant admitted liability",
		FactType:      model.FactTypeClaim,
		ExtractedByAI: true,
	})

	var policyErr *facts.CitationPolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Contains(t, policyErr.Error(), "facts must include valid citations from approved sources")

	// Nothing persisted, block counted.
	list, err := f.repo.ListFactsByCase(context.Background(), f.caseID, facts.ListFilters{IncludeRejected: true})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 1, f.sink.blocks)
}

func TestSaveFactAIWithValidCitations(t *testing.T) {
	f := newFixture(t, facts.Options{ExtractionModel: "mistral:7b-instruct-q4_0"})

	saved, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   f.caseID,
		FactText: "The claim was issued within the limitation period",
		FactType: model.FactTypeLegalPoint,
		Citations: []model.Citation{
			{Source: "https://www.legislation.gov.uk/ukpga/1980/58", Confidence: 0.98},
			{Source: "https://www.bailii.org/ew/cases/EWHC/QB/2021/99.html", Confidence: 0.96},
		},
		ExtractedByAI: true,
		UserID:        "paralegal.jones",
	})
	require.NoError(t, err)

	assert.Equal(t, model.VerificationUnverified, saved.VerificationStatus)
	assert.Equal(t, model.SignOffSuggested, saved.SignOffStatus)
	assert.InDelta(t, 0.97, saved.ConfidenceScore, 1e-9)
	require.NotNil(t, saved.ExtractionModel)
	assert.Equal(t, "mistral:7b-instruct-q4_0", *saved.ExtractionModel)
	assert.NotNil(t, saved.ExtractionTimestamp)
	assert.Nil(t, saved.VerifiedBy)
}

func TestSaveFactManualEntrySkipsGate(t *testing.T) {
	f := newFixture(t, facts.Options{})

	saved, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   f.caseID,
		FactText: "Client confirmed instructions by phone",
		FactType: model.FactTypeGeneral,
		UserID:   "solicitor.patel",
	})
	require.NoError(t, err)

	assert.Equal(t, model.VerificationVerified, saved.VerificationStatus)
	require.NotNil(t, saved.VerifiedBy)
	assert.Equal(t, "solicitor.patel", *saved.VerifiedBy)
	assert.NotNil(t, saved.VerifiedAt)
	assert.Equal(t, 0.0, saved.ConfidenceScore)
	assert.Equal(t, 0, f.sink.blocks)
	assert.Empty(t, f.sink.checks)
}

func TestSaveFactDefaultsTypeAndImportance(t *testing.T) {
	f := newFixture(t, facts.Options{})

	saved, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   f.caseID,
		FactText: "unclassified note",
		UserID:   "solicitor.patel",
	})
	require.NoError(t, err)
	assert.Equal(t, model.FactTypeGeneral, saved.FactType)
	assert.Equal(t, model.ImportanceMedium, saved.Importance)
}

func TestSaveFactExtractsDateForDateFacts(t *testing.T) {
	f := newFixture(t, facts.Options{})

	saved, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   f.caseID,
		FactText: "Hearing listed for 15 March 2024",
		FactType: model.FactTypeDate,
		UserID:   "solicitor.patel",
	})
	require.NoError(t, err)
	require.NotNil(t, saved.FactDate)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), *saved.FactDate)

	// Non-date facts never get a parsed date, even with a date in the text.
	saved, err = f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   f.caseID,
		FactText: "Letter of 15 March 2024 acknowledged the debt",
		FactType: model.FactTypeEvidence,
		UserID:   "solicitor.patel",
	})
	require.NoError(t, err)
	assert.Nil(t, saved.FactDate)
}

func TestSaveFactCreatesConflictRelations(t *testing.T) {
	f := newFixture(t, facts.Options{})
	cat := strPtr("hearing")

	first, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   f.caseID,
		FactText: "Hearing listed for 15/03/2024",
		FactType: model.FactTypeDate,
		Category: cat,
		UserID:   "solicitor.patel",
	})
	require.NoError(t, err)

	second, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   f.caseID,
		FactText: "Hearing listed for 22/03/2024",
		FactType: model.FactTypeDate,
		Category: cat,
		UserID:   "solicitor.patel",
	})
	require.NoError(t, err)

	relations := f.repo.Relations()
	require.Len(t, relations, 1)
	assert.Equal(t, second.ID, relations[0].FactID)
	assert.Equal(t, first.ID, relations[0].RelatedFactID)
	assert.Equal(t, model.RelationTypeContradicts, relations[0].RelationType)
	assert.Equal(t, 0.8, relations[0].Confidence)
}

func TestSaveFactSkipsRejectedInConflictScan(t *testing.T) {
	f := newFixture(t, facts.Options{})
	cat := strPtr("hearing")

	first, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   f.caseID,
		FactText: "Hearing listed for 15/03/2024",
		FactType: model.FactTypeDate,
		Category: cat,
		UserID:   "solicitor.patel",
	})
	require.NoError(t, err)

	_, err = f.svc.SignOffFact(context.Background(), first.ID, model.SignOffRejected, "partner.lee", nil)
	require.NoError(t, err)

	_, err = f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   f.caseID,
		FactText: "Hearing listed for 22/03/2024",
		FactType: model.FactTypeDate,
		Category: cat,
		UserID:   "solicitor.patel",
	})
	require.NoError(t, err)

	assert.Empty(t, f.repo.Relations())
}

func TestVerifyFact(t *testing.T) {
	f := newFixture(t, facts.Options{})

	saved, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:        f.caseID,
		FactText:      "The claim form was served on 01/02/2024",
		FactType:      model.FactTypeDate,
		Citations:     []model.Citation{goodCitation()},
		ExtractedByAI: true,
	})
	require.NoError(t, err)
	require.Equal(t, model.VerificationUnverified, saved.VerificationStatus)

	t.Run("invalid status rejected", func(t *testing.T) {
		_, err := f.svc.VerifyFact(context.Background(), saved.ID, "unverified", "solicitor.patel", nil)
		assert.ErrorIs(t, err, facts.ErrInvalidStatus)
	})

	t.Run("disputed requires a reason", func(t *testing.T) {
		_, err := f.svc.VerifyFact(context.Background(), saved.ID, model.VerificationDisputed, "solicitor.patel", nil)
		assert.ErrorIs(t, err, facts.ErrReasonRequired)

		_, err = f.svc.VerifyFact(context.Background(), saved.ID, model.VerificationDisputed, "solicitor.patel", strPtr("   "))
		assert.ErrorIs(t, err, facts.ErrReasonRequired)
	})

	t.Run("verified records attribution", func(t *testing.T) {
		updated, err := f.svc.VerifyFact(context.Background(), saved.ID, model.VerificationVerified, "solicitor.patel", nil)
		require.NoError(t, err)
		assert.Equal(t, model.VerificationVerified, updated.VerificationStatus)
		require.NotNil(t, updated.VerifiedBy)
		assert.Equal(t, "solicitor.patel", *updated.VerifiedBy)
		assert.NotNil(t, updated.VerifiedAt)
		// Sign-off axis untouched.
		assert.Equal(t, model.SignOffSuggested, updated.SignOffStatus)
	})

	t.Run("disputed with reason", func(t *testing.T) {
		updated, err := f.svc.VerifyFact(context.Background(), saved.ID, model.VerificationDisputed, "partner.lee", strPtr("contradicts the court order"))
		require.NoError(t, err)
		assert.Equal(t, model.VerificationDisputed, updated.VerificationStatus)
		require.NotNil(t, updated.AmendmentReason)
		assert.Equal(t, "contradicts the court order", *updated.AmendmentReason)
	})

	t.Run("unknown fact", func(t *testing.T) {
		_, err := f.svc.VerifyFact(context.Background(), uuid.New(), model.VerificationVerified, "solicitor.patel", nil)
		assert.ErrorIs(t, err, facts.ErrFactNotFound)
	})
}

func TestSignOffFact(t *testing.T) {
	f := newFixture(t, facts.Options{})

	saved, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   f.caseID,
		FactText: "Defendant is Smith Ltd",
		FactType: model.FactTypeParty,
		UserID:   "solicitor.patel",
	})
	require.NoError(t, err)

	t.Run("invalid status rejected", func(t *testing.T) {
		_, err := f.svc.SignOffFact(context.Background(), saved.ID, "suggested", "partner.lee", nil)
		assert.ErrorIs(t, err, facts.ErrInvalidStatus)
	})

	t.Run("amended requires a reason", func(t *testing.T) {
		_, err := f.svc.SignOffFact(context.Background(), saved.ID, model.SignOffAmended, "partner.lee", nil)
		assert.ErrorIs(t, err, facts.ErrReasonRequired)
	})

	t.Run("accepted records attribution and emits metric", func(t *testing.T) {
		updated, err := f.svc.SignOffFact(context.Background(), saved.ID, model.SignOffAccepted, "partner.lee", nil)
		require.NoError(t, err)
		assert.Equal(t, model.SignOffAccepted, updated.SignOffStatus)
		require.NotNil(t, updated.SignOffBy)
		assert.Equal(t, "partner.lee", *updated.SignOffBy)
		assert.NotNil(t, updated.SignOffAt)
		assert.Equal(t, []string{"accepted"}, f.sink.signOffs)
	})

	t.Run("rejection hides the fact without deleting it", func(t *testing.T) {
		_, err := f.svc.SignOffFact(context.Background(), saved.ID, model.SignOffRejected, "partner.lee", nil)
		require.NoError(t, err)

		list, err := f.svc.GetCaseFacts(context.Background(), f.caseID, facts.ListFilters{})
		require.NoError(t, err)
		assert.Empty(t, list)

		list, err = f.svc.GetCaseFacts(context.Background(), f.caseID, facts.ListFilters{IncludeRejected: true})
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestGetCaseFactsOrderAndFilters(t *testing.T) {
	f := newFixture(t, facts.Options{})

	first, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   f.caseID,
		FactText: "first fact",
		FactType: model.FactTypeClaim,
		UserID:   "solicitor.patel",
	})
	require.NoError(t, err)

	second, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:     f.caseID,
		FactText:   "second fact",
		FactType:   model.FactTypeEvidence,
		Importance: model.ImportanceCritical,
		UserID:     "solicitor.patel",
	})
	require.NoError(t, err)

	list, err := f.svc.GetCaseFacts(context.Background(), f.caseID, facts.ListFilters{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, first.ID, list[1].ID)

	ft := model.FactTypeClaim
	list, err = f.svc.GetCaseFacts(context.Background(), f.caseID, facts.ListFilters{FactType: &ft})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	imp := model.ImportanceCritical
	list, err = f.svc.GetCaseFacts(context.Background(), f.caseID, facts.ListFilters{Importance: &imp})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)
}

func TestGetCriticalDates(t *testing.T) {
	f := newFixture(t, facts.Options{})

	later, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:     f.caseID,
		FactText:   "Trial window opens 01/09/2024",
		FactType:   model.FactTypeDate,
		Importance: model.ImportanceCritical,
		Category:   strPtr("trial"),
		UserID:     "solicitor.patel",
	})
	require.NoError(t, err)

	earlier, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:     f.caseID,
		FactText:   "Disclosure due 01/06/2024",
		FactType:   model.FactTypeDate,
		Importance: model.ImportanceHigh,
		Category:   strPtr("disclosure"),
		UserID:     "solicitor.patel",
	})
	require.NoError(t, err)

	// Medium importance and non-date facts stay out.
	_, err = f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   f.caseID,
		FactText: "CMC held 01/05/2024",
		FactType: model.FactTypeDate,
		Category: strPtr("cmc"),
		UserID:   "solicitor.patel",
	})
	require.NoError(t, err)

	dates, err := f.svc.GetCriticalDates(context.Background(), f.caseID)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, earlier.ID, dates[0].ID, "ascending by fact_date")
	assert.Equal(t, later.ID, dates[1].ID)
}

func TestFindConflictingFactsIsReadOnly(t *testing.T) {
	f := newFixture(t, facts.Options{})
	cat := strPtr("defendant")

	_, err := f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   f.caseID,
		FactText: "Defendant is Smith Ltd",
		FactType: model.FactTypeParty,
		Category: cat,
		UserID:   "solicitor.patel",
	})
	require.NoError(t, err)

	_, err = f.svc.SaveFact(context.Background(), facts.SaveFactInput{
		CaseID:   f.caseID,
		FactText: "Defendant is Smith Holdings Ltd",
		FactType: model.FactTypeParty,
		Category: cat,
		UserID:   "solicitor.patel",
	})
	require.NoError(t, err)

	before := len(f.repo.Relations())

	pairs, err := f.svc.FindConflictingFacts(context.Background(), f.caseID)
	require.NoError(t, err)
	assert.Len(t, pairs, 1)

	// The scan itself writes nothing.
	assert.Equal(t, before, len(f.repo.Relations()))
}

func TestBulkExtractSync(t *testing.T) {
	f := newFixture(t, facts.Options{})
	docID := uuid.New()

	candidates := []model.ExtractedFact{
		{Text: "The lease commenced on 01/01/2020", Type: model.FactTypeDate, Citations: []model.Citation{goodCitation()}},
		{Text: "no citations on this one"},
		{Text: "bad citation", Citations: []model.Citation{{Source: "https://example.com", Confidence: 0.99}}},
	}

	result, err := f.svc.BulkExtract(context.Background(), f.caseID, docID, candidates)
	require.NoError(t, err)

	assert.False(t, result.Scheduled)
	require.Len(t, result.Saved, 1)
	assert.Equal(t, 2, result.Failed)

	saved := result.Saved[0]
	assert.True(t, saved.ExtractedByAI)
	require.NotNil(t, saved.SourceDocumentID)
	assert.Equal(t, docID, *saved.SourceDocumentID)
}

func TestBulkExtractSchedulesLargeBatches(t *testing.T) {
	f := newFixture(t, facts.Options{BulkSyncLimit: 2})
	docID := uuid.New()

	candidates := []model.ExtractedFact{
		{Text: "fact one", Citations: []model.Citation{goodCitation()}},
		{Text: "fact two", Citations: []model.Citation{goodCitation()}},
		{Text: "fact three", Citations: []model.Citation{goodCitation()}},
	}

	result, err := f.svc.BulkExtract(context.Background(), f.caseID, docID, candidates)
	require.NoError(t, err)
	assert.True(t, result.Scheduled)
	assert.Equal(t, 3, result.ScheduledCount)

	f.svc.DrainBulkJobs()

	list, err := f.svc.GetCaseFacts(context.Background(), f.caseID, facts.ListFilters{})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestBulkExtractUnknownCase(t *testing.T) {
	f := newFixture(t, facts.Options{})

	// Candidate errors are swallowed per candidate, so an unknown case
	// surfaces as all-failed rather than an error.
	result, err := f.svc.BulkExtract(context.Background(), uuid.New(), uuid.New(), []model.ExtractedFact{
		{Text: "fact", Citations: []model.Citation{goodCitation()}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Saved)
	assert.Equal(t, 1, result.Failed)
}
