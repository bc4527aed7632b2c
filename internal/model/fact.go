package model

import (
	"time"

	"github.com/google/uuid"
)

// FactType enumerates the kinds of assertions a case fact can make.
type FactType string

const (
	FactTypeDate       FactType = "date"
	FactTypeParty      FactType = "party"
	FactTypeClaim      FactType = "claim"
	FactTypeEvidence   FactType = "evidence"
	FactTypeLegalPoint FactType = "legal_point"
	FactTypeGeneral    FactType = "general"
)

// Importance ranks how much a fact matters to the case.
type Importance string

const (
	ImportanceCritical Importance = "critical"
	ImportanceHigh     Importance = "high"
	ImportanceMedium   Importance = "medium"
	ImportanceLow      Importance = "low"
)

// VerificationStatus tracks the human judgment of whether a fact is true.
// AI-extracted facts enter as unverified; manual entries are self-verifying.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationVerified   VerificationStatus = "verified"
	VerificationDisputed   VerificationStatus = "disputed"
)

// SignOffStatus tracks the case-management disposition of a fact.
// Rejection excludes a fact from default listings and conflict scans
// but never deletes it.
type SignOffStatus string

const (
	SignOffSuggested SignOffStatus = "suggested"
	SignOffAccepted  SignOffStatus = "accepted"
	SignOffAmended   SignOffStatus = "amended"
	SignOffRejected  SignOffStatus = "rejected"
)

// RelationTypeContradicts is the only relation kind the detector currently
// produces. The heuristic covers date and party facts only; other fact types
// never generate relations.
const RelationTypeContradicts = "contradicts"

// Citation is a sourced reference attached to a fact. Immutable once attached.
type Citation struct {
	Source     string  `json:"source" validate:"required"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	SnippetID  *string `json:"snippet_id,omitempty"`
	Text       *string `json:"text,omitempty"`
}

// CaseFact is a discrete assertion about a case. The core fields (type, text,
// citations, provenance) are immutable after creation; only the governance
// fields change, each via an explicit operation.
type CaseFact struct {
	ID       uuid.UUID `json:"id"`
	CaseID   uuid.UUID `json:"case_id"`
	FactType FactType  `json:"fact_type"`
	FactText string    `json:"fact_text"`

	// Populated only for date facts whose text contains a recognizable
	// date pattern. May stay nil when parsing fails.
	FactDate *time.Time `json:"fact_date,omitempty"`

	// Provenance pointers to an external document. Never dereferenced here.
	SourceDocumentID *uuid.UUID `json:"source_document_id,omitempty"`
	SourcePage       *string    `json:"source_page,omitempty"`
	SourceText       *string    `json:"source_text,omitempty"`

	Citations []Citation `json:"citations,omitempty"`

	ExtractedByAI       bool       `json:"extracted_by_ai"`
	ExtractionModel     *string    `json:"extraction_model,omitempty"`
	ExtractionTimestamp *time.Time `json:"extraction_timestamp,omitempty"`

	// Mean of citation confidences; 0 when there are no citations.
	ConfidenceScore float64 `json:"confidence_score"`

	VerificationStatus VerificationStatus `json:"verification_status"`
	VerifiedBy         *string            `json:"verified_by,omitempty"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`

	Importance Importance `json:"importance"`
	Category   *string    `json:"category,omitempty"`
	Tags       []string   `json:"tags,omitempty"`

	SignOffStatus   SignOffStatus `json:"sign_off_status"`
	SignOffBy       *string       `json:"sign_off_by,omitempty"`
	SignOffAt       *time.Time    `json:"sign_off_at,omitempty"`
	AmendmentReason *string       `json:"amendment_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FactRelation links two facts of the same case. Created automatically when
// a newly saved fact contradicts an existing one; fact_id is always the
// newer fact.
type FactRelation struct {
	FactID        uuid.UUID `json:"fact_id"`
	RelatedFactID uuid.UUID `json:"related_fact_id"`
	RelationType  string    `json:"relation_type"`
	Confidence    float64   `json:"confidence"`
	CreatedAt     time.Time `json:"created_at"`
}

// Case is the owning entity for facts. The engine only checks existence;
// full case management lives elsewhere.
type Case struct {
	ID         uuid.UUID `json:"id"`
	CaseNumber string    `json:"case_number"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ValidFactType reports whether t is one of the known fact types.
func ValidFactType(t FactType) bool {
	switch t {
	case FactTypeDate, FactTypeParty, FactTypeClaim, FactTypeEvidence, FactTypeLegalPoint, FactTypeGeneral:
		return true
	}
	return false
}

// ValidImportance reports whether i is one of the known importance levels.
func ValidImportance(i Importance) bool {
	switch i {
	case ImportanceCritical, ImportanceHigh, ImportanceMedium, ImportanceLow:
		return true
	}
	return false
}
