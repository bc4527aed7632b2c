package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// MaxFactTextLen bounds fact_text. The limit matches the column constraint;
// oversized text would also make the pairwise conflict scan needlessly slow.
const MaxFactTextLen = 5000

// validate is the shared validator instance for API payloads.
var validate = validator.New()

// FactCreateRequest is the payload for creating a single fact.
type FactCreateRequest struct {
	FactText         string     `json:"fact_text" validate:"required,min=1,max=5000"`
	FactType         FactType   `json:"fact_type" validate:"required,oneof=date party claim evidence legal_point general"`
	SourceDocumentID *uuid.UUID `json:"source_document_id,omitempty"`
	SourcePage       *string    `json:"source_page,omitempty" validate:"omitempty,max=50"`
	SourceText       *string    `json:"source_text,omitempty"`
	Citations        []Citation `json:"citations,omitempty" validate:"omitempty,dive"`
	ExtractedByAI    bool       `json:"extracted_by_ai"`
	Importance       Importance `json:"importance,omitempty" validate:"omitempty,oneof=critical high medium low"`
	Category         *string    `json:"category,omitempty" validate:"omitempty,max=100"`
	Tags             []string   `json:"tags,omitempty"`
}

// Validate checks field constraints on a fact creation payload.
func (r FactCreateRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid fact payload: %w", err)
	}
	return nil
}

// FactVerificationRequest is the payload for verifying or disputing a fact.
type FactVerificationRequest struct {
	Status VerificationStatus `json:"status" validate:"required,oneof=verified disputed"`
	Reason *string            `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// Validate checks field constraints on a verification payload.
// The service re-checks the status value; this catches malformed input early.
func (r FactVerificationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid verification payload: %w", err)
	}
	return nil
}

// FactSignOffRequest is the payload for signing off a fact.
type FactSignOffRequest struct {
	Status SignOffStatus `json:"status" validate:"required,oneof=accepted amended rejected"`
	Reason *string       `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// Validate checks field constraints on a sign-off payload.
func (r FactSignOffRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid sign-off payload: %w", err)
	}
	return nil
}

// ExtractedFact is one candidate produced by the extraction pipeline.
type ExtractedFact struct {
	Text       string     `json:"text" validate:"required,min=1,max=5000"`
	Type       FactType   `json:"type,omitempty" validate:"omitempty,oneof=date party claim evidence legal_point general"`
	Page       *string    `json:"page,omitempty" validate:"omitempty,max=50"`
	SourceText *string    `json:"source_text,omitempty"`
	Citations  []Citation `json:"citations,omitempty" validate:"omitempty,dive"`
	Importance Importance `json:"importance,omitempty" validate:"omitempty,oneof=critical high medium low"`
	Category   *string    `json:"category,omitempty" validate:"omitempty,max=100"`
	Tags       []string   `json:"tags,omitempty"`
}

// BulkExtractRequest is the payload for bulk fact extraction from a document.
type BulkExtractRequest struct {
	DocumentID uuid.UUID       `json:"document_id" validate:"required"`
	Facts      []ExtractedFact `json:"facts" validate:"required,min=1,dive"`
}

// Validate checks field constraints on a bulk extraction payload.
func (r BulkExtractRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid bulk extract payload: %w", err)
	}
	return nil
}

// ConflictPair is one contradicting pair returned by the read-only scan.
type ConflictPair struct {
	Fact        CaseFact `json:"fact"`
	RelatedFact CaseFact `json:"related_fact"`
}

// APIResponse is the standard success envelope.
type APIResponse struct {
	Data any          `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta carries request correlation data.
type ResponseMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse reports service and dependency status.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Postgres      string `json:"postgres,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Error codes returned by the HTTP API.
const (
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeCitationPolicy  = "CITATION_POLICY_VIOLATION"
	ErrCodeInternalError   = "INTERNAL_ERROR"
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
)
