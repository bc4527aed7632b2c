package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veritas-legal/factgate/internal/facts"
	"github.com/veritas-legal/factgate/internal/model"
)

const factColumns = `id, case_id, fact_type, fact_text, fact_date,
	 source_document_id, source_page, source_text, citations,
	 extracted_by_ai, extraction_model, extraction_timestamp, confidence_score,
	 verification_status, verified_by, verified_at,
	 importance, category, tags,
	 sign_off_status, sign_off_by, sign_off_at, amendment_reason,
	 created_at, updated_at`

// CreateFactWithRelations implements facts.Repository. The fact insert and
// its relation inserts share one transaction: a crash mid-operation leaves
// no fact without its detected relations.
func (db *DB) CreateFactWithRelations(ctx context.Context, fact model.CaseFact, relations []model.FactRelation) (model.CaseFact, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.CaseFact{}, fmt.Errorf("storage: begin fact tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO case_facts (`+factColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		         $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		fact.ID, fact.CaseID, fact.FactType, fact.FactText, fact.FactDate,
		fact.SourceDocumentID, fact.SourcePage, fact.SourceText, fact.Citations,
		fact.ExtractedByAI, fact.ExtractionModel, fact.ExtractionTimestamp, fact.ConfidenceScore,
		fact.VerificationStatus, fact.VerifiedBy, fact.VerifiedAt,
		fact.Importance, fact.Category, fact.Tags,
		fact.SignOffStatus, fact.SignOffBy, fact.SignOffAt, fact.AmendmentReason,
		fact.CreatedAt, fact.UpdatedAt,
	); err != nil {
		return model.CaseFact{}, fmt.Errorf("storage: insert fact: %w", err)
	}

	for _, rel := range relations {
		if _, err := tx.Exec(ctx,
			`INSERT INTO fact_relations (fact_id, related_fact_id, relation_type, confidence)
			 VALUES ($1, $2, $3, $4)`,
			rel.FactID, rel.RelatedFactID, rel.RelationType, rel.Confidence,
		); err != nil {
			return model.CaseFact{}, fmt.Errorf("storage: insert fact relation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.CaseFact{}, fmt.Errorf("storage: commit fact tx: %w", err)
	}
	return fact, nil
}

// GetFact implements facts.Repository.
func (db *DB) GetFact(ctx context.Context, id uuid.UUID) (model.CaseFact, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+factColumns+` FROM case_facts WHERE id = $1`, id)
	if err != nil {
		return model.CaseFact{}, fmt.Errorf("storage: get fact: %w", err)
	}
	defer rows.Close()

	list, err := scanFacts(rows)
	if err != nil {
		return model.CaseFact{}, err
	}
	if len(list) == 0 {
		return model.CaseFact{}, fmt.Errorf("storage: fact %s: %w", id, facts.ErrFactNotFound)
	}
	return list[0], nil
}

// ListFactsByCase implements facts.Repository: the case's facts matching the
// filters, newest-created-first.
func (db *DB) ListFactsByCase(ctx context.Context, caseID uuid.UUID, filters facts.ListFilters) ([]model.CaseFact, error) {
	where, args := buildFactWhereClause(caseID, filters)

	rows, err := db.pool.Query(ctx,
		`SELECT `+factColumns+` FROM case_facts`+where+` ORDER BY created_at DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list case facts: %w", err)
	}
	defer rows.Close()

	return scanFacts(rows)
}

// ListCriticalDates implements facts.Repository: non-rejected date facts of
// critical or high importance, ascending by fact_date (undated last).
func (db *DB) ListCriticalDates(ctx context.Context, caseID uuid.UUID) ([]model.CaseFact, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+factColumns+` FROM case_facts
		 WHERE case_id = $1
		   AND fact_type = $2
		   AND importance = ANY($3)
		   AND sign_off_status <> $4
		 ORDER BY fact_date ASC NULLS LAST`,
		caseID, model.FactTypeDate,
		[]string{string(model.ImportanceCritical), string(model.ImportanceHigh)},
		model.SignOffRejected,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list critical dates: %w", err)
	}
	defer rows.Close()

	return scanFacts(rows)
}

// UpdateGovernance implements facts.Repository. Only governance columns are
// touched; the fact's core fields stay immutable.
func (db *DB) UpdateGovernance(ctx context.Context, factID uuid.UUID, update facts.GovernanceUpdate) (model.CaseFact, error) {
	sets := []string{"updated_at = $1"}
	args := []any{update.At}
	idx := 2

	if update.VerificationStatus != nil {
		sets = append(sets, fmt.Sprintf("verification_status = $%d, verified_by = $%d, verified_at = $%d", idx, idx+1, idx+2))
		args = append(args, *update.VerificationStatus, update.By, update.At)
		idx += 3
	}
	if update.SignOffStatus != nil {
		sets = append(sets, fmt.Sprintf("sign_off_status = $%d, sign_off_by = $%d, sign_off_at = $%d", idx, idx+1, idx+2))
		args = append(args, *update.SignOffStatus, update.By, update.At)
		idx += 3
	}
	if update.AmendmentReason != nil {
		sets = append(sets, fmt.Sprintf("amendment_reason = $%d", idx))
		args = append(args, *update.AmendmentReason)
		idx++
	}

	args = append(args, factID)
	tag, err := db.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE case_facts SET %s WHERE id = $%d`, strings.Join(sets, ", "), idx),
		args...,
	)
	if err != nil {
		return model.CaseFact{}, fmt.Errorf("storage: update governance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.CaseFact{}, fmt.Errorf("storage: fact %s: %w", factID, facts.ErrFactNotFound)
	}

	return db.GetFact(ctx, factID)
}

// ListRelationsByCase returns every persisted relation whose endpoints belong
// to the case, newest first.
func (db *DB) ListRelationsByCase(ctx context.Context, caseID uuid.UUID) ([]model.FactRelation, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT r.fact_id, r.related_fact_id, r.relation_type, r.confidence, r.created_at
		 FROM fact_relations r
		 JOIN case_facts f ON f.id = r.fact_id
		 WHERE f.case_id = $1
		 ORDER BY r.created_at DESC`,
		caseID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list relations: %w", err)
	}
	defer rows.Close()

	var relations []model.FactRelation
	for rows.Next() {
		var rel model.FactRelation
		if err := rows.Scan(&rel.FactID, &rel.RelatedFactID, &rel.RelationType, &rel.Confidence, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan relation: %w", err)
		}
		relations = append(relations, rel)
	}
	return relations, rows.Err()
}

func buildFactWhereClause(caseID uuid.UUID, f facts.ListFilters) (string, []any) {
	conditions := []string{"case_id = $1"}
	args := []any{caseID}
	idx := 2

	if f.FactType != nil {
		conditions = append(conditions, fmt.Sprintf("fact_type = $%d", idx))
		args = append(args, *f.FactType)
		idx++
	}
	if f.VerificationStatus != nil {
		conditions = append(conditions, fmt.Sprintf("verification_status = $%d", idx))
		args = append(args, *f.VerificationStatus)
		idx++
	}
	if f.Importance != nil {
		conditions = append(conditions, fmt.Sprintf("importance = $%d", idx))
		args = append(args, *f.Importance)
		idx++
	}
	if !f.IncludeRejected {
		conditions = append(conditions, fmt.Sprintf("sign_off_status <> $%d", idx))
		args = append(args, model.SignOffRejected)
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanFacts(rows pgx.Rows) ([]model.CaseFact, error) {
	var out []model.CaseFact
	for rows.Next() {
		var f model.CaseFact
		if err := rows.Scan(
			&f.ID, &f.CaseID, &f.FactType, &f.FactText, &f.FactDate,
			&f.SourceDocumentID, &f.SourcePage, &f.SourceText, &f.Citations,
			&f.ExtractedByAI, &f.ExtractionModel, &f.ExtractionTimestamp, &f.ConfidenceScore,
			&f.VerificationStatus, &f.VerifiedBy, &f.VerifiedAt,
			&f.Importance, &f.Category, &f.Tags,
			&f.SignOffStatus, &f.SignOffBy, &f.SignOffAt, &f.AmendmentReason,
			&f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan fact: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// interface guard
var _ facts.Repository = (*DB)(nil)
