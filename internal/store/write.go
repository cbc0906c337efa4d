package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/roach88/docmap/internal/document"
)

// PipelineRecord is a stored pipeline.
type PipelineRecord struct {
	Seq         int64          `json:"seq"`
	Fingerprint string         `json:"fingerprint"`
	Model       string         `json:"model"`
	Views       []string       `json:"views"`
	Stages      mongo.Pipeline `json:"-"`
}

// ValidatorRecord is a stored collection validator.
type ValidatorRecord struct {
	Model       string `json:"model"`
	Dialect     string `json:"dialect"`
	Fingerprint string `json:"fingerprint"`
	Revision    int64  `json:"revision"`
	Document    bson.D `json:"-"`
}

// SavePipeline stores a compiled pipeline and returns its record. Saving an
// identical plan again returns the existing record with inserted=false.
func (s *Store) SavePipeline(ctx context.Context, model string, views []string, stages mongo.Pipeline) (rec PipelineRecord, inserted bool, err error) {
	views = normalizeViews(views)
	fingerprint, err := document.Fingerprint(document.DomainPipeline, pipelineIdentity(model, views, stages))
	if err != nil {
		return PipelineRecord{}, false, fmt.Errorf("save pipeline: %w", err)
	}
	viewsJSON, err := marshalViews(views)
	if err != nil {
		return PipelineRecord{}, false, fmt.Errorf("save pipeline: %w", err)
	}
	stagesJSON, err := marshalStages(stages)
	if err != nil {
		return PipelineRecord{}, false, fmt.Errorf("save pipeline: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PipelineRecord{}, false, fmt.Errorf("save pipeline: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO pipelines
		(fingerprint, model, views, stages, stage_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, fingerprint, model, viewsJSON, stagesJSON, len(stages))
	if err != nil {
		return PipelineRecord{}, false, fmt.Errorf("save pipeline: insert: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return PipelineRecord{}, false, fmt.Errorf("save pipeline: rows affected: %w", err)
	}

	var seq int64
	if affected > 0 {
		if seq, err = result.LastInsertId(); err != nil {
			return PipelineRecord{}, false, fmt.Errorf("save pipeline: last insert id: %w", err)
		}
		inserted = true
	} else {
		err = tx.QueryRowContext(ctx, `SELECT seq FROM pipelines WHERE fingerprint = ?`, fingerprint).Scan(&seq)
		if err != nil {
			return PipelineRecord{}, false, fmt.Errorf("save pipeline: select existing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return PipelineRecord{}, false, fmt.Errorf("save pipeline: commit: %w", err)
	}

	return PipelineRecord{
		Seq:         seq,
		Fingerprint: fingerprint,
		Model:       model,
		Views:       views,
		Stages:      stages,
	}, inserted, nil
}

// SaveValidator stores the validator for model in the given dialect. A
// changed document replaces the previous one and bumps the revision; an
// unchanged one leaves the row alone.
func (s *Store) SaveValidator(ctx context.Context, model, dialect string, doc bson.D) (ValidatorRecord, error) {
	fingerprint, err := document.Fingerprint(document.DomainValidator, doc)
	if err != nil {
		return ValidatorRecord{}, fmt.Errorf("save validator: %w", err)
	}
	docJSON, err := marshalDocument(doc)
	if err != nil {
		return ValidatorRecord{}, fmt.Errorf("save validator: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO validators (model, dialect, fingerprint, document)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(model, dialect) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			document    = excluded.document,
			revision    = validators.revision + 1
		WHERE validators.fingerprint <> excluded.fingerprint
	`, model, dialect, fingerprint, docJSON)
	if err != nil {
		return ValidatorRecord{}, fmt.Errorf("save validator: %w", err)
	}

	return s.GetValidator(ctx, model, dialect)
}
