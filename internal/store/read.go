package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetPipeline retrieves a pipeline by fingerprint.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetPipeline(ctx context.Context, fingerprint string) (PipelineRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, fingerprint, model, views, stages
		FROM pipelines
		WHERE fingerprint = ?
	`, fingerprint)
	return scanPipeline(row)
}

// ListPipelines returns stored pipelines, all of them when model is empty.
// Results are ordered by seq, then fingerprint.
//
// Returns an empty slice (not nil) if nothing is stored.
func (s *Store) ListPipelines(ctx context.Context, model string) ([]PipelineRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if model == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT seq, fingerprint, model, views, stages
			FROM pipelines
			ORDER BY seq ASC, fingerprint COLLATE BINARY ASC
		`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT seq, fingerprint, model, views, stages
			FROM pipelines
			WHERE model = ?
			ORDER BY seq ASC, fingerprint COLLATE BINARY ASC
		`, model)
	}
	if err != nil {
		return nil, fmt.Errorf("query pipelines: %w", err)
	}
	defer rows.Close()

	records := []PipelineRecord{}
	for rows.Next() {
		rec, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipelines: %w", err)
	}
	return records, nil
}

// GetValidator retrieves the validator stored for model and dialect.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetValidator(ctx context.Context, model, dialect string) (ValidatorRecord, error) {
	var (
		rec     ValidatorRecord
		docJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT model, dialect, fingerprint, revision, document
		FROM validators
		WHERE model = ? AND dialect = ?
	`, model, dialect).Scan(&rec.Model, &rec.Dialect, &rec.Fingerprint, &rec.Revision, &docJSON)
	if err != nil {
		return ValidatorRecord{}, err
	}
	if rec.Document, err = unmarshalDocument(docJSON); err != nil {
		return ValidatorRecord{}, err
	}
	return rec, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPipeline(row rowScanner) (PipelineRecord, error) {
	var (
		rec        PipelineRecord
		viewsJSON  string
		stagesJSON string
	)
	if err := row.Scan(&rec.Seq, &rec.Fingerprint, &rec.Model, &viewsJSON, &stagesJSON); err != nil {
		return PipelineRecord{}, err
	}
	var err error
	if rec.Views, err = unmarshalViews(viewsJSON); err != nil {
		return PipelineRecord{}, err
	}
	if rec.Stages, err = unmarshalStages(stagesJSON); err != nil {
		return PipelineRecord{}, err
	}
	return rec, nil
}
