package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"propsearch/internal/domain"
)

func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func valTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// Repo persists one row per search call.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Record(ctx context.Context, run domain.SearchRun) error {
	_, err := r.db.ExecContext(ctx, insertRunSQL,
		run.RequestID,
		string(run.Vertical),
		run.QueryHash,
		run.Results,
		run.Rejected,
		run.ValidListings,
		run.Insufficient,
		run.CacheHit,
		run.DurationMs,
		valJSON(run.Diagnostics),
		valTime(run.CreatedAt),
	)
	return err
}

func (r *Repo) Get(ctx context.Context, requestID string) (domain.SearchRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, getRunSQL, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SearchRun{}, domain.ErrNotFound
	}
	return run, err
}

type scanner interface{ Scan(dest ...any) error }

func scanRun(s scanner) (domain.SearchRun, error) {
	var (
		run      domain.SearchRun
		vertical string
		diag     sql.NullString
	)
	err := s.Scan(
		&run.RequestID, &vertical, &run.QueryHash,
		&run.Results, &run.Rejected, &run.ValidListings,
		&run.Insufficient, &run.CacheHit, &run.DurationMs,
		&diag, &run.CreatedAt,
	)
	if err != nil {
		return domain.SearchRun{}, err
	}
	run.Vertical = domain.Vertical(vertical)
	if diag.Valid {
		run.Diagnostics = json.RawMessage(diag.String)
	}
	return run, nil
}
