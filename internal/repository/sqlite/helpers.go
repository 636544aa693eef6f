package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"opsmap/internal/domain"
)

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// runColumns is the column list shared by every run query.
// Order must match runRow.scanArgs.
const runColumns = `id, created_at, fingerprint, request, response, edge_count`

// runRow holds all columns from a run query for scanning
type runRow struct {
	ID          string
	CreatedAt   time.Time
	Fingerprint sql.NullString
	Request     string
	Response    string
	EdgeCount   int
}

func (r *runRow) scanArgs() []any {
	return []any{
		&r.ID,
		&r.CreatedAt,
		&r.Fingerprint,
		&r.Request,
		&r.Response,
		&r.EdgeCount,
	}
}

// toRun decodes the stored JSON into a run
func (r *runRow) toRun() (*domain.Run, error) {
	run := &domain.Run{
		ID:                 r.ID,
		CreatedAt:          r.CreatedAt.UTC(),
		NetworkFingerprint: nullToString(r.Fingerprint),
	}
	if err := json.Unmarshal([]byte(r.Request), &run.Request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run request: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Response), &run.Response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run response: %w", err)
	}
	return run, nil
}

// toSummary decodes only the request
func (r *runRow) toSummary() (domain.RunSummary, error) {
	s := domain.RunSummary{
		ID:                 r.ID,
		CreatedAt:          r.CreatedAt.UTC(),
		NetworkFingerprint: nullToString(r.Fingerprint),
		Edges:              r.EdgeCount,
	}
	if err := json.Unmarshal([]byte(r.Request), &s.Request); err != nil {
		return s, fmt.Errorf("failed to unmarshal run request: %w", err)
	}
	return s, nil
}

// runInsertArgs encodes a run for insertion, in runColumns order
func runInsertArgs(run *domain.Run) ([]any, error) {
	req, err := json.Marshal(run.Request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run request: %w", err)
	}
	resp, err := json.Marshal(run.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run response: %w", err)
	}
	edges := len(run.Response.CongestionOptimal.Edges) + len(run.Response.DelayOptimal.Edges)
	return []any{
		run.ID,
		run.CreatedAt.UTC(),
		stringToNull(run.NetworkFingerprint),
		string(req),
		string(resp),
		edges,
	}, nil
}
