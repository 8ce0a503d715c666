package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the service needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Service struct {
	db DB
}

func NewService(db DB) *Service {
	return &Service{db: db}
}

func (s *Service) Record(ctx context.Context, run Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO processing_runs (id, source, image_digest, recognizer, stage, status, cache_hit, record_count, out_of_range_count, duration_ms, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID, run.Source, run.ImageDigest, run.Recognizer, run.Stage, run.Status, run.CacheHit,
		run.RecordCount, run.OutOfRangeCount, run.DurationMs, run.Error, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert processing run: %w", err)
	}
	return nil
}

type Query struct {
	StartDate *time.Time
	EndDate   *time.Time
	Status    string
	Source    string
	Limit     int
	Offset    int
}

func (s *Service) List(ctx context.Context, q Query) ([]Run, error) {
	query, args := buildListQuery(q)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processing runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Source, &r.ImageDigest, &r.Recognizer, &r.Stage, &r.Status, &r.CacheHit,
			&r.RecordCount, &r.OutOfRangeCount, &r.DurationMs, &r.Error, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan processing run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processing runs: %w", err)
	}
	return runs, nil
}

func buildListQuery(q Query) (string, []any) {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	query := `SELECT id, source, image_digest, recognizer, stage, status, cache_hit, record_count, out_of_range_count, duration_ms, error, created_at
			  FROM processing_runs WHERE 1=1`
	var args []any
	argIdx := 1

	if q.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, q.Status)
		argIdx++
	}
	if q.Source != "" {
		query += fmt.Sprintf(" AND source = $%d", argIdx)
		args = append(args, q.Source)
		argIdx++
	}
	if q.StartDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *q.StartDate)
		argIdx++
	}
	if q.EndDate != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *q.EndDate)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, q.Limit, q.Offset)
	return query, args
}

// Summary groups runs since the given time (all time when nil) by status and stage.
func (s *Service) Summary(ctx context.Context, since *time.Time) ([]StatusCount, error) {
	query := `SELECT status, stage, COUNT(*) AS runs,
			         COALESCE(SUM(record_count), 0) AS records,
			         COALESCE(SUM(out_of_range_count), 0) AS out_of_range
			  FROM processing_runs`
	var args []any
	if since != nil {
		query += " WHERE created_at >= $1"
		args = append(args, *since)
	}
	query += " GROUP BY status, stage ORDER BY runs DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run summary: %w", err)
	}
	defer rows.Close()

	counts := []StatusCount{}
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Stage, &c.Runs, &c.Records, &c.OutOfRange); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run summary: %w", err)
	}
	return counts, nil
}
