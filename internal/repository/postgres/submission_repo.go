package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/repository"
)

var _ repository.SubmissionRepository = (*pgSubmissionRepo)(nil)

type pgSubmissionRepo struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a PostgreSQL-backed submission repository.
func NewSubmissionRepository(pool *pgxpool.Pool) repository.SubmissionRepository {
	return &pgSubmissionRepo{pool: pool}
}

func (r *pgSubmissionRepo) Create(ctx context.Context, sub *domain.Submission) error {
	query := `
		INSERT INTO submissions (id, user_id, problem_id, contest_id, code, language, verdict, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, query,
		sub.ID, sub.UserID, sub.ProblemID, sub.ContestID,
		sub.Code, sub.Language, sub.Verdict, sub.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: create submission: %w", err)
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now
	return nil
}

func (r *pgSubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	query := `
		SELECT id, user_id, problem_id, contest_id, code, language, verdict, status,
		       total_runtime_ms, total_memory_kb, testcase_results, created_at, updated_at
		FROM submissions
		WHERE id = $1`

	sub := &domain.Submission{}
	var results []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sub.ID, &sub.UserID, &sub.ProblemID, &sub.ContestID,
		&sub.Code, &sub.Language, &sub.Verdict, &sub.Status,
		&sub.TotalRuntimeMs, &sub.TotalMemoryKB, &results,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("postgres: get submission: %w", err)
	}

	if len(results) > 0 {
		if err := json.Unmarshal(results, &sub.TestcaseResults); err != nil {
			return nil, fmt.Errorf("postgres: decode testcase results: %w", err)
		}
	}
	return sub, nil
}

// MarkRunning transitions a submission to RUNNING. Terminal submissions
// are left untouched: deliveries are at-least-once, and a judged
// submission must never re-enter RUNNING.
func (r *pgSubmissionRepo) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE submissions SET status = $1, updated_at = $2
		WHERE id = $3 AND status NOT IN ($4, $5)`
	tag, err := r.pool.Exec(ctx, query,
		domain.StatusRunning, time.Now().UTC(), id,
		domain.StatusCompleted, domain.StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var status domain.SubmissionStatus
		err := r.pool.QueryRow(ctx, `SELECT status FROM submissions WHERE id = $1`, id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrSubmissionNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: mark running: %w", err)
		}
		return domain.ErrAlreadyJudged
	}
	return nil
}

func (r *pgSubmissionRepo) SetResult(ctx context.Context, id uuid.UUID, result *domain.SubmissionResult) error {
	resultsJSON, err := json.Marshal(result.TestcaseResults)
	if err != nil {
		return fmt.Errorf("postgres: encode testcase results: %w", err)
	}

	query := `
		UPDATE submissions
		SET verdict = $1, status = $2, total_runtime_ms = $3, total_memory_kb = $4,
		    testcase_results = $5, updated_at = $6
		WHERE id = $7`

	tag, err := r.pool.Exec(ctx, query,
		result.Verdict, result.Status, result.TotalRuntimeMs, result.TotalMemoryKB,
		resultsJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: set result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubmissionNotFound
	}
	return nil
}
