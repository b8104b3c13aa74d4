package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/repository"
)

var _ repository.TestcaseRepository = (*pgTestcaseRepo)(nil)

type pgTestcaseRepo struct {
	pool *pgxpool.Pool
}

// NewTestcaseRepository creates a PostgreSQL-backed testcase repository.
func NewTestcaseRepository(pool *pgxpool.Pool) repository.TestcaseRepository {
	return &pgTestcaseRepo{pool: pool}
}

func (r *pgTestcaseRepo) ListByProblem(ctx context.Context, problemID uuid.UUID) ([]domain.Testcase, error) {
	query := `
		SELECT id, problem_id, stdin, expected_output, is_hidden, position
		FROM testcases
		WHERE problem_id = $1
		ORDER BY position ASC`

	rows, err := r.pool.Query(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list testcases: %w", err)
	}
	defer rows.Close()

	var testcases []domain.Testcase
	for rows.Next() {
		var tc domain.Testcase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Stdin, &tc.ExpectedOutput, &tc.IsHidden, &tc.Position); err != nil {
			return nil, fmt.Errorf("postgres: scan testcase: %w", err)
		}
		testcases = append(testcases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate testcases: %w", err)
	}
	return testcases, nil
}
