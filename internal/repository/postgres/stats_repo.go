package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/repository"
)

var _ repository.StatsRepository = (*pgStatsRepo)(nil)

type pgStatsRepo struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a PostgreSQL-backed stats repository.
func NewStatsRepository(pool *pgxpool.Pool) repository.StatsRepository {
	return &pgStatsRepo{pool: pool}
}

func (r *pgStatsRepo) GetProblem(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	query := `SELECT id, difficulty FROM problems WHERE id = $1`

	p := &domain.Problem{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Difficulty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("postgres: problem not found: %s", id)
		}
		return nil, fmt.Errorf("postgres: get problem: %w", err)
	}
	return p, nil
}

// solvedColumns maps a difficulty to its counter column. The query text
// is assembled only from this fixed set.
var solvedColumns = map[domain.Difficulty]string{
	domain.DifficultyEasy:   "easy_solved",
	domain.DifficultyMedium: "medium_solved",
	domain.DifficultyHard:   "hard_solved",
}

func (r *pgStatsRepo) IncrementSolved(ctx context.Context, userID uuid.UUID, difficulty domain.Difficulty) error {
	column, ok := solvedColumns[difficulty]
	if !ok {
		return fmt.Errorf("postgres: unknown difficulty %q", difficulty)
	}

	query := fmt.Sprintf(`
		INSERT INTO user_stats (user_id, total_solved, %s, updated_at)
		VALUES ($1, 1, 1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET total_solved = user_stats.total_solved + 1,
		              %s = user_stats.%s + 1,
		              updated_at = $2`, column, column, column)

	if _, err := r.pool.Exec(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("postgres: increment solved: %w", err)
	}
	return nil
}

func (r *pgStatsRepo) IncrementProblemCounters(ctx context.Context, problemID uuid.UUID, accepted bool) error {
	query := `
		UPDATE problems
		SET total_submissions = total_submissions + 1,
		    accepted_submissions = accepted_submissions + CASE WHEN $1 THEN 1 ELSE 0 END
		WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, accepted, problemID)
	if err != nil {
		return fmt.Errorf("postgres: increment problem counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: problem not found: %s", problemID)
	}
	return nil
}
