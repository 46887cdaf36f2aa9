package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/repository"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Ensure pgSweepRepo implements repository.SweepRepository.
var _ repository.SweepRepository = (*pgSweepRepo)(nil)

type pgSweepRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresSweepRepository creates a new PostgreSQL-backed sweep repository.
func NewPostgresSweepRepository(pool *pgxpool.Pool) repository.SweepRepository {
	return &pgSweepRepo{pool: pool}
}

// Migrate applies the embedded schema migrations in file name order.
// Every migration is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("postgres: list migrations: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := migrationFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("postgres: read %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("postgres: apply %s: %w", name, err)
		}
	}
	return nil
}

func (r *pgSweepRepo) Create(ctx context.Context, run *domain.SweepRun) error {
	query := `
		INSERT INTO sweep_runs (sweep_id, circuit, sweep, repetitions, target, seed, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	circuit, err := json.Marshal(run.Circuit)
	if err != nil {
		return fmt.Errorf("postgres: encode circuit: %w", err)
	}
	var sweep []byte
	if run.Sweep != nil {
		if sweep, err = json.Marshal(run.Sweep); err != nil {
			return fmt.Errorf("postgres: encode sweep: %w", err)
		}
	}

	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx, query,
		run.SweepID, circuit, sweep, run.Repetitions, run.Target, run.Seed,
		run.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: create sweep: %w", err)
	}
	run.CreatedAt = now
	run.UpdatedAt = now
	return nil
}

func (r *pgSweepRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SweepRun, error) {
	query := `
		SELECT sweep_id, circuit, sweep, repetitions, target, seed, status,
		       job_ids, results, error, created_at, updated_at
		FROM sweep_runs
		WHERE sweep_id = $1`

	var (
		run                    domain.SweepRun
		circuit, sweep, result []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.SweepID, &circuit, &sweep, &run.Repetitions, &run.Target, &run.Seed,
		&run.Status, &run.JobIDs, &result, &run.Error, &run.CreatedAt, &run.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSweepNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get sweep by id: %w", err)
	}

	if err := json.Unmarshal(circuit, &run.Circuit); err != nil {
		return nil, fmt.Errorf("postgres: decode circuit: %w", err)
	}
	if len(sweep) > 0 {
		if err := json.Unmarshal(sweep, &run.Sweep); err != nil {
			return nil, fmt.Errorf("postgres: decode sweep: %w", err)
		}
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &run.Results); err != nil {
			return nil, fmt.Errorf("postgres: decode results: %w", err)
		}
	}
	return &run, nil
}

func (r *pgSweepRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus) error {
	query := `UPDATE sweep_runs SET status = $1, updated_at = $2 WHERE sweep_id = $3`
	tag, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSweepNotFound
	}
	return nil
}

func (r *pgSweepRepo) SetJobIDs(ctx context.Context, id uuid.UUID, jobIDs []string) error {
	query := `UPDATE sweep_runs SET job_ids = $1, updated_at = $2 WHERE sweep_id = $3`
	if jobIDs == nil {
		jobIDs = []string{}
	}
	tag, err := r.pool.Exec(ctx, query, jobIDs, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: set job ids: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSweepNotFound
	}
	return nil
}

func (r *pgSweepRepo) SetResult(ctx context.Context, id uuid.UUID, results []*domain.Result) error {
	query := `
		UPDATE sweep_runs
		SET results = $1, status = $2, error = '', updated_at = $3
		WHERE sweep_id = $4`

	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("postgres: encode results: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, payload, domain.StatusCompleted, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: set result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSweepNotFound
	}
	return nil
}

func (r *pgSweepRepo) SetFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `UPDATE sweep_runs SET error = $1, status = $2, updated_at = $3 WHERE sweep_id = $4`
	tag, err := r.pool.Exec(ctx, query, reason, domain.StatusFailed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: set failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSweepNotFound
	}
	return nil
}
