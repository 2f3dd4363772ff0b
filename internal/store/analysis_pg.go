package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homelabrg/codelens/internal/model"
)

// pgAnalysisStore is the Postgres-backed analysis store. The JSON-file store
// remains the default; this one is selected when DATABASE_URL is configured.
type pgAnalysisStore struct {
	pool *pgxpool.Pool
}

func NewPGAnalysisStore(pool *pgxpool.Pool) AnalysisStore {
	return &pgAnalysisStore{pool: pool}
}

func (s *pgAnalysisStore) Create(ctx context.Context, job *model.AnalysisJob) error {
	types, err := json.Marshal(job.AnalysisTypes)
	if err != nil {
		return fmt.Errorf("encoding analysis types: %w", err)
	}
	results, err := json.Marshal(job.Results)
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	languages, err := json.Marshal(job.Languages)
	if err != nil {
		return fmt.Errorf("encoding languages: %w", err)
	}

	const query = `
INSERT INTO analysis_jobs (
	id, project_id, analysis_types, status, current_stage, progress,
	created_at, updated_at, completed_at, results, error,
	project_name, file_count, languages
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = s.pool.Exec(ctx, query,
		job.ID,
		job.ProjectID,
		types,
		string(job.Status),
		job.CurrentStage,
		job.Progress,
		job.CreatedAt,
		job.UpdatedAt,
		job.CompletedAt,
		results,
		job.Error,
		job.ProjectName,
		job.FileCount,
		languages,
	)
	if err != nil {
		return fmt.Errorf("inserting analysis job: %w", err)
	}
	return nil
}

func (s *pgAnalysisStore) Update(ctx context.Context, id string, update model.AnalysisUpdate) error {
	sets := []string{"updated_at = now()"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if update.Status != nil {
		sets = append(sets, "status = "+arg(string(*update.Status)))
	}
	if update.CurrentStage != nil {
		sets = append(sets, "current_stage = "+arg(*update.CurrentStage))
	}
	if update.Progress != nil {
		sets = append(sets, "progress = "+arg(*update.Progress))
	}
	if update.Results != nil {
		encoded, err := json.Marshal(update.Results)
		if err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
		sets = append(sets, "results = "+arg(encoded))
	}
	if update.Error != nil {
		sets = append(sets, "error = "+arg(*update.Error))
	}
	if update.CompletedAt != nil {
		sets = append(sets, "completed_at = "+arg(*update.CompletedAt))
	}

	query := "UPDATE analysis_jobs SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE id = " + arg(id)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating analysis job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const analysisJobColumns = `
	id, project_id, analysis_types, status, current_stage, progress,
	created_at, updated_at, completed_at, results, error,
	project_name, file_count, languages`

func (s *pgAnalysisStore) GetByID(ctx context.Context, id string) (*model.AnalysisJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+analysisJobColumns+` FROM analysis_jobs WHERE id = $1`, id)
	job, err := scanAnalysisJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (s *pgAnalysisStore) ListByProject(ctx context.Context, projectID string) ([]model.AnalysisJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT`+analysisJobColumns+` FROM analysis_jobs WHERE project_id = $1 ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing analysis jobs: %w", err)
	}
	defer rows.Close()

	jobs := []model.AnalysisJob{}
	for rows.Next() {
		job, err := scanAnalysisJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *pgAnalysisStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analysis_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting analysis job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAnalysisJob(row pgx.Row) (*model.AnalysisJob, error) {
	var (
		job       model.AnalysisJob
		status    string
		types     []byte
		results   []byte
		languages []byte
	)
	err := row.Scan(
		&job.ID,
		&job.ProjectID,
		&types,
		&status,
		&job.CurrentStage,
		&job.Progress,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
		&results,
		&job.Error,
		&job.ProjectName,
		&job.FileCount,
		&languages,
	)
	if err != nil {
		return nil, err
	}
	job.Status = model.AnalysisStatus(status)
	if err := json.Unmarshal(types, &job.AnalysisTypes); err != nil {
		return nil, fmt.Errorf("decoding analysis types: %w", err)
	}
	if err := json.Unmarshal(results, &job.Results); err != nil {
		return nil, fmt.Errorf("decoding results: %w", err)
	}
	if err := json.Unmarshal(languages, &job.Languages); err != nil {
		return nil, fmt.Errorf("decoding languages: %w", err)
	}
	return &job, nil
}
