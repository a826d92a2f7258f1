package linkagejob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles linkage job persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new linkage job repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new pending job
func (r *Repository) Create(ctx context.Context, job *models.LinkageJob) (*models.LinkageJob, error) {
	ctx, span := tracing.StartSpan(ctx, "linkagejob.Repository.Create")
	defer span.End()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = models.JobStatusPending
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("linkage_jobs")
	sb.Cols("id", "tenant_id", "record_type", "status", "spec_fingerprint", "spec", "created_at", "updated_at")
	sb.Values(job.ID, job.TenantID, job.RecordType, job.Status, job.SpecFingerprint, job.Spec, job.CreatedAt, job.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": job.ID}).Error("Failed to create linkage job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create linkage job")
	}

	return job, nil
}

// Get retrieves a job by ID
func (r *Repository) Get(ctx context.Context, tenantID string, id string) (*models.LinkageJob, error) {
	ctx, span := tracing.StartSpan(ctx, "linkagejob.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "record_type", "status", "spec_fingerprint", "spec", "result", "error", "created_at", "updated_at", "started_at", "completed_at")
	sb.From("linkage_jobs")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var job models.LinkageJob
	if err := r.db.GetContext(ctx, &job, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("linkage job %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get linkage job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get linkage job")
	}

	return &job, nil
}

// List retrieves a tenant's jobs, newest first
func (r *Repository) List(ctx context.Context, tenantID string, limit int) ([]models.LinkageJob, error) {
	ctx, span := tracing.StartSpan(ctx, "linkagejob.Repository.List")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "record_type", "status", "error", "created_at", "updated_at", "started_at", "completed_at")
	sb.From("linkage_jobs")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	jobs := []models.LinkageJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list linkage jobs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list linkage jobs")
	}

	return jobs, nil
}

// ClaimPending atomically claims the oldest pending job and marks it running.
// Returns nil when no pending job exists.
func (r *Repository) ClaimPending(ctx context.Context) (*models.LinkageJob, error) {
	ctx, span := tracing.StartSpan(ctx, "linkagejob.Repository.ClaimPending")
	defer span.End()

	query := `
		UPDATE linkage_jobs SET status = $1, started_at = NOW(), updated_at = NOW()
		WHERE id = (
			SELECT id FROM linkage_jobs
			WHERE status = $2
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, tenant_id, record_type, status, spec, created_at, updated_at, started_at`

	rows, err := r.db.QueryxContext(ctx, query, models.JobStatusRunning, models.JobStatusPending)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to claim pending linkage job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to claim pending job")
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	var job models.LinkageJob
	if err := rows.StructScan(&job); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to scan claimed linkage job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to claim pending job")
	}

	return &job, nil
}

// Complete stores the run result and marks the job completed
func (r *Repository) Complete(ctx context.Context, tenantID string, id string, result json.RawMessage) error {
	ctx, span := tracing.StartSpan(ctx, "linkagejob.Repository.Complete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("linkage_jobs")
	sb.Set(
		sb.Assign("status", models.JobStatusCompleted),
		sb.Assign("result", result),
		sb.Assign("completed_at", time.Now().UTC()),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": id}).Error("Failed to complete linkage job")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to complete linkage job")
	}

	return nil
}

// Fail records the error and marks the job failed
func (r *Repository) Fail(ctx context.Context, tenantID string, id string, runErr error) error {
	ctx, span := tracing.StartSpan(ctx, "linkagejob.Repository.Fail")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("linkage_jobs")
	sb.Set(
		sb.Assign("status", models.JobStatusFailed),
		sb.Assign("error", runErr.Error()),
		sb.Assign("completed_at", time.Now().UTC()),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": id}).Error("Failed to mark linkage job failed")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update linkage job")
	}

	return nil
}
