// Package oraclelabel caches confirmed oracle decisions across linkage runs.
package oraclelabel

import (
	"context"
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

// Repository handles oracle label persistence. It implements the engine's
// LabelCache.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new oracle label repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Fetch returns the cached labels for the requested pair keys. Pairs without
// a cached decision are simply absent from the result.
func (r *Repository) Fetch(ctx context.Context, tenantID, recordType string, keys []models.PairKey) (map[models.PairKey]models.Label, error) {
	ctx, span := tracing.StartSpan(ctx, "oraclelabel.Repository.Fetch")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "record_type", "item_a", "item_b", "label", "source", "created_at")
	sb.From("oracle_labels")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("record_type", recordType),
	)

	query, args := sb.Build()
	cached := []models.OracleLabel{}
	if err := r.db.SelectContext(ctx, &cached, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to fetch oracle labels")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to fetch oracle labels")
	}

	byKey := make(map[models.PairKey]models.Label, len(cached))
	for _, label := range cached {
		byKey[models.PairKey{A: label.ItemA, B: label.ItemB}] = label.Label
	}

	result := make(map[models.PairKey]models.Label)
	for _, key := range keys {
		if label, ok := byKey[key]; ok {
			result[key] = label
		}
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"requested": len(keys),
		"hits":      len(result),
	}).Debug("Fetched cached oracle labels")

	return result, nil
}

// Save upserts confirmed oracle decisions for reuse by later runs.
func (r *Repository) Save(ctx context.Context, tenantID, recordType string, labels []models.OracleLabel) error {
	ctx, span := tracing.StartSpan(ctx, "oraclelabel.Repository.Save")
	defer span.End()

	if len(labels) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("oracle_labels")
	sb.Cols("id", "tenant_id", "record_type", "item_a", "item_b", "label", "source", "created_at")

	for _, label := range labels {
		if label.ID == "" {
			label.ID = uuid.New().String()
		}
		sb.Values(label.ID, tenantID, recordType, label.ItemA, label.ItemB, label.Label, label.Source, now)
	}

	query, args := sb.Build()
	query += " ON CONFLICT (tenant_id, record_type, item_a, item_b) DO UPDATE SET label = EXCLUDED.label, source = EXCLUDED.source"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to save oracle labels")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save oracle labels")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(labels)}).Debug("Saved oracle labels")
	return nil
}
