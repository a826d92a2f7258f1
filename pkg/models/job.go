package models

import (
	"encoding/json"
	"time"
)

// Linkage job statuses
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// LinkageJob is a persisted linkage run request and its outcome.
type LinkageJob struct {
	ID              string          `json:"id" db:"id"`
	TenantID        string          `json:"tenant_id" db:"tenant_id"`
	RecordType      string          `json:"record_type" db:"record_type"`
	Status          string          `json:"status" db:"status"`
	SpecFingerprint string          `json:"spec_fingerprint,omitempty" db:"spec_fingerprint"`
	Spec            json.RawMessage `json:"spec,omitempty" db:"spec"`
	Result          json.RawMessage `json:"result,omitempty" db:"result"`
	Error           *string         `json:"error,omitempty" db:"error"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// LinkageSpec describes one linkage run. Datasets are inline row maps; the
// join field holds the identifying string to link on.
type LinkageSpec struct {
	DatasetA       []map[string]any `json:"dataset_a" validate:"required,min=1"`
	DatasetB       []map[string]any `json:"dataset_b" validate:"required,min=1"`
	JoinField      string           `json:"join_field" validate:"required"`
	BlockingFields []string         `json:"blocking_fields,omitempty"`
	Normalizers    []string         `json:"normalizers,omitempty"`
	RecordType     string           `json:"record_type" validate:"required"`
	Instructions   string           `json:"instructions,omitempty"`
	ModelFamily    string           `json:"model_family,omitempty" validate:"omitempty,oneof=linear ensemble"`
	LabelBudget    int              `json:"label_budget,omitempty" validate:"omitempty,min=1"`
	ReturnAllPairs bool             `json:"return_all_pairs,omitempty"`
}

// OracleLabel is a cached oracle decision for an item pair, reused across
// runs so repeat linkages do not pay for the same oracle calls twice.
type OracleLabel struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	RecordType string    `json:"record_type" db:"record_type"`
	ItemA      string    `json:"item_a" db:"item_a"`
	ItemB      string    `json:"item_b" db:"item_b"`
	Label      Label     `json:"label" db:"label"`
	Source     string    `json:"source" db:"source"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
