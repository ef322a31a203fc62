package model

import "time"

// Source describes where the observed data of a metric run is read from.
type Source struct {
	Type string `json:"type"` // csv
	URL  string `json:"url"`  // local path or http(s) URL
}

// BuiltInMetric selects one of the canned metric transformations.
type BuiltInMetric struct {
	Metric string   `json:"metric"` // count_null, count_rows, sum, mean, min, max
	Column string   `json:"column"`
	Tags   []string `json:"tags,omitempty"`
}

// MetricRunSpec is the body of POST /api/v1/metrics.
// Exactly one of BuiltIn and Instructions should be set; with neither the
// run applies the identity transformation.
type MetricRunSpec struct {
	Name         string            `json:"name"`
	Source       Source            `json:"source"`
	BuiltIn      *BuiltInMetric    `json:"builtin,omitempty"`
	Instructions []InstructionSpec `json:"instructions,omitempty"`
	Backend      *Backend          `json:"backend,omitempty"` // server default when unset
	Wait         bool              `json:"wait"` // block until the run is published
}

// Run statuses, in lifecycle order.
const (
	RunPending    = "pending"
	RunExecuting  = "executing"
	RunPublishing = "publishing"
	RunCompleted  = "completed"
	RunFailed     = "failed"
)

// RunRecord is a persisted metric run.
type RunRecord struct {
	ID        string        `json:"id"`
	Spec      MetricRunSpec `json:"spec"`
	Status    string        `json:"status"`
	Export    *ExportResult `json:"export,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// RunError is an error recorded against a run.
type RunError struct {
	RunID     string    `json:"runId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExportResult represents the result of publishing one run.
type ExportResult struct {
	Backend     Backend   `json:"backend"`
	Path        string    `json:"path"` // file path, object key or "-" for stdout
	RecordCount int       `json:"record_count"`
	Attempts    int       `json:"attempts"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ExportedAt  time.Time `json:"exported_at"`
}

// RetryConfig defines retry behavior for publishing.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
}
