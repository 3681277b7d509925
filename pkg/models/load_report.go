package models

import (
	"time"

	"github.com/google/uuid"
)

// LoadStatus is the lifecycle state of a load run.
type LoadStatus string

const (
	// LoadStatusNone means no active load run exists (never loaded or cleared).
	LoadStatusNone       LoadStatus = "none"
	LoadStatusInProgress LoadStatus = "in_progress"
	LoadStatusComplete   LoadStatus = "complete"
	LoadStatusFailed     LoadStatus = "failed"
)

// Queryable reports whether the relations may be read by the reports.
func (s LoadStatus) Queryable() bool {
	return s == LoadStatusComplete
}

// LoadRun is the persisted record of one LoadAll invocation.
type LoadRun struct {
	ID         uuid.UUID   `json:"id" yaml:"id"`
	Status     LoadStatus  `json:"status" yaml:"status"`
	StartedAt  time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	ClearedAt  *time.Time  `json:"cleared_at,omitempty" yaml:"cleared_at,omitempty"`
	Report     *LoadReport `json:"report,omitempty" yaml:"report,omitempty"`
}

// Rejection describes one input row that was not inserted.
type Rejection struct {
	Line   int    `json:"line" yaml:"line"`
	Field  string `json:"field,omitempty" yaml:"field,omitempty"`
	Code   string `json:"code" yaml:"code"`
	Reason string `json:"reason" yaml:"reason"`
}

// EntityReport summarizes loading of a single entity kind.
type EntityReport struct {
	Kind   EntityKind `json:"kind" yaml:"kind"`
	Source string     `json:"source,omitempty" yaml:"source,omitempty"`

	Inserted int `json:"inserted" yaml:"inserted"`
	Rejected int `json:"rejected" yaml:"rejected"`

	// Skipped is set when the file was never read, either because it failed
	// at file level or because a parent kind did.
	Skipped     bool   `json:"skipped" yaml:"skipped"`
	SkippedRows int    `json:"skipped_rows" yaml:"skipped_rows"`
	SkipReason  string `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`

	// FileError holds the file-level error code (FileNotFound, HeaderMismatch)
	// when this kind's own file could not be loaded.
	FileError string `json:"file_error,omitempty" yaml:"file_error,omitempty"`

	// Rejections is capped; Rejected is always the exact count.
	Rejections          []Rejection `json:"rejections,omitempty" yaml:"rejections,omitempty"`
	RejectionsTruncated bool        `json:"rejections_truncated,omitempty" yaml:"rejections_truncated,omitempty"`
}

// Failed reports whether this kind's own file failed at file level.
func (r *EntityReport) Failed() bool {
	return r.FileError != ""
}

// LoadReport aggregates per-kind results of a load run, in load order.
type LoadReport struct {
	RunID      uuid.UUID       `json:"run_id" yaml:"run_id"`
	Status     LoadStatus      `json:"status" yaml:"status"`
	Delimiter  string          `json:"delimiter" yaml:"delimiter"`
	StartedAt  time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time       `json:"finished_at" yaml:"finished_at"`
	Entities   []*EntityReport `json:"entities" yaml:"entities"`
}

// Entity returns the report for kind, or nil if the kind was not reached.
func (r *LoadReport) Entity(kind EntityKind) *EntityReport {
	for _, e := range r.Entities {
		if e.Kind == kind {
			return e
		}
	}
	return nil
}

// Totals sums inserted and rejected rows across kinds and counts skipped kinds.
func (r *LoadReport) Totals() (inserted, rejected, skipped int) {
	for _, e := range r.Entities {
		inserted += e.Inserted
		rejected += e.Rejected
		if e.Skipped {
			skipped++
		}
	}
	return inserted, rejected, skipped
}
