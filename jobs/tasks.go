package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrityScan checks committed pieces for debit/credit drift.
	TaskLedgerIntegrityScan = "ledger:integrity_scan"
	// TaskReportCacheWarmup precomputes the trial balance for open exercices.
	TaskReportCacheWarmup = "report:cache_warmup"
)

// IntegrityScanPayload narrows an integrity scan to a single exercice. A zero
// ExerciceID scans every open exercice.
type IntegrityScanPayload struct {
	ExerciceID int64 `json:"exercice_id"`
	Limit      int   `json:"limit"`
}

// NewIntegrityScanTask constructs an Asynq task for the integrity scan.
func NewIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityScan, data), nil
}

// ReportWarmupPayload selects which exercices get their report caches primed.
type ReportWarmupPayload struct {
	Scope string `json:"scope"`
}

// NewReportWarmupTask constructs an Asynq task for the report cache warmup.
func NewReportWarmupTask(scope string) (*asynq.Task, error) {
	data, err := json.Marshal(ReportWarmupPayload{Scope: scope})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportCacheWarmup, data), nil
}
