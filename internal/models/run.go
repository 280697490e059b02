package models

import "time"

type RunTrigger string

const (
	TriggerManual    RunTrigger = "manual"
	TriggerScheduled RunTrigger = "scheduled"
)

type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// PipelineRun records one ingestion -> generation (-> publication) pass.
type PipelineRun struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	Trigger    RunTrigger `json:"trigger" gorm:"size:16"`
	Stage      string     `json:"stage" gorm:"size:32"`
	Status     RunStatus  `json:"status" gorm:"size:16;index"`
	Found      int        `json:"found"`
	New        int        `json:"new"`
	Generated  int        `json:"generated"`
	Published  int        `json:"published"`
	Failed     int        `json:"failed"`
	Errors     []string   `json:"errors,omitempty" gorm:"serializer:json"`
	Error      string     `json:"error,omitempty" gorm:"type:text"`
	StartedAt  time.Time  `json:"started_at" gorm:"index"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
