package domain

import (
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Step string

// Importer steps in execution order.
const (
	StepInbox       Step = "inbox"
	StepSpam        Step = "spam"
	StepDrafts      Step = "drafts"
	StepLabels      Step = "labels"
	StepEmailLabels Step = "email_labels"
	StepSent        Step = "sent"
)

type StepResult struct {
	Step       Step  `json:"step"`
	Listed     int   `json:"listed"`
	Created    int   `json:"created"`
	Skipped    int   `json:"skipped"`
	Updated    int   `json:"updated"`
	Linked     int   `json:"linked"`
	DurationMs int64 `json:"duration_ms"`
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// UserResult is the outcome of one user's import.
type UserResult struct {
	UserID     string                `json:"user_id"`
	Email      string                `json:"email,omitempty"`
	Status     Status                `json:"status"`
	Kind       emaildomain.ErrorKind `json:"error_kind,omitempty"`
	Error      string                `json:"error,omitempty"`
	Steps      []StepResult          `json:"steps"`
	DurationMs int64                 `json:"duration_ms"`
}

// Report summarizes a bulk run.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	// AlreadyRunning marks a run skipped because another bulk run was active.
	AlreadyRunning bool         `json:"already_running,omitempty"`
	Results        []UserResult `json:"results"`
}

// SyncRun records the outcome of each user import.
type SyncRun struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID     string    `json:"user_id" gorm:"index:idx_sync_run_user_started;not null;type:varchar(36)"`
	Status     Status    `json:"status" gorm:"type:varchar(16);not null"`
	ErrorKind  string    `json:"error_kind"`
	Error      string    `json:"error"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Linked     int       `json:"linked"`
	StartedAt  time.Time `json:"started_at" gorm:"index:idx_sync_run_user_started"`
	FinishedAt time.Time `json:"finished_at"`
}

func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// NewSyncRun folds a UserResult into its stored form.
func NewSyncRun(res UserResult, startedAt time.Time) *SyncRun {
	run := &SyncRun{
		UserID:     res.UserID,
		Status:     res.Status,
		ErrorKind:  string(res.Kind),
		Error:      res.Error,
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(time.Duration(res.DurationMs) * time.Millisecond),
	}
	for _, s := range res.Steps {
		run.Created += s.Created
		run.Updated += s.Updated
		run.Linked += s.Linked
	}
	return run
}
