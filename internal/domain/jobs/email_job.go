package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EmailStatusQueued  = "queued"
	EmailStatusRunning = "running"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"
)

// EmailJob is one queued outbound email. Payload holds the rendered EmailPayload.
type EmailJob struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Kind        string         `gorm:"column:kind;not null;index" json:"kind"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	MaxAttempts int            `gorm:"column:max_attempts;not null;default:5" json:"max_attempts"`
	NextRunAt   time.Time      `gorm:"column:next_run_at;not null;index" json:"next_run_at"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	SentAt      *time.Time     `gorm:"column:sent_at" json:"sent_at,omitempty"`
	LastError   string         `gorm:"column:last_error" json:"last_error,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload" json:"payload"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (EmailJob) TableName() string { return "email_job" }

func (j *EmailJob) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// EmailPayload is the JSON body stored on EmailJob.Payload.
type EmailPayload struct {
	To      string `json:"to"`
	ToName  string `json:"to_name,omitempty"`
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}
