package notify

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TypeEnrolled        = "ENROLLED"
	TypeCourseStarted   = "COURSE_STARTED"
	TypeCourseFinished  = "COURSE_FINISHED"
	TypeSubjectStarted  = "SUBJECT_STARTED"
	TypeSubjectFinished = "SUBJECT_FINISHED"
	TypeGradePosted     = "GRADE_POSTED"
	TypeTaskDue         = "TASK_DUE"
)

type Notification struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"userId"`
	Type      string         `gorm:"column:type;not null" json:"type"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Message   string         `gorm:"column:message" json:"message"`
	LinkTo    string         `gorm:"column:link_to" json:"linkTo,omitempty"`
	ReadAt    *time.Time     `gorm:"column:read_at" json:"readAt,omitempty"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"not null;index" json:"createdAt"`
}

func (Notification) TableName() string { return "notification" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
