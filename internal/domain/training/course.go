package training

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Course struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string     `gorm:"column:title;not null" json:"title"`
	Description string     `gorm:"column:description" json:"description"`
	Status      Status     `gorm:"column:status;not null;index" json:"status"`
	StartDate   *time.Time `gorm:"column:start_date" json:"startDate,omitempty"`
	EndDate     *time.Time `gorm:"column:end_date" json:"endDate,omitempty"`
	CreatorID   uuid.UUID  `gorm:"type:uuid;column:creator_id;not null;index" json:"creatorId"`
	Subjects    []Subject  `gorm:"foreignKey:CourseID" json:"subjects,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updatedAt"`
}

func (Course) TableName() string { return "course" }

func (c *Course) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = StatusNotStarted
	}
	return nil
}

type Subject struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID    uuid.UUID  `gorm:"type:uuid;column:course_id;not null;index" json:"courseId"`
	Title       string     `gorm:"column:title;not null" json:"title"`
	Description string     `gorm:"column:description" json:"description"`
	Status      Status     `gorm:"column:status;not null;index" json:"status"`
	Order       int        `gorm:"column:sort_order;not null;default:0" json:"order"`
	StartDate   *time.Time `gorm:"column:start_date" json:"startDate,omitempty"`
	EndDate     *time.Time `gorm:"column:end_date" json:"endDate,omitempty"`
	Tasks       []Task     `gorm:"foreignKey:SubjectID" json:"tasks,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updatedAt"`
}

func (Subject) TableName() string { return "subject" }

func (s *Subject) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = StatusNotStarted
	}
	return nil
}

type Task struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SubjectID   uuid.UUID  `gorm:"type:uuid;column:subject_id;not null;index" json:"subjectId"`
	Title       string     `gorm:"column:title;not null" json:"title"`
	Description string     `gorm:"column:description" json:"description"`
	DueDate     *time.Time `gorm:"column:due_date;index" json:"dueDate,omitempty"`
	Order       int        `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt   time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updatedAt"`
}

func (Task) TableName() string { return "task" }

func (t *Task) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type CourseTrainer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID  uuid.UUID `gorm:"type:uuid;column:course_id;not null;uniqueIndex:idx_course_trainer" json:"courseId"`
	TrainerID uuid.UUID `gorm:"type:uuid;column:trainer_id;not null;uniqueIndex:idx_course_trainer;index" json:"trainerId"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (CourseTrainer) TableName() string { return "course_trainer" }

func (ct *CourseTrainer) BeforeCreate(*gorm.DB) error {
	if ct.ID == uuid.Nil {
		ct.ID = uuid.New()
	}
	return nil
}
