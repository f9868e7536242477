package training

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CourseTrainee is one trainee's enrollment in one course.
// CompletedAt is set once the trainee has finished every subject of the course.
type CourseTrainee struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID    uuid.UUID        `gorm:"type:uuid;column:course_id;not null;uniqueIndex:idx_course_trainee" json:"courseId"`
	TraineeID   uuid.UUID        `gorm:"type:uuid;column:trainee_id;not null;uniqueIndex:idx_course_trainee;index" json:"traineeId"`
	Status      EnrollmentStatus `gorm:"column:status;not null" json:"status"`
	EnrolledAt  time.Time        `gorm:"column:enrolled_at;not null" json:"enrolledAt"`
	CompletedAt *time.Time       `gorm:"column:completed_at" json:"completedAt,omitempty"`
	CreatedAt   time.Time        `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time        `gorm:"not null" json:"updatedAt"`
}

func (CourseTrainee) TableName() string { return "course_trainee" }

func (ct *CourseTrainee) BeforeCreate(*gorm.DB) error {
	if ct.ID == uuid.Nil {
		ct.ID = uuid.New()
	}
	if ct.Status == "" {
		ct.Status = EnrollmentActive
	}
	return nil
}

type TraineeSubject struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CourseTraineeID uuid.UUID  `gorm:"type:uuid;column:course_trainee_id;not null;uniqueIndex:idx_trainee_subject" json:"courseTraineeId"`
	SubjectID       uuid.UUID  `gorm:"type:uuid;column:subject_id;not null;uniqueIndex:idx_trainee_subject;index" json:"subjectId"`
	TraineeID       uuid.UUID  `gorm:"type:uuid;column:trainee_id;not null;index" json:"traineeId"`
	Status          Status     `gorm:"column:status;not null;index" json:"status"`
	Grade           *int       `gorm:"column:grade" json:"grade,omitempty"`
	Feedback        string     `gorm:"column:feedback" json:"feedback,omitempty"`
	StartedAt       *time.Time `gorm:"column:started_at" json:"startedAt,omitempty"`
	FinishedAt      *time.Time `gorm:"column:finished_at" json:"finishedAt,omitempty"`
	CreatedAt       time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updatedAt"`
}

func (TraineeSubject) TableName() string { return "trainee_subject" }

func (ts *TraineeSubject) BeforeCreate(*gorm.DB) error {
	if ts.ID == uuid.Nil {
		ts.ID = uuid.New()
	}
	if ts.Status == "" {
		ts.Status = StatusNotStarted
	}
	return nil
}

type TraineeTask struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	TraineeID   uuid.UUID         `gorm:"type:uuid;column:trainee_id;not null;uniqueIndex:idx_trainee_task" json:"traineeId"`
	TaskID      uuid.UUID         `gorm:"type:uuid;column:task_id;not null;uniqueIndex:idx_trainee_task;index" json:"taskId"`
	Status      TaskStatus        `gorm:"column:status;not null" json:"status"`
	CompletedAt *time.Time        `gorm:"column:completed_at" json:"completedAt,omitempty"`
	Files       []TraineeTaskFile `gorm:"foreignKey:TraineeTaskID" json:"files,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updatedAt"`
}

func (TraineeTask) TableName() string { return "trainee_task" }

func (tt *TraineeTask) BeforeCreate(*gorm.DB) error {
	if tt.ID == uuid.Nil {
		tt.ID = uuid.New()
	}
	if tt.Status == "" {
		tt.Status = TaskNotStarted
	}
	return nil
}

// TraineeTaskFile is uploaded evidence for a TraineeTask.
type TraineeTaskFile struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TraineeTaskID uuid.UUID `gorm:"type:uuid;column:trainee_task_id;not null;index" json:"traineeTaskId"`
	FileName      string    `gorm:"column:file_name;not null" json:"fileName"`
	BucketKey     string    `gorm:"column:bucket_key;not null" json:"-"`
	ContentType   string    `gorm:"column:content_type" json:"contentType"`
	SizeBytes     int64     `gorm:"column:size_bytes" json:"sizeBytes"`
	URL           string    `gorm:"column:url" json:"url"`
	CreatedAt     time.Time `gorm:"not null" json:"createdAt"`
}

func (TraineeTaskFile) TableName() string { return "trainee_task_file" }

func (f *TraineeTaskFile) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// DailyReport is a trainee's end-of-day note for a course. One per trainee, course and day.
type DailyReport struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TraineeID  uuid.UUID `gorm:"type:uuid;column:trainee_id;not null;uniqueIndex:idx_daily_report" json:"traineeId"`
	CourseID   uuid.UUID `gorm:"type:uuid;column:course_id;not null;uniqueIndex:idx_daily_report;index" json:"courseId"`
	ReportDate string    `gorm:"column:report_date;not null;uniqueIndex:idx_daily_report" json:"reportDate"`
	Content    string    `gorm:"column:content;not null" json:"content"`
	CreatedAt  time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"not null" json:"updatedAt"`
}

func (DailyReport) TableName() string { return "daily_report" }

func (r *DailyReport) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
