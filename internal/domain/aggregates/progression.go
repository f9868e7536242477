package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
)

var EnrollmentAggregateContract = Contract{
	Name:     "Training.EnrollmentAggregate",
	LockRoot: LockRootCourse,
	Writes:   []string{"course", "subject", "course_trainee", "trainee_subject", "trainee_task", "trainee_task_file"},
	Notes: "Creates and removes course_trainee rows together with the per-subject and per-task " +
		"progress rows that hang off them. Removing the last open trainee can close subjects and the course.",
}

var ProgressionAggregateContract = Contract{
	Name:     "Training.ProgressionAggregate",
	LockRoot: LockRootCourse,
	Writes:   []string{"course", "subject", "course_trainee", "trainee_subject", "trainee_task"},
	Notes: "Owns trainee-driven transitions (task toggles, subject completion) and the upward " +
		"subject/course auto-close cascade.",
}

var LifecycleAggregateContract = Contract{
	Name:     "Training.LifecycleAggregate",
	LockRoot: LockRootCourse,
	Writes:   []string{"course", "course_trainer", "subject", "task", "course_trainee", "trainee_subject", "trainee_task", "trainee_task_file"},
	Notes:    "Owns course/subject start, finish and structural create/delete guarded by lifecycle state.",
}

// EnrollmentAggregate owns course membership.
//
// Write failures return *Error with codes:
// CodeValidation, CodeNotFound, CodePreconditionFailed, CodeConflict, CodeRetryable, CodeInternal.
type EnrollmentAggregate interface {
	Aggregate

	// EnrollTrainees validates the whole batch before writing anything; trainees already
	// enrolled are skipped.
	EnrollTrainees(ctx context.Context, in EnrollTraineesInput) (EnrollTraineesResult, error)

	// RemoveTrainee deletes the enrollment and the trainee's progress rows, then re-runs the
	// auto-close checks for the course.
	RemoveTrainee(ctx context.Context, in RemoveTraineeInput) (RemoveTraineeResult, error)
}

type EnrollTraineesInput struct {
	CourseID   uuid.UUID
	TraineeIDs []uuid.UUID
	Activate   bool
	At         time.Time
}

type EnrollTraineesResult struct {
	CourseID        uuid.UUID   `json:"courseId"`
	Enrolled        []uuid.UUID `json:"enrolled"`
	AlreadyEnrolled []uuid.UUID `json:"alreadyEnrolled"`
	SubjectRecords  int         `json:"subjectRecords"`
}

type RemoveTraineeInput struct {
	CourseID  uuid.UUID
	TraineeID uuid.UUID
	At        time.Time
}

type RemoveTraineeResult struct {
	CourseID          uuid.UUID      `json:"courseId"`
	TraineeID         uuid.UUID      `json:"traineeId"`
	RemovedBucketKeys []string       `json:"-"`
	Cascade           CascadeOutcome `json:"cascade"`
}

// ProgressionAggregate owns trainee-driven progress transitions.
type ProgressionAggregate interface {
	Aggregate

	// SetTaskCompletion marks a task complete or incomplete for one trainee and nudges the
	// trainee's subject record to IN_PROGRESS. It never closes a subject.
	SetTaskCompletion(ctx context.Context, in SetTaskCompletionInput) (SetTaskCompletionResult, error)

	// CompleteSubject finishes a subject for one trainee and runs the upward cascade.
	CompleteSubject(ctx context.Context, in CompleteSubjectInput) (CompleteSubjectResult, error)

	// EnsureTraineeTask returns the trainee's task row, creating it IN_PROGRESS when missing.
	// Used when evidence is attached before the task is toggled.
	EnsureTraineeTask(ctx context.Context, in EnsureTraineeTaskInput) (*training.TraineeTask, error)
}

type SetTaskCompletionInput struct {
	TraineeID uuid.UUID
	TaskID    uuid.UUID
	Completed bool
	At        time.Time
}

type SetTaskCompletionResult struct {
	TaskID        uuid.UUID           `json:"taskId"`
	SubjectID     uuid.UUID           `json:"subjectId"`
	CourseID      uuid.UUID           `json:"courseId"`
	TraineeTaskID uuid.UUID           `json:"traineeTaskId"`
	Status        training.TaskStatus `json:"status"`
	CompletedAt   *time.Time          `json:"completedAt"`
	SubjectNudged bool                `json:"subjectNudged"`
}

type CompleteSubjectInput struct {
	TraineeID uuid.UUID
	SubjectID uuid.UUID
	At        time.Time
}

type CompleteSubjectResult struct {
	SubjectID      uuid.UUID      `json:"subjectId"`
	CourseID       uuid.UUID      `json:"courseId"`
	TasksCompleted int64          `json:"tasksCompleted"`
	Cascade        CascadeOutcome `json:"cascade"`
}

type EnsureTraineeTaskInput struct {
	TraineeID uuid.UUID
	TaskID    uuid.UUID
	At        time.Time
}

// CascadeOutcome reports which parent transitions fired inside one unit of work.
// Each flag is true only for the call that performed the transition.
type CascadeOutcome struct {
	FinishedSubjectIDs     []uuid.UUID `json:"finishedSubjectIds"`
	TraineeCourseCompleted bool        `json:"traineeCourseCompleted"`
	CompletedTraineeIDs    []uuid.UUID `json:"completedTraineeIds"`
	CourseFinished         bool        `json:"courseFinished"`
}

// SubjectFinished reports whether id was closed by this cascade.
func (c CascadeOutcome) SubjectFinished(id uuid.UUID) bool {
	for _, s := range c.FinishedSubjectIDs {
		if s == id {
			return true
		}
	}
	return false
}

// LifecycleAggregate owns explicit lifecycle transitions and structural changes.
type LifecycleAggregate interface {
	Aggregate

	StartCourse(ctx context.Context, in CourseTransitionInput) (StartCourseResult, error)
	FinishCourse(ctx context.Context, in CourseTransitionInput) (FinishCourseResult, error)
	DeleteCourse(ctx context.Context, in CourseTransitionInput) error

	CreateSubject(ctx context.Context, in CreateSubjectInput) (*training.Subject, error)
	StartSubject(ctx context.Context, in SubjectTransitionInput) (StartSubjectResult, error)
	FinishSubject(ctx context.Context, in SubjectTransitionInput) (FinishSubjectResult, error)
	DeleteSubject(ctx context.Context, in SubjectTransitionInput) (DeleteSubjectResult, error)

	CreateTask(ctx context.Context, in CreateTaskInput) (*training.Task, error)
	DeleteTask(ctx context.Context, in DeleteTaskInput) error
}

type CourseTransitionInput struct {
	CourseID uuid.UUID
	At       time.Time
}

type StartCourseResult struct {
	CourseID         uuid.UUID   `json:"courseId"`
	StartedSubjectID *uuid.UUID  `json:"startedSubjectId"`
	TraineeIDs       []uuid.UUID `json:"traineeIds"`
}

type FinishCourseResult struct {
	CourseID                uuid.UUID   `json:"courseId"`
	SubjectsFinished        int64       `json:"subjectsFinished"`
	TraineeSubjectsFinished int64       `json:"traineeSubjectsFinished"`
	TraineeTasksCompleted   int64       `json:"traineeTasksCompleted"`
	TraineeIDs              []uuid.UUID `json:"traineeIds"`
}

type SubjectTransitionInput struct {
	SubjectID uuid.UUID
	At        time.Time
}

type StartSubjectResult struct {
	SubjectID  uuid.UUID   `json:"subjectId"`
	CourseID   uuid.UUID   `json:"courseId"`
	TraineeIDs []uuid.UUID `json:"traineeIds"`
}

type FinishSubjectResult struct {
	SubjectID               uuid.UUID      `json:"subjectId"`
	CourseID                uuid.UUID      `json:"courseId"`
	TraineeSubjectsFinished int64          `json:"traineeSubjectsFinished"`
	TraineeTasksCompleted   int64          `json:"traineeTasksCompleted"`
	TraineeIDs              []uuid.UUID    `json:"traineeIds"`
	Cascade                 CascadeOutcome `json:"cascade"`
}

// DeleteSubjectResult carries the course auto-close that removing the last unfinished
// subject of a running course can trigger.
type DeleteSubjectResult struct {
	SubjectID uuid.UUID      `json:"subjectId"`
	CourseID  uuid.UUID      `json:"courseId"`
	Cascade   CascadeOutcome `json:"cascade"`
}

type CreateSubjectInput struct {
	CourseID    uuid.UUID
	Title       string
	Description string
	Order       int
	StartDate   *time.Time
	EndDate     *time.Time
}

type CreateTaskInput struct {
	SubjectID   uuid.UUID
	Title       string
	Description string
	DueDate     *time.Time
	Order       int
}

type DeleteTaskInput struct {
	TaskID uuid.UUID
}
