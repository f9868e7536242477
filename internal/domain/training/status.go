package training

// Status is shared by Course, Subject and TraineeSubject.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusFinished:
		return true
	}
	return false
}

type EnrollmentStatus string

const (
	EnrollmentActive EnrollmentStatus = "ACTIVE"
	EnrollmentPass   EnrollmentStatus = "PASS"
	EnrollmentFail   EnrollmentStatus = "FAIL"
	EnrollmentResign EnrollmentStatus = "RESIGN"
)

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentActive, EnrollmentPass, EnrollmentFail, EnrollmentResign:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskNotStarted TaskStatus = "NOT_STARTED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
)
