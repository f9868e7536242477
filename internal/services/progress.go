package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

type TraineeProgress struct {
	TraineeID        uuid.UUID                 `json:"traineeId"`
	FullName         string                    `json:"fullName"`
	Email            string                    `json:"email"`
	Status           training.EnrollmentStatus `json:"status"`
	EnrolledAt       time.Time                 `json:"enrolledAt"`
	CompletedAt      *time.Time                `json:"completedAt,omitempty"`
	SubjectsFinished int                       `json:"subjectsFinished"`
	SubjectsTotal    int                       `json:"subjectsTotal"`
	TasksCompleted   int                       `json:"tasksCompleted"`
	TasksTotal       int                       `json:"tasksTotal"`
}

type CourseProgress struct {
	CourseID uuid.UUID         `json:"courseId"`
	Status   training.Status   `json:"status"`
	Trainees []TraineeProgress `json:"trainees"`
}

type TraineeCourse struct {
	Course      *training.Course          `json:"course"`
	Status      training.EnrollmentStatus `json:"enrollmentStatus"`
	EnrolledAt  time.Time                 `json:"enrolledAt"`
	CompletedAt *time.Time                `json:"completedAt,omitempty"`
}

type ProgressService interface {
	// CourseProgress summarizes every enrolled trainee. Trainees only get their own row.
	CourseProgress(ctx context.Context, courseID uuid.UUID) (*CourseProgress, error)
	TraineeCourses(ctx context.Context) ([]TraineeCourse, error)
}

type ProgressServiceDeps struct {
	Log             *logger.Logger
	Users           repos.UserRepo
	Courses         repos.CourseRepo
	Subjects        repos.SubjectRepo
	Tasks           repos.TaskRepo
	CourseTrainees  repos.CourseTraineeRepo
	TraineeSubjects repos.TraineeSubjectRepo
	TraineeTasks    repos.TraineeTaskRepo
	Authorizer      Authorizer
}

type progressService struct {
	deps ProgressServiceDeps
	log  *logger.Logger
}

func NewProgressService(deps ProgressServiceDeps) ProgressService {
	return &progressService{deps: deps, log: deps.Log.With("service", "ProgressService")}
}

func (s *progressService) CourseProgress(ctx context.Context, courseID uuid.UUID) (*CourseProgress, error) {
	const op = "Progress.CourseProgress"
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	course, err := s.deps.Authorizer.CanViewCourse(ctx, a.Actor, courseID)
	if err != nil {
		return nil, err
	}
	var (
		enrollments []*training.CourseTrainee
		subjectIDs  []uuid.UUID
	)
	g, gctx := errgroup.WithContext(ctx)
	gdbc := dbctx.Context{Ctx: gctx}
	g.Go(func() error {
		var err error
		enrollments, err = s.deps.CourseTrainees.ListByCourse(gdbc, courseID)
		return err
	})
	g.Go(func() error {
		var err error
		subjectIDs, err = s.deps.Subjects.ListIDsByCourse(gdbc, courseID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internal(op, err)
	}

	if a.role == user.RoleTrainee {
		own := enrollments[:0]
		for _, ct := range enrollments {
			if ct.TraineeID == a.UserID {
				own = append(own, ct)
			}
		}
		enrollments = own
	}
	out := &CourseProgress{CourseID: course.ID, Status: course.Status, Trainees: []TraineeProgress{}}
	if len(enrollments) == 0 {
		return out, nil
	}
	traineeIDs := make([]uuid.UUID, 0, len(enrollments))
	for _, ct := range enrollments {
		traineeIDs = append(traineeIDs, ct.TraineeID)
	}

	var (
		users       []*user.User
		taskIDs     []uuid.UUID
		subjectRows []*training.TraineeSubject
		taskRows    []*training.TraineeTask
	)
	g, gctx = errgroup.WithContext(ctx)
	gdbc = dbctx.Context{Ctx: gctx}
	g.Go(func() error {
		var err error
		users, err = s.deps.Users.GetByIDs(gdbc, traineeIDs)
		return err
	})
	g.Go(func() error {
		var err error
		subjectRows, err = s.deps.TraineeSubjects.ListBySubjects(gdbc, subjectIDs)
		return err
	})
	g.Go(func() error {
		var err error
		taskIDs, err = s.deps.Tasks.ListIDsBySubjects(gdbc, subjectIDs)
		if err != nil || len(taskIDs) == 0 {
			return err
		}
		taskRows, err = s.deps.TraineeTasks.ListByTraineesAndTasks(gdbc, traineeIDs, taskIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internal(op, err)
	}

	byUser := make(map[uuid.UUID]*user.User, len(users))
	for _, u := range users {
		byUser[u.ID] = u
	}
	subjectsDone := map[uuid.UUID]int{}
	for _, ts := range subjectRows {
		if ts.Status == training.StatusFinished {
			subjectsDone[ts.TraineeID]++
		}
	}
	tasksDone := map[uuid.UUID]int{}
	for _, tt := range taskRows {
		if tt.Status == training.TaskCompleted {
			tasksDone[tt.TraineeID]++
		}
	}
	for _, ct := range enrollments {
		p := TraineeProgress{
			TraineeID:        ct.TraineeID,
			Status:           ct.Status,
			EnrolledAt:       ct.EnrolledAt,
			CompletedAt:      ct.CompletedAt,
			SubjectsFinished: subjectsDone[ct.TraineeID],
			SubjectsTotal:    len(subjectIDs),
			TasksCompleted:   tasksDone[ct.TraineeID],
			TasksTotal:       len(taskIDs),
		}
		if u := byUser[ct.TraineeID]; u != nil {
			p.FullName = u.FullName
			p.Email = u.Email
		}
		out.Trainees = append(out.Trainees, p)
	}
	sort.SliceStable(out.Trainees, func(i, j int) bool {
		return out.Trainees[i].FullName < out.Trainees[j].FullName
	})
	return out, nil
}

func (s *progressService) TraineeCourses(ctx context.Context) ([]TraineeCourse, error) {
	const op = "Progress.TraineeCourses"
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	enrollments, err := s.deps.CourseTrainees.ListByTrainee(dbc, a.UserID)
	if err != nil {
		return nil, internal(op, err)
	}
	out := make([]TraineeCourse, 0, len(enrollments))
	if len(enrollments) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(enrollments))
	for _, ct := range enrollments {
		ids = append(ids, ct.CourseID)
	}
	courses, err := s.deps.Courses.GetByIDs(dbc, ids)
	if err != nil {
		return nil, internal(op, err)
	}
	byID := make(map[uuid.UUID]*training.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	for _, ct := range enrollments {
		c := byID[ct.CourseID]
		if c == nil {
			continue
		}
		out = append(out, TraineeCourse{
			Course:      c,
			Status:      ct.Status,
			EnrolledAt:  ct.EnrolledAt,
			CompletedAt: ct.CompletedAt,
		})
	}
	return out, nil
}
