package aggregates

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/trainhub-backend/internal/data/repos"
	repotest "github.com/yungbote/trainhub-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

type harness struct {
	db    *gorm.DB
	ctx   context.Context
	hooks *spyHooks

	courses         repos.CourseRepo
	subjects        repos.SubjectRepo
	tasks           repos.TaskRepo
	courseTrainees  repos.CourseTraineeRepo
	traineeSubjects repos.TraineeSubjectRepo
	traineeTasks    repos.TraineeTaskRepo

	enrollment  domainagg.EnrollmentAggregate
	progression domainagg.ProgressionAggregate
	lifecycle   domainagg.LifecycleAggregate

	supervisor *user.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessOn(t, repotest.DB(t), DefaultLockTimeout)
}

func newHarnessOn(t *testing.T, db *gorm.DB, lockTimeout time.Duration) *harness {
	t.Helper()
	log := repotest.Logger(t)
	h := &harness{
		db:              db,
		ctx:             context.Background(),
		hooks:           &spyHooks{},
		courses:         repos.NewCourseRepo(db, log),
		subjects:        repos.NewSubjectRepo(db, log),
		tasks:           repos.NewTaskRepo(db, log),
		courseTrainees:  repos.NewCourseTraineeRepo(db, log),
		traineeSubjects: repos.NewTraineeSubjectRepo(db, log),
		traineeTasks:    repos.NewTraineeTaskRepo(db, log),
	}
	base := BaseDeps{
		DB:       db,
		Log:      log,
		Runner:   NewGormTxRunner(db, lockTimeout),
		Hooks:    h.hooks,
		CASGuard: NewCASGuard(db),
	}
	files := repos.NewTraineeTaskFileRepo(db, log)
	h.enrollment = NewEnrollmentAggregate(EnrollmentAggregateDeps{
		Base:             base,
		Users:            repos.NewUserRepo(db, log),
		Courses:          h.courses,
		Subjects:         h.subjects,
		Tasks:            h.tasks,
		CourseTrainees:   h.courseTrainees,
		TraineeSubjects:  h.traineeSubjects,
		TraineeTasks:     h.traineeTasks,
		TraineeTaskFiles: files,
	})
	h.progression = NewProgressionAggregate(ProgressionAggregateDeps{
		Base:            base,
		Courses:         h.courses,
		Subjects:        h.subjects,
		Tasks:           h.tasks,
		CourseTrainees:  h.courseTrainees,
		TraineeSubjects: h.traineeSubjects,
		TraineeTasks:    h.traineeTasks,
	})
	h.lifecycle = NewLifecycleAggregate(LifecycleAggregateDeps{
		Base:             base,
		Courses:          h.courses,
		CourseTrainers:   repos.NewCourseTrainerRepo(db, log),
		Subjects:         h.subjects,
		Tasks:            h.tasks,
		CourseTrainees:   h.courseTrainees,
		TraineeSubjects:  h.traineeSubjects,
		TraineeTasks:     h.traineeTasks,
		TraineeTaskFiles: files,
	})
	h.supervisor = repotest.SeedUser(t, h.ctx, db, user.RoleSupervisor)
	return h
}

func (h *harness) dbc() dbctx.Context { return dbctx.Background(h.ctx) }

func (h *harness) trainee(t *testing.T) *user.User {
	t.Helper()
	return repotest.SeedUser(t, h.ctx, h.db, user.RoleTrainee)
}

// course seeds a NOT_STARTED course with the given number of tasks per subject.
func (h *harness) course(t *testing.T, tasksPerSubject ...int) (*training.Course, []*training.Subject, [][]*training.Task) {
	t.Helper()
	c := repotest.SeedCourse(t, h.ctx, h.db, h.supervisor.ID, training.StatusNotStarted)
	var subjects []*training.Subject
	var tasks [][]*training.Task
	for i, n := range tasksPerSubject {
		s := repotest.SeedSubject(t, h.ctx, h.db, c.ID, i+1, training.StatusNotStarted)
		subjects = append(subjects, s)
		var st []*training.Task
		for j := 0; j < n; j++ {
			st = append(st, repotest.SeedTask(t, h.ctx, h.db, s.ID, j+1, nil))
		}
		tasks = append(tasks, st)
	}
	return c, subjects, tasks
}

func (h *harness) enroll(t *testing.T, courseID uuid.UUID, trainees ...*user.User) {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(trainees))
	for _, u := range trainees {
		ids = append(ids, u.ID)
	}
	if _, err := h.enrollment.EnrollTrainees(h.ctx, domainagg.EnrollTraineesInput{CourseID: courseID, TraineeIDs: ids}); err != nil {
		t.Fatalf("EnrollTrainees: %v", err)
	}
}

func (h *harness) start(t *testing.T, courseID uuid.UUID) {
	t.Helper()
	if _, err := h.lifecycle.StartCourse(h.ctx, domainagg.CourseTransitionInput{CourseID: courseID}); err != nil {
		t.Fatalf("StartCourse: %v", err)
	}
}

func (h *harness) completeTask(t *testing.T, traineeID, taskID uuid.UUID) {
	t.Helper()
	if _, err := h.progression.SetTaskCompletion(h.ctx, domainagg.SetTaskCompletionInput{
		TraineeID: traineeID,
		TaskID:    taskID,
		Completed: true,
	}); err != nil {
		t.Fatalf("SetTaskCompletion(%s): %v", taskID, err)
	}
}

func (h *harness) courseStatus(t *testing.T, id uuid.UUID) training.Status {
	t.Helper()
	c, err := h.courses.GetByID(h.dbc(), id)
	if err != nil || c == nil {
		t.Fatalf("GetByID course: %v (nil=%v)", err, c == nil)
	}
	return c.Status
}

func (h *harness) subjectStatus(t *testing.T, id uuid.UUID) training.Status {
	t.Helper()
	s, err := h.subjects.GetByID(h.dbc(), id)
	if err != nil || s == nil {
		t.Fatalf("GetByID subject: %v (nil=%v)", err, s == nil)
	}
	return s.Status
}

func (h *harness) traineeSubject(t *testing.T, courseID, traineeID, subjectID uuid.UUID) *training.TraineeSubject {
	t.Helper()
	ct, err := h.courseTrainees.GetByCourseAndTrainee(h.dbc(), courseID, traineeID)
	if err != nil || ct == nil {
		t.Fatalf("GetByCourseAndTrainee: %v (nil=%v)", err, ct == nil)
	}
	ts, err := h.traineeSubjects.GetByCourseTraineeAndSubject(h.dbc(), ct.ID, subjectID)
	if err != nil {
		t.Fatalf("GetByCourseTraineeAndSubject: %v", err)
	}
	return ts
}

func wantCode(t *testing.T, err error, code domainagg.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := domainagg.CodeOf(err); got != code {
		t.Fatalf("error code: want=%s got=%s (%v)", code, got, err)
	}
}
