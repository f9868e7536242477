package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/trainhub-backend/internal/data/aggregates"
	"github.com/yungbote/trainhub-backend/internal/data/repos"
	"github.com/yungbote/trainhub-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/trainhub-backend/internal/realtime"
)

type fakeBus struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
}

func (b *fakeBus) Publish(_ context.Context, msg realtime.SSEMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
	return nil
}

func (b *fakeBus) StartForwarder(context.Context, func(realtime.SSEMessage)) error { return nil }
func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) events(channel string) []realtime.SSEEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []realtime.SSEEvent
	for _, m := range b.msgs {
		if m.Channel == channel {
			out = append(out, m.Event)
		}
	}
	return out
}

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failPut bool
}

func newFakeBucket() *fakeBucket { return &fakeBucket{objects: map[string][]byte{}} }

func (f *fakeBucket) UploadFile(_ context.Context, key, _ string, r io.Reader) (int64, error) {
	if f.failPut {
		return 0, errors.New("bucket down")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = b
	return int64(len(b)), nil
}

func (f *fakeBucket) DownloadFile(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeBucket) DeleteFile(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBucket) DeleteKeys(ctx context.Context, keys []string) error {
	for _, k := range keys {
		_ = f.DeleteFile(ctx, k)
	}
	return nil
}

func (f *fakeBucket) ListKeys(_ context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeBucket) DeletePrefix(ctx context.Context, prefix string) error {
	keys, _ := f.ListKeys(ctx, prefix)
	return f.DeleteKeys(ctx, keys)
}

func (f *fakeBucket) GetPublicURL(key string) string { return "https://files.test/" + key }

type harness struct {
	db     *gorm.DB
	bus    *fakeBus
	bucket *fakeBucket

	users           repos.UserRepo
	tokens          repos.UserTokenRepo
	courses         repos.CourseRepo
	trainers        repos.CourseTrainerRepo
	subjects        repos.SubjectRepo
	tasks           repos.TaskRepo
	courseTrainees  repos.CourseTraineeRepo
	traineeSubjects repos.TraineeSubjectRepo
	traineeTasks    repos.TraineeTaskRepo
	files           repos.TraineeTaskFileRepo
	reports         repos.DailyReportRepo
	notifications   repos.NotificationRepo
	emailJobs       repos.EmailJobRepo

	authz       Authorizer
	announcer   *Announcer
	notifySvc   NotificationService
	courseSvc   CourseService
	subjectSvc  SubjectService
	taskSvc     TaskService
	progression ProgressionService
	progress    ProgressService
	grading     GradingService
	evidence    EvidenceService
	reportSvc   ReportService
	reminders   ReminderService
	userSvc     UserService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	h := &harness{db: gdb, bus: &fakeBus{}, bucket: newFakeBucket()}

	h.users = repos.NewUserRepo(gdb, log)
	h.tokens = repos.NewUserTokenRepo(gdb, log)
	h.courses = repos.NewCourseRepo(gdb, log)
	h.trainers = repos.NewCourseTrainerRepo(gdb, log)
	h.subjects = repos.NewSubjectRepo(gdb, log)
	h.tasks = repos.NewTaskRepo(gdb, log)
	h.courseTrainees = repos.NewCourseTraineeRepo(gdb, log)
	h.traineeSubjects = repos.NewTraineeSubjectRepo(gdb, log)
	h.traineeTasks = repos.NewTraineeTaskRepo(gdb, log)
	h.files = repos.NewTraineeTaskFileRepo(gdb, log)
	h.reports = repos.NewDailyReportRepo(gdb, log)
	h.notifications = repos.NewNotificationRepo(gdb, log)
	h.emailJobs = repos.NewEmailJobRepo(gdb, log)

	base := aggregates.BaseDeps{DB: gdb, Log: log}
	enrollment := aggregates.NewEnrollmentAggregate(aggregates.EnrollmentAggregateDeps{
		Base: base, Users: h.users, Courses: h.courses, Subjects: h.subjects, Tasks: h.tasks,
		CourseTrainees: h.courseTrainees, TraineeSubjects: h.traineeSubjects, TraineeTasks: h.traineeTasks,
		TraineeTaskFiles: h.files,
	})
	lifecycle := aggregates.NewLifecycleAggregate(aggregates.LifecycleAggregateDeps{
		Base: base, Courses: h.courses, CourseTrainers: h.trainers, Subjects: h.subjects, Tasks: h.tasks,
		CourseTrainees: h.courseTrainees, TraineeSubjects: h.traineeSubjects, TraineeTasks: h.traineeTasks,
		TraineeTaskFiles: h.files,
	})
	progression := aggregates.NewProgressionAggregate(aggregates.ProgressionAggregateDeps{
		Base: base, Courses: h.courses, Subjects: h.subjects, Tasks: h.tasks,
		CourseTrainees: h.courseTrainees, TraineeSubjects: h.traineeSubjects, TraineeTasks: h.traineeTasks,
	})

	h.authz = NewAuthorizer(h.courses, h.trainers, h.courseTrainees)
	h.notifySvc = NewNotificationService(log, h.notifications, h.bus, nil)
	emails := NewEmailQueue(log, h.emailJobs, 3)
	h.announcer = NewAnnouncer(log, h.users, h.notifySvc, emails, h.bus, "https://app.test")

	h.userSvc = NewUserService(gdb, log, h.users, h.tokens)
	h.courseSvc = NewCourseService(CourseServiceDeps{
		Log: log, Courses: h.courses, Trainers: h.trainers, Users: h.users, Trainees: h.courseTrainees,
		Authorizer: h.authz, Lifecycle: lifecycle, Enrollment: enrollment, Bucket: h.bucket, Announcer: h.announcer,
	})
	h.subjectSvc = NewSubjectService(SubjectServiceDeps{
		Log: log, Subjects: h.subjects, Trainees: h.courseTrainees, Authorizer: h.authz,
		Lifecycle: lifecycle, Announcer: h.announcer,
	})
	h.taskSvc = NewTaskService(TaskServiceDeps{
		Log: log, Subjects: h.subjects, Tasks: h.tasks, Authorizer: h.authz, Lifecycle: lifecycle,
	})
	h.progression = NewProgressionService(ProgressionServiceDeps{
		Log: log, Courses: h.courses, Subjects: h.subjects, Trainees: h.courseTrainees,
		Progression: progression, Announcer: h.announcer,
	})
	h.progress = NewProgressService(ProgressServiceDeps{
		Log: log, Users: h.users, Courses: h.courses, Subjects: h.subjects, Tasks: h.tasks,
		CourseTrainees: h.courseTrainees, TraineeSubjects: h.traineeSubjects, TraineeTasks: h.traineeTasks,
		Authorizer: h.authz,
	})
	h.grading = NewGradingService(GradingServiceDeps{
		Log: log, Subjects: h.subjects, CourseTrainees: h.courseTrainees, TraineeSubjects: h.traineeSubjects,
		Authorizer: h.authz, Announcer: h.announcer,
	})
	h.evidence = NewEvidenceService(EvidenceServiceDeps{
		Log: log, Subjects: h.subjects, Tasks: h.tasks, TraineeTasks: h.traineeTasks, Files: h.files,
		Progression: progression, Authorizer: h.authz, Bucket: h.bucket,
	})
	h.reportSvc = NewReportService(log, h.reports, h.authz)
	h.reminders = NewReminderService(log, h.tasks, h.courseTrainees, h.traineeTasks, h.announcer)
	return h
}

func (h *harness) seedUser(t *testing.T, role user.Role) *user.User {
	t.Helper()
	return testutil.SeedUser(t, context.Background(), h.db, role)
}

func as(u *user.User) context.Context {
	return ctxutil.WithActor(context.Background(), &ctxutil.Actor{UserID: u.ID, Role: string(u.Role)})
}

func (h *harness) notificationTypes(t *testing.T, userID uuid.UUID) []string {
	t.Helper()
	var types []string
	if err := h.db.Table("notification").Where("user_id = ?", userID).Order("created_at ASC").Pluck("type", &types).Error; err != nil {
		t.Fatalf("load notifications: %v", err)
	}
	return types
}

func (h *harness) emailKinds(t *testing.T) []string {
	t.Helper()
	var kinds []string
	if err := h.db.Table("email_job").Order("kind ASC").Pluck("kind", &kinds).Error; err != nil {
		t.Fatalf("load email jobs: %v", err)
	}
	return kinds
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func requireCode(t *testing.T, err error, code domainagg.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := domainagg.CodeOf(err); got != code {
		t.Fatalf("expected code %s, got %s (%v)", code, got, err)
	}
}

func bytesReader(s string) io.Reader { return strings.NewReader(s) }
