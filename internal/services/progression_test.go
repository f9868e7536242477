package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/notify"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
)

type startedCourse struct {
	trainer  *user.User
	trainees []*user.User
	course   *training.Course
	subject  *training.Subject
	tasks    []*training.Task
}

// startCourse builds a running course with one subject, the given task count and trainees.
func (h *harness) startCourse(t *testing.T, tasks, trainees int) startedCourse {
	t.Helper()
	sc := startedCourse{trainer: h.seedUser(t, user.RoleTrainer)}
	ctx := as(sc.trainer)
	var err error
	if sc.course, err = h.courseSvc.Create(ctx, CreateCourseInput{Title: "Course"}); err != nil {
		t.Fatalf("create course: %v", err)
	}
	if sc.subject, err = h.subjectSvc.Create(ctx, sc.course.ID, CreateSubjectInput{Title: "Subject"}); err != nil {
		t.Fatalf("create subject: %v", err)
	}
	for i := 0; i < tasks; i++ {
		task, err := h.taskSvc.Create(ctx, sc.subject.ID, CreateTaskInput{Title: "Task"})
		if err != nil {
			t.Fatalf("create task: %v", err)
		}
		sc.tasks = append(sc.tasks, task)
	}
	var ids []uuid.UUID
	for i := 0; i < trainees; i++ {
		u := h.seedUser(t, user.RoleTrainee)
		sc.trainees = append(sc.trainees, u)
		ids = append(ids, u.ID)
	}
	if len(ids) > 0 {
		if _, err := h.courseSvc.Enroll(ctx, sc.course.ID, ids, false); err != nil {
			t.Fatalf("enroll: %v", err)
		}
	}
	if _, err := h.courseSvc.Start(ctx, sc.course.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	return sc
}

func TestSetTaskCompletionRequiresTrainee(t *testing.T) {
	h := newHarness(t)
	sc := h.startCourse(t, 1, 1)
	_, err := h.progression.SetTaskCompletion(as(sc.trainer), sc.tasks[0].ID, true)
	requireCode(t, err, domainagg.CodeForbidden)

	_, err = h.progression.SetTaskCompletion(context.Background(), sc.tasks[0].ID, true)
	if err == nil {
		t.Fatalf("expected unauthenticated call to fail")
	}
}

func TestProgressionForUnenrolledTraineeIsNotFound(t *testing.T) {
	h := newHarness(t)
	sc := h.startCourse(t, 1, 1)
	outsider := h.seedUser(t, user.RoleTrainee)

	_, err := h.progression.SetTaskCompletion(as(outsider), sc.tasks[0].ID, true)
	requireCode(t, err, domainagg.CodeNotFound)
	_, err = h.progression.SetTaskCompletion(as(outsider), sc.tasks[0].ID, false)
	requireCode(t, err, domainagg.CodeNotFound)
	_, err = h.progression.CompleteSubject(as(outsider), sc.subject.ID)
	requireCode(t, err, domainagg.CodeNotFound)
}

func TestUncompleteTaskReturnsToInProgress(t *testing.T) {
	h := newHarness(t)
	sc := h.startCourse(t, 1, 1)
	ctx := as(sc.trainees[0])
	if _, err := h.progression.SetTaskCompletion(ctx, sc.tasks[0].ID, true); err != nil {
		t.Fatalf("complete: %v", err)
	}
	res, err := h.progression.SetTaskCompletion(ctx, sc.tasks[0].ID, false)
	if err != nil {
		t.Fatalf("uncomplete: %v", err)
	}
	if res.Status != training.TaskInProgress || res.CompletedAt != nil {
		t.Fatalf("expected IN_PROGRESS without completedAt, got %+v", res)
	}
}

func TestCompleteSubjectWaitsForEveryTrainee(t *testing.T) {
	h := newHarness(t)
	sc := h.startCourse(t, 2, 2)
	first, second := sc.trainees[0], sc.trainees[1]

	res, err := h.progression.CompleteSubject(as(first), sc.subject.ID)
	if err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if res.TasksCompleted != 2 {
		t.Fatalf("expected both tasks completed, got %d", res.TasksCompleted)
	}
	if res.Cascade.SubjectFinished(sc.subject.ID) || res.Cascade.CourseFinished {
		t.Fatalf("subject must stay open while a trainee is unfinished: %+v", res.Cascade)
	}
	if !res.Cascade.TraineeCourseCompleted {
		t.Fatalf("expected first trainee's course completion")
	}

	_, err = h.progression.CompleteSubject(as(first), sc.subject.ID)
	requireCode(t, err, domainagg.CodeConflict)

	res, err = h.progression.CompleteSubject(as(second), sc.subject.ID)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if !res.Cascade.SubjectFinished(sc.subject.ID) || !res.Cascade.CourseFinished {
		t.Fatalf("expected subject and course to close, got %+v", res.Cascade)
	}
	if !contains(h.notificationTypes(t, first.ID), notify.TypeCourseFinished) {
		t.Fatalf("first trainee should hear the course finished")
	}
}

func TestCourseProgressSummaries(t *testing.T) {
	h := newHarness(t)
	sc := h.startCourse(t, 2, 2)
	first, second := sc.trainees[0], sc.trainees[1]
	if _, err := h.progression.SetTaskCompletion(as(first), sc.tasks[0].ID, true); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	all, err := h.progress.CourseProgress(as(sc.trainer), sc.course.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if len(all.Trainees) != 2 {
		t.Fatalf("expected two rows, got %d", len(all.Trainees))
	}
	for _, row := range all.Trainees {
		if row.TasksTotal != 2 || row.SubjectsTotal != 1 {
			t.Fatalf("unexpected totals %+v", row)
		}
		want := 0
		if row.TraineeID == first.ID {
			want = 1
		}
		if row.TasksCompleted != want {
			t.Fatalf("trainee %s: expected %d completed, got %d", row.TraineeID, want, row.TasksCompleted)
		}
	}

	own, err := h.progress.CourseProgress(as(second), sc.course.ID)
	if err != nil {
		t.Fatalf("own progress: %v", err)
	}
	if len(own.Trainees) != 1 || own.Trainees[0].TraineeID != second.ID {
		t.Fatalf("trainee must only see their own row, got %+v", own.Trainees)
	}

	outsider := h.seedUser(t, user.RoleTrainee)
	_, err = h.progress.CourseProgress(as(outsider), sc.course.ID)
	requireCode(t, err, domainagg.CodeForbidden)

	courses, err := h.progress.TraineeCourses(as(first))
	if err != nil {
		t.Fatalf("trainee courses: %v", err)
	}
	if len(courses) != 1 || courses[0].Course.ID != sc.course.ID || courses[0].Status != training.EnrollmentActive {
		t.Fatalf("unexpected trainee courses %+v", courses)
	}
}

func TestGrading(t *testing.T) {
	h := newHarness(t)
	sc := h.startCourse(t, 1, 1)
	trainee := sc.trainees[0]
	ctx := as(sc.trainer)

	_, err := h.grading.SetSubjectGrade(ctx, sc.course.ID, trainee.ID, sc.subject.ID, 101, "")
	requireCode(t, err, domainagg.CodeValidation)

	ts, err := h.grading.SetSubjectGrade(ctx, sc.course.ID, trainee.ID, sc.subject.ID, 87, "solid")
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if ts.Grade == nil || *ts.Grade != 87 || ts.Feedback != "solid" {
		t.Fatalf("unexpected grade row %+v", ts)
	}
	if !contains(h.notificationTypes(t, trainee.ID), notify.TypeGradePosted) {
		t.Fatalf("expected grade notification")
	}

	_, err = h.grading.SetCourseResult(ctx, sc.course.ID, trainee.ID, training.EnrollmentActive)
	requireCode(t, err, domainagg.CodeValidation)
	ct, err := h.grading.SetCourseResult(ctx, sc.course.ID, trainee.ID, training.EnrollmentPass)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if ct.Status != training.EnrollmentPass {
		t.Fatalf("expected PASS, got %s", ct.Status)
	}
	_, err = h.grading.SetCourseResult(as(trainee), sc.course.ID, trainee.ID, training.EnrollmentPass)
	requireCode(t, err, domainagg.CodeForbidden)
}

func TestEvidenceUploadAndList(t *testing.T) {
	h := newHarness(t)
	sc := h.startCourse(t, 1, 1)
	trainee := sc.trainees[0]
	task := sc.tasks[0]

	f, err := h.evidence.Upload(as(trainee), task.ID, EvidenceUpload{
		FileName: "../My Report.pdf", ContentType: "application/pdf", Size: 4, Body: bytesReader("%PDF"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if f.FileName != "My_Report.pdf" || f.SizeBytes != 4 {
		t.Fatalf("unexpected file row %+v", f)
	}
	tt, err := h.traineeTasks.GetByTraineeAndTask(dbctx.Context{Ctx: context.Background()}, trainee.ID, task.ID)
	if err != nil || tt == nil {
		t.Fatalf("expected lazily created trainee task: %v", err)
	}
	if tt.Status != training.TaskInProgress {
		t.Fatalf("expected IN_PROGRESS trainee task, got %s", tt.Status)
	}
	wantPrefix := "trainee_tasks/" + tt.ID.String() + "/"
	if len(f.BucketKey) <= len(wantPrefix) || f.BucketKey[:len(wantPrefix)] != wantPrefix {
		t.Fatalf("unexpected key %q", f.BucketKey)
	}

	mine, err := h.evidence.List(as(trainee), task.ID, uuid.Nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].URL != "https://files.test/"+f.BucketKey {
		t.Fatalf("unexpected files %+v", mine)
	}
	theirs, err := h.evidence.List(as(sc.trainer), task.ID, trainee.ID)
	if err != nil {
		t.Fatalf("trainer list: %v", err)
	}
	if len(theirs) != 1 {
		t.Fatalf("trainer should see the trainee's file, got %d", len(theirs))
	}

	h.bucket.failPut = true
	_, err = h.evidence.Upload(as(trainee), task.ID, EvidenceUpload{FileName: "x.txt", Size: 1, Body: bytesReader("x")})
	requireCode(t, err, domainagg.CodeInternal)

	_, err = h.evidence.Upload(as(trainee), task.ID, EvidenceUpload{FileName: "big.bin", Size: MaxEvidenceBytes + 1, Body: bytesReader("")})
	requireCode(t, err, domainagg.CodeValidation)
}

func TestDailyReports(t *testing.T) {
	h := newHarness(t)
	sc := h.startCourse(t, 0, 1)
	trainee := sc.trainees[0]
	ctx := as(trainee)

	r, err := h.reportSvc.Create(ctx, CreateReportInput{CourseID: sc.course.ID, Date: "2026-03-02", Content: "did stuff"})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	if r.ReportDate != "2026-03-02" {
		t.Fatalf("unexpected date %q", r.ReportDate)
	}
	_, err = h.reportSvc.Create(ctx, CreateReportInput{CourseID: sc.course.ID, Date: "2026-03-02", Content: "again"})
	requireCode(t, err, domainagg.CodeConflict)

	_, err = h.reportSvc.Create(ctx, CreateReportInput{CourseID: sc.course.ID, Date: "03/02/2026", Content: "x"})
	requireCode(t, err, domainagg.CodeValidation)

	outsider := h.seedUser(t, user.RoleTrainee)
	_, err = h.reportSvc.Create(as(outsider), CreateReportInput{CourseID: sc.course.ID, Content: "x"})
	requireCode(t, err, domainagg.CodeForbidden)

	page, err := h.reportSvc.List(as(sc.trainer), nil, Page{})
	if err != nil {
		t.Fatalf("trainer list: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("trainer should see one report, got %d", page.Total)
	}
	other := h.seedUser(t, user.RoleTrainer)
	page, err = h.reportSvc.List(as(other), nil, Page{})
	if err != nil {
		t.Fatalf("other list: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("unrelated trainer should see nothing, got %d", page.Total)
	}
}

func TestSendDueReminders(t *testing.T) {
	h := newHarness(t)
	sc := h.startCourse(t, 0, 2)
	done, pending := sc.trainees[0], sc.trainees[1]

	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	soon := now.Add(6 * time.Hour)
	later := now.Add(72 * time.Hour)
	ctx := as(sc.trainer)
	dueSoon, err := h.taskSvc.Create(ctx, sc.subject.ID, CreateTaskInput{Title: "Soon", DueDate: &soon})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := h.taskSvc.Create(ctx, sc.subject.ID, CreateTaskInput{Title: "Later", DueDate: &later}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := h.progression.SetTaskCompletion(as(done), dueSoon.ID, true); err != nil {
		t.Fatalf("complete: %v", err)
	}

	res, err := h.reminders.SendDueReminders(context.Background(), now)
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if res.Tasks != 1 || res.Reminders != 1 {
		t.Fatalf("expected one task and one reminder, got %+v", res)
	}
	if contains(h.notificationTypes(t, done.ID), notify.TypeTaskDue) {
		t.Fatalf("trainee who completed the task must not be reminded")
	}
	if !contains(h.notificationTypes(t, pending.ID), notify.TypeTaskDue) {
		t.Fatalf("pending trainee should be reminded")
	}
	if !contains(h.emailKinds(t), EmailKindTaskReminder) {
		t.Fatalf("expected reminder email")
	}
}

func TestNotificationReadFlow(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, user.RoleTrainee)
	ctx := as(u)
	created, err := h.notifySvc.Create(context.Background(),
		NotificationInput{UserID: u.ID, Type: notify.TypeEnrolled, Title: "one"},
		NotificationInput{UserID: u.ID, Type: notify.TypeGradePosted, Title: "two", Metadata: map[string]any{"grade": 90}},
		NotificationInput{Type: notify.TypeEnrolled, Title: "no recipient"},
	)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected two rows, got %d", len(created))
	}
	n, err := h.notifySvc.UnreadCount(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 unread, got %d (%v)", n, err)
	}
	if err := h.notifySvc.MarkRead(ctx, created[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	requireCode(t, h.notifySvc.MarkRead(ctx, created[0].ID), domainagg.CodeNotFound)

	other := h.seedUser(t, user.RoleTrainee)
	requireCode(t, h.notifySvc.MarkRead(as(other), created[1].ID), domainagg.CodeNotFound)

	unread, err := h.notifySvc.List(ctx, true, Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if unread.Total != 1 || unread.Items[0].ID != created[1].ID {
		t.Fatalf("unexpected unread page %+v", unread)
	}
}
