package services

import (
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/notify"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/realtime"
)

func TestCourseFlowClosesCourseAndNotifies(t *testing.T) {
	h := newHarness(t)
	trainer := h.seedUser(t, user.RoleTrainer)
	trainee := h.seedUser(t, user.RoleTrainee)
	tctx := as(trainer)

	course, err := h.courseSvc.Create(tctx, CreateCourseInput{Title: "Go basics"})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	subj, err := h.subjectSvc.Create(tctx, course.ID, CreateSubjectInput{Title: "Syntax"})
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	task, err := h.taskSvc.Create(tctx, subj.ID, CreateTaskInput{Title: "Hello world"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	enrolled, err := h.courseSvc.Enroll(tctx, course.ID, []uuid.UUID{trainee.ID}, false)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if len(enrolled.Enrolled) != 1 {
		t.Fatalf("expected one enrollment, got %+v", enrolled)
	}
	started, err := h.courseSvc.Start(tctx, course.ID)
	if err != nil {
		t.Fatalf("start course: %v", err)
	}
	if started.StartedSubjectID == nil || *started.StartedSubjectID != subj.ID {
		t.Fatalf("expected first subject to start, got %+v", started)
	}

	sctx := as(trainee)
	toggled, err := h.progression.SetTaskCompletion(sctx, task.ID, true)
	if err != nil {
		t.Fatalf("complete task: %v", err)
	}
	if toggled.Status != training.TaskCompleted {
		t.Fatalf("expected COMPLETED, got %s", toggled.Status)
	}
	res, err := h.progression.CompleteSubject(sctx, subj.ID)
	if err != nil {
		t.Fatalf("complete subject: %v", err)
	}
	if !res.Cascade.SubjectFinished(subj.ID) || !res.Cascade.CourseFinished {
		t.Fatalf("expected subject and course to close, got %+v", res.Cascade)
	}

	got, err := h.courses.GetByID(dbctx.Context{Ctx: tctx}, course.ID)
	if err != nil {
		t.Fatalf("reload course: %v", err)
	}
	if got.Status != training.StatusFinished {
		t.Fatalf("expected FINISHED course, got %s", got.Status)
	}

	types := h.notificationTypes(t, trainee.ID)
	for _, want := range []string{notify.TypeEnrolled, notify.TypeCourseStarted, notify.TypeSubjectFinished, notify.TypeCourseFinished} {
		if !contains(types, want) {
			t.Fatalf("missing %s notification, got %v", want, types)
		}
	}
	kinds := h.emailKinds(t)
	if !contains(kinds, EmailKindEnrollment) || !contains(kinds, EmailKindCourseFinish) {
		t.Fatalf("expected enrollment and course-finish emails, got %v", kinds)
	}
	if events := h.bus.events(realtime.UserChannel(trainee.ID)); len(events) < 4 {
		t.Fatalf("expected realtime pushes for trainee, got %v", events)
	}
}

func TestCourseListIsScopedByRole(t *testing.T) {
	h := newHarness(t)
	supervisor := h.seedUser(t, user.RoleSupervisor)
	trainerA := h.seedUser(t, user.RoleTrainer)
	trainerB := h.seedUser(t, user.RoleTrainer)
	trainee := h.seedUser(t, user.RoleTrainee)

	own, err := h.courseSvc.Create(as(trainerA), CreateCourseInput{Title: "A"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other, err := h.courseSvc.Create(as(trainerB), CreateCourseInput{Title: "B"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.courseSvc.Enroll(as(trainerB), other.ID, []uuid.UUID{trainee.ID}, false); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	cases := []struct {
		name  string
		actor *user.User
		want  []uuid.UUID
	}{
		{"supervisor sees all", supervisor, []uuid.UUID{own.ID, other.ID}},
		{"trainer sees managed", trainerA, []uuid.UUID{own.ID}},
		{"trainee sees enrolled", trainee, []uuid.UUID{other.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := h.courseSvc.List(as(tc.actor), "", Page{})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if int(page.Total) != len(tc.want) || len(page.Items) != len(tc.want) {
				t.Fatalf("expected %d courses, got total=%d items=%d", len(tc.want), page.Total, len(page.Items))
			}
			seen := map[uuid.UUID]bool{}
			for _, c := range page.Items {
				seen[c.ID] = true
			}
			for _, id := range tc.want {
				if !seen[id] {
					t.Fatalf("missing course %s", id)
				}
			}
		})
	}
}

func TestCourseManagementRequiresAssignment(t *testing.T) {
	h := newHarness(t)
	creator := h.seedUser(t, user.RoleTrainer)
	outsider := h.seedUser(t, user.RoleTrainer)
	trainee := h.seedUser(t, user.RoleTrainee)

	course, err := h.courseSvc.Create(as(creator), CreateCourseInput{Title: "C"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.courseSvc.Start(as(outsider), course.ID); err == nil {
		t.Fatalf("expected outsider start to fail")
	} else {
		requireCode(t, err, domainagg.CodeForbidden)
	}
	if _, err := h.courseSvc.Create(as(trainee), CreateCourseInput{Title: "nope"}); err == nil {
		t.Fatalf("expected trainee create to fail")
	} else {
		requireCode(t, err, domainagg.CodeForbidden)
	}

	assigned, err := h.courseSvc.AssignTrainers(as(creator), course.ID, []uuid.UUID{outsider.ID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(assigned) != 1 || assigned[0] != outsider.ID {
		t.Fatalf("unexpected trainers %v", assigned)
	}
	if _, err := h.subjectSvc.Create(as(outsider), course.ID, CreateSubjectInput{Title: "S"}); err != nil {
		t.Fatalf("assigned trainer should manage course: %v", err)
	}

	_, err = h.courseSvc.AssignTrainers(as(creator), course.ID, []uuid.UUID{trainee.ID})
	requireCode(t, err, domainagg.CodeValidation)

	if err := h.courseSvc.RemoveTrainer(as(creator), course.ID, outsider.ID); err != nil {
		t.Fatalf("remove trainer: %v", err)
	}
	err = h.courseSvc.RemoveTrainer(as(creator), course.ID, outsider.ID)
	requireCode(t, err, domainagg.CodeNotFound)
}

func TestCourseUpdateAndDelete(t *testing.T) {
	h := newHarness(t)
	trainer := h.seedUser(t, user.RoleTrainer)
	ctx := as(trainer)
	course, err := h.courseSvc.Create(ctx, CreateCourseInput{Title: "Old"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	title := "New"
	updated, err := h.courseSvc.Update(ctx, course.ID, UpdateCourseInput{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "New" {
		t.Fatalf("expected new title, got %q", updated.Title)
	}
	blank := "  "
	_, err = h.courseSvc.Update(ctx, course.ID, UpdateCourseInput{Title: &blank})
	requireCode(t, err, domainagg.CodeValidation)

	if _, err := h.courseSvc.Start(ctx, course.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	err = h.courseSvc.Delete(ctx, course.ID)
	requireCode(t, err, domainagg.CodePreconditionFailed)
}

func TestDeletingLastOpenSubjectFinishesCourse(t *testing.T) {
	h := newHarness(t)
	trainer := h.seedUser(t, user.RoleTrainer)
	trainee := h.seedUser(t, user.RoleTrainee)
	tctx := as(trainer)

	course, err := h.courseSvc.Create(tctx, CreateCourseInput{Title: "Go basics"})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	first, err := h.subjectSvc.Create(tctx, course.ID, CreateSubjectInput{Title: "Syntax"})
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	second, err := h.subjectSvc.Create(tctx, course.ID, CreateSubjectInput{Title: "Generics"})
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	if _, err := h.courseSvc.Enroll(tctx, course.ID, []uuid.UUID{trainee.ID}, false); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := h.courseSvc.Start(tctx, course.ID); err != nil {
		t.Fatalf("start course: %v", err)
	}
	res, err := h.progression.CompleteSubject(as(trainee), first.ID)
	if err != nil {
		t.Fatalf("complete subject: %v", err)
	}
	if res.Cascade.CourseFinished {
		t.Fatalf("second subject should keep the course open")
	}

	if err := h.subjectSvc.Delete(tctx, second.ID); err != nil {
		t.Fatalf("delete subject: %v", err)
	}
	got, err := h.courses.GetByID(dbctx.Context{Ctx: tctx}, course.ID)
	if err != nil {
		t.Fatalf("reload course: %v", err)
	}
	if got.Status != training.StatusFinished {
		t.Fatalf("expected FINISHED course, got %s", got.Status)
	}
	if types := h.notificationTypes(t, trainee.ID); !contains(types, notify.TypeCourseFinished) {
		t.Fatalf("missing course-finished notification, got %v", types)
	}
}

func TestRemoveTraineeDeletesEvidenceObjects(t *testing.T) {
	h := newHarness(t)
	trainer := h.seedUser(t, user.RoleTrainer)
	trainee := h.seedUser(t, user.RoleTrainee)
	tctx := as(trainer)

	course, _ := h.courseSvc.Create(tctx, CreateCourseInput{Title: "Evidence"})
	subj, _ := h.subjectSvc.Create(tctx, course.ID, CreateSubjectInput{Title: "S"})
	task, _ := h.taskSvc.Create(tctx, subj.ID, CreateTaskInput{Title: "T"})
	if _, err := h.courseSvc.Enroll(tctx, course.ID, []uuid.UUID{trainee.ID}, false); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := h.courseSvc.Start(tctx, course.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	f, err := h.evidence.Upload(as(trainee), task.ID, EvidenceUpload{
		FileName: "proof.txt", ContentType: "text/plain", Size: 5, Body: bytesReader("proof"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	res, err := h.courseSvc.RemoveTrainee(tctx, course.ID, trainee.ID)
	if err != nil {
		t.Fatalf("remove trainee: %v", err)
	}
	if len(res.RemovedBucketKeys) != 1 || res.RemovedBucketKeys[0] != f.BucketKey {
		t.Fatalf("expected removed key %q, got %v", f.BucketKey, res.RemovedBucketKeys)
	}
	if !contains(h.bucket.deleted, f.BucketKey) {
		t.Fatalf("expected bucket delete of %q, got %v", f.BucketKey, h.bucket.deleted)
	}
	ids, err := h.courseTrainees.TraineeIDsByCourse(dbctx.Context{Ctx: tctx}, course.ID)
	if err != nil {
		t.Fatalf("list trainees: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no trainees, got %v", ids)
	}
}

func TestUserServiceCreateAndDeactivate(t *testing.T) {
	h := newHarness(t)
	admin := h.seedUser(t, user.RoleAdmin)
	supervisor := h.seedUser(t, user.RoleSupervisor)

	_, err := h.userSvc.Create(as(supervisor), CreateUserInput{Email: "a@x.io", Password: "secret123", Role: user.RoleAdmin})
	requireCode(t, err, domainagg.CodeForbidden)

	u, err := h.userSvc.Create(as(supervisor), CreateUserInput{Email: "t@x.io", Password: "secret123", FullName: "T", Role: user.RoleTrainer})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = h.userSvc.Create(as(admin), CreateUserInput{Email: "t@x.io", Password: "secret123", Role: user.RoleTrainee})
	requireCode(t, err, domainagg.CodeConflict)

	page, err := h.userSvc.List(as(supervisor), repos.UserFilter{Role: user.RoleTrainer}, Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected one trainer, got %d", page.Total)
	}

	_, err = h.userSvc.Deactivate(as(supervisor), supervisor.ID)
	requireCode(t, err, domainagg.CodePreconditionFailed)
	_, err = h.userSvc.Deactivate(as(supervisor), admin.ID)
	requireCode(t, err, domainagg.CodeForbidden)

	off, err := h.userSvc.Deactivate(as(admin), u.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if off.IsActive {
		t.Fatalf("expected inactive user")
	}
}
