package aggregates

import (
	"testing"

	"github.com/google/uuid"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
)

// One subject, two tasks, two trainees: the second trainee to finish closes the subject, and
// since it is the only subject, the course.
func TestProgressionLastTraineeClosesSubjectAndCourse(t *testing.T) {
	h := newHarness(t)
	course, subjects, tasks := h.course(t, 2)
	subject := subjects[0]
	t1, t2 := h.trainee(t), h.trainee(t)
	h.enroll(t, course.ID, t1, t2)
	h.start(t, course.ID)

	if got := h.subjectStatus(t, subject.ID); got != training.StatusInProgress {
		t.Fatalf("first subject after start: want=IN_PROGRESS got=%s", got)
	}

	for _, task := range tasks[0] {
		h.completeTask(t, t1.ID, task.ID)
	}
	res1, err := h.progression.CompleteSubject(h.ctx, domainagg.CompleteSubjectInput{TraineeID: t1.ID, SubjectID: subject.ID})
	if err != nil {
		t.Fatalf("CompleteSubject t1: %v", err)
	}
	if res1.Cascade.SubjectFinished(subject.ID) || res1.Cascade.CourseFinished {
		t.Fatalf("first finisher must not close anything: %+v", res1.Cascade)
	}
	if !res1.Cascade.TraineeCourseCompleted {
		t.Fatalf("t1 finished every subject; enrollment should be stamped complete")
	}
	if ts := h.traineeSubject(t, course.ID, t1.ID, subject.ID); ts == nil || ts.Status != training.StatusFinished {
		t.Fatalf("t1 trainee subject: %+v", ts)
	}
	if got := h.subjectStatus(t, subject.ID); got != training.StatusInProgress {
		t.Fatalf("subject after t1: want=IN_PROGRESS got=%s", got)
	}
	if got := h.courseStatus(t, course.ID); got != training.StatusInProgress {
		t.Fatalf("course after t1: want=IN_PROGRESS got=%s", got)
	}

	for _, task := range tasks[0] {
		h.completeTask(t, t2.ID, task.ID)
	}
	res2, err := h.progression.CompleteSubject(h.ctx, domainagg.CompleteSubjectInput{TraineeID: t2.ID, SubjectID: subject.ID})
	if err != nil {
		t.Fatalf("CompleteSubject t2: %v", err)
	}
	if !res2.Cascade.SubjectFinished(subject.ID) {
		t.Fatalf("last finisher should close the subject: %+v", res2.Cascade)
	}
	if !res2.Cascade.CourseFinished {
		t.Fatalf("last subject of last trainee should close the course: %+v", res2.Cascade)
	}
	if got := h.subjectStatus(t, subject.ID); got != training.StatusFinished {
		t.Fatalf("subject after t2: want=FINISHED got=%s", got)
	}
	if got := h.courseStatus(t, course.ID); got != training.StatusFinished {
		t.Fatalf("course after t2: want=FINISHED got=%s", got)
	}
	last := h.hooks.Cascades[len(h.hooks.Cascades)-1]
	if !last.CourseFinished || !last.SubjectFinished(subject.ID) {
		t.Fatalf("committed cascade should reach the hooks: %+v", h.hooks.Cascades)
	}
}

func TestCompleteSubjectForcesEveryTaskCompleted(t *testing.T) {
	h := newHarness(t)
	course, subjects, tasks := h.course(t, 3)
	tr := h.trainee(t)
	h.enroll(t, course.ID, tr)
	h.start(t, course.ID)

	// One completed, one started then reverted, one untouched.
	h.completeTask(t, tr.ID, tasks[0][0].ID)
	h.completeTask(t, tr.ID, tasks[0][1].ID)
	if _, err := h.progression.SetTaskCompletion(h.ctx, domainagg.SetTaskCompletionInput{
		TraineeID: tr.ID, TaskID: tasks[0][1].ID, Completed: false,
	}); err != nil {
		t.Fatalf("uncomplete: %v", err)
	}

	res, err := h.progression.CompleteSubject(h.ctx, domainagg.CompleteSubjectInput{TraineeID: tr.ID, SubjectID: subjects[0].ID})
	if err != nil {
		t.Fatalf("CompleteSubject: %v", err)
	}
	if res.TasksCompleted != 2 {
		t.Fatalf("tasks completed: want=2 got=%d", res.TasksCompleted)
	}
	rows, err := h.traineeTasks.ListByTraineesAndTasks(h.dbc(), []uuid.UUID{tr.ID}, []uuid.UUID{tasks[0][0].ID, tasks[0][1].ID, tasks[0][2].ID})
	if err != nil {
		t.Fatalf("ListByTraineesAndTasks: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("trainee task rows: want=3 got=%d", len(rows))
	}
	for _, row := range rows {
		if row.Status != training.TaskCompleted || row.CompletedAt == nil {
			t.Fatalf("task %s not completed: %+v", row.TaskID, row)
		}
	}
	if !res.Cascade.CourseFinished {
		t.Fatalf("sole trainee on sole subject should close the course")
	}
}

func TestCompleteSubjectNotLastTraineeLeavesSubjectOpen(t *testing.T) {
	h := newHarness(t)
	course, subjects, _ := h.course(t, 1, 1)
	t1, t2, t3 := h.trainee(t), h.trainee(t), h.trainee(t)
	h.enroll(t, course.ID, t1, t2, t3)
	h.start(t, course.ID)

	for _, tr := range []uuid.UUID{t1.ID, t2.ID} {
		res, err := h.progression.CompleteSubject(h.ctx, domainagg.CompleteSubjectInput{TraineeID: tr, SubjectID: subjects[0].ID})
		if err != nil {
			t.Fatalf("CompleteSubject: %v", err)
		}
		if len(res.Cascade.FinishedSubjectIDs) != 0 {
			t.Fatalf("subject closed early: %+v", res.Cascade)
		}
		if res.Cascade.TraineeCourseCompleted {
			t.Fatalf("second subject still open for trainee")
		}
	}
	if got := h.subjectStatus(t, subjects[0].ID); got != training.StatusInProgress {
		t.Fatalf("subject: want=IN_PROGRESS got=%s", got)
	}

	res, err := h.progression.CompleteSubject(h.ctx, domainagg.CompleteSubjectInput{TraineeID: t3.ID, SubjectID: subjects[0].ID})
	if err != nil {
		t.Fatalf("CompleteSubject t3: %v", err)
	}
	if !res.Cascade.SubjectFinished(subjects[0].ID) {
		t.Fatalf("third trainee should close subject")
	}
	if res.Cascade.CourseFinished {
		t.Fatalf("course has a NOT_STARTED subject; must stay open")
	}
	if got := h.courseStatus(t, course.ID); got != training.StatusInProgress {
		t.Fatalf("course: want=IN_PROGRESS got=%s", got)
	}
}

func TestCompleteSubjectTwiceIsConflict(t *testing.T) {
	h := newHarness(t)
	course, subjects, _ := h.course(t, 1)
	t1, t2 := h.trainee(t), h.trainee(t)
	h.enroll(t, course.ID, t1, t2)
	h.start(t, course.ID)

	in := domainagg.CompleteSubjectInput{TraineeID: t1.ID, SubjectID: subjects[0].ID}
	if _, err := h.progression.CompleteSubject(h.ctx, in); err != nil {
		t.Fatalf("CompleteSubject: %v", err)
	}
	_, err := h.progression.CompleteSubject(h.ctx, in)
	wantCode(t, err, domainagg.CodeConflict)
	if len(h.hooks.Conflicts) != 1 {
		t.Fatalf("conflict hook: %+v", h.hooks.Conflicts)
	}
}

func TestSetTaskCompletionRequiresInProgressSubject(t *testing.T) {
	h := newHarness(t)
	course, _, tasks := h.course(t, 1, 1)
	tr := h.trainee(t)
	h.enroll(t, course.ID, tr)
	h.start(t, course.ID)

	// The second subject is still NOT_STARTED.
	_, err := h.progression.SetTaskCompletion(h.ctx, domainagg.SetTaskCompletionInput{
		TraineeID: tr.ID, TaskID: tasks[1][0].ID, Completed: true,
	})
	wantCode(t, err, domainagg.CodePreconditionFailed)

	rows, err := h.traineeTasks.ListByTasks(h.dbc(), []uuid.UUID{tasks[1][0].ID})
	if err != nil {
		t.Fatalf("ListByTasks: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rejected toggle must not write: %d rows", len(rows))
	}
}

func TestSetTaskCompletionRejectsUnenrolledTrainee(t *testing.T) {
	h := newHarness(t)
	course, _, tasks := h.course(t, 1)
	enrolled, outsider := h.trainee(t), h.trainee(t)
	h.enroll(t, course.ID, enrolled)
	h.start(t, course.ID)

	_, err := h.progression.SetTaskCompletion(h.ctx, domainagg.SetTaskCompletionInput{
		TraineeID: outsider.ID, TaskID: tasks[0][0].ID, Completed: true,
	})
	wantCode(t, err, domainagg.CodeNotFound)

	_, err = h.progression.SetTaskCompletion(h.ctx, domainagg.SetTaskCompletionInput{
		TraineeID: outsider.ID, TaskID: tasks[0][0].ID, Completed: false,
	})
	wantCode(t, err, domainagg.CodeNotFound)

	_, err = h.progression.CompleteSubject(h.ctx, domainagg.CompleteSubjectInput{TraineeID: outsider.ID, SubjectID: tasks[0][0].SubjectID})
	wantCode(t, err, domainagg.CodeNotFound)
	if ts := h.traineeSubject(t, course.ID, enrolled.ID, tasks[0][0].SubjectID); ts == nil || ts.Status == training.StatusFinished {
		t.Fatalf("outsider call must not touch enrolled progress: %+v", ts)
	}
}

func TestUncompleteNeverStartedTaskIsNotFound(t *testing.T) {
	h := newHarness(t)
	course, _, tasks := h.course(t, 1)
	tr := h.trainee(t)
	h.enroll(t, course.ID, tr)
	h.start(t, course.ID)

	_, err := h.progression.SetTaskCompletion(h.ctx, domainagg.SetTaskCompletionInput{
		TraineeID: tr.ID, TaskID: tasks[0][0].ID, Completed: false,
	})
	wantCode(t, err, domainagg.CodeNotFound)

	tt, err := h.traineeTasks.GetByTraineeAndTask(h.dbc(), tr.ID, tasks[0][0].ID)
	if err != nil {
		t.Fatalf("GetByTraineeAndTask: %v", err)
	}
	if tt != nil {
		t.Fatalf("uncomplete must not create a record: %+v", tt)
	}
}

func TestSetTaskCompletionNudgesSubjectAndToggles(t *testing.T) {
	h := newHarness(t)
	course, subjects, tasks := h.course(t, 2)
	tr := h.trainee(t)
	h.enroll(t, course.ID, tr)
	h.start(t, course.ID)

	if ts := h.traineeSubject(t, course.ID, tr.ID, subjects[0].ID); ts.Status != training.StatusNotStarted {
		t.Fatalf("trainee subject before interaction: %s", ts.Status)
	}

	res, err := h.progression.SetTaskCompletion(h.ctx, domainagg.SetTaskCompletionInput{
		TraineeID: tr.ID, TaskID: tasks[0][0].ID, Completed: true,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Status != training.TaskCompleted || res.CompletedAt == nil || !res.SubjectNudged {
		t.Fatalf("complete result: %+v", res)
	}
	if ts := h.traineeSubject(t, course.ID, tr.ID, subjects[0].ID); ts.Status != training.StatusInProgress || ts.StartedAt == nil {
		t.Fatalf("trainee subject after interaction: %+v", ts)
	}

	res, err = h.progression.SetTaskCompletion(h.ctx, domainagg.SetTaskCompletionInput{
		TraineeID: tr.ID, TaskID: tasks[0][0].ID, Completed: false,
	})
	if err != nil {
		t.Fatalf("uncomplete: %v", err)
	}
	if res.Status != training.TaskInProgress || res.CompletedAt != nil || res.SubjectNudged {
		t.Fatalf("uncomplete result: %+v", res)
	}
	tt, err := h.traineeTasks.GetByTraineeAndTask(h.dbc(), tr.ID, tasks[0][0].ID)
	if err != nil || tt == nil {
		t.Fatalf("GetByTraineeAndTask: %v", err)
	}
	if tt.Status != training.TaskInProgress || tt.CompletedAt != nil {
		t.Fatalf("stored row after uncomplete: %+v", tt)
	}

	// Completing every task never closes the subject on its own.
	h.completeTask(t, tr.ID, tasks[0][0].ID)
	h.completeTask(t, tr.ID, tasks[0][1].ID)
	if got := h.subjectStatus(t, subjects[0].ID); got != training.StatusInProgress {
		t.Fatalf("subject after all tasks: want=IN_PROGRESS got=%s", got)
	}
	if ts := h.traineeSubject(t, course.ID, tr.ID, subjects[0].ID); ts.Status != training.StatusInProgress {
		t.Fatalf("trainee subject after all tasks: %s", ts.Status)
	}
}

func TestSetTaskCompletionRejectedAfterTraineeFinishedSubject(t *testing.T) {
	h := newHarness(t)
	course, subjects, tasks := h.course(t, 1)
	t1, t2 := h.trainee(t), h.trainee(t)
	h.enroll(t, course.ID, t1, t2)
	h.start(t, course.ID)

	if _, err := h.progression.CompleteSubject(h.ctx, domainagg.CompleteSubjectInput{TraineeID: t1.ID, SubjectID: subjects[0].ID}); err != nil {
		t.Fatalf("CompleteSubject: %v", err)
	}
	_, err := h.progression.SetTaskCompletion(h.ctx, domainagg.SetTaskCompletionInput{
		TraineeID: t1.ID, TaskID: tasks[0][0].ID, Completed: false,
	})
	wantCode(t, err, domainagg.CodePreconditionFailed)
}

func TestEnsureTraineeTaskCreatesOnce(t *testing.T) {
	h := newHarness(t)
	course, subjects, tasks := h.course(t, 1)
	tr := h.trainee(t)
	h.enroll(t, course.ID, tr)
	h.start(t, course.ID)

	in := domainagg.EnsureTraineeTaskInput{TraineeID: tr.ID, TaskID: tasks[0][0].ID}
	first, err := h.progression.EnsureTraineeTask(h.ctx, in)
	if err != nil {
		t.Fatalf("EnsureTraineeTask: %v", err)
	}
	if first.Status != training.TaskInProgress {
		t.Fatalf("new trainee task status: %s", first.Status)
	}
	second, err := h.progression.EnsureTraineeTask(h.ctx, in)
	if err != nil {
		t.Fatalf("EnsureTraineeTask again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("EnsureTraineeTask should return the existing row")
	}
	if ts := h.traineeSubject(t, course.ID, tr.ID, subjects[0].ID); ts.Status != training.StatusInProgress {
		t.Fatalf("evidence upload should nudge the subject: %s", ts.Status)
	}
}
