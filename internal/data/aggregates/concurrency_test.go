package aggregates

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	repotest "github.com/yungbote/trainhub-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
)

var backends = []struct {
	name string
	open func(testing.TB) *gorm.DB
}{
	{"sqlite", repotest.DB},
	{"postgres", repotest.PostgresDB},
}

// Two trainees finish the last subject at the same time. The course lock serializes them,
// so the subject and the course each close exactly once.
func TestConcurrentLastFinishersCloseOnce(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			h := newHarnessOn(t, b.open(t), DefaultLockTimeout)
			for round := 0; round < 5; round++ {
				course, subjects, tasks := h.course(t, 1)
				subject := subjects[0]
				t1, t2 := h.trainee(t), h.trainee(t)
				h.enroll(t, course.ID, t1, t2)
				h.start(t, course.ID)
				h.completeTask(t, t1.ID, tasks[0][0].ID)
				h.completeTask(t, t2.ID, tasks[0][0].ID)

				ids := []uuid.UUID{t1.ID, t2.ID}
				results := make([]domainagg.CompleteSubjectResult, len(ids))
				errs := make([]error, len(ids))
				ready := make(chan struct{})
				var wg sync.WaitGroup
				for i, id := range ids {
					wg.Add(1)
					go func(i int, id uuid.UUID) {
						defer wg.Done()
						<-ready
						results[i], errs[i] = h.progression.CompleteSubject(h.ctx, domainagg.CompleteSubjectInput{TraineeID: id, SubjectID: subject.ID})
					}(i, id)
				}
				close(ready)
				wg.Wait()

				subjectClosures, courseClosures := 0, 0
				for i, err := range errs {
					if err != nil {
						t.Fatalf("round %d: CompleteSubject(%s): %v", round, ids[i], err)
					}
					if results[i].Cascade.SubjectFinished(subject.ID) {
						subjectClosures++
					}
					if results[i].Cascade.CourseFinished {
						courseClosures++
					}
				}
				if subjectClosures != 1 || courseClosures != 1 {
					t.Fatalf("round %d: want one subject and one course closure, got subject=%d course=%d (%+v)",
						round, subjectClosures, courseClosures, results)
				}
				if got := h.subjectStatus(t, subject.ID); got != training.StatusFinished {
					t.Fatalf("round %d: subject: want=FINISHED got=%s", round, got)
				}
				if got := h.courseStatus(t, course.ID); got != training.StatusFinished {
					t.Fatalf("round %d: course: want=FINISHED got=%s", round, got)
				}
			}
		})
	}
}

func TestLockTimeoutIsRetryable(t *testing.T) {
	db := repotest.PostgresDB(t)
	h := newHarnessOn(t, db, 100*time.Millisecond)
	course, _, _ := h.course(t, 1)

	holder := db.Begin()
	if holder.Error != nil {
		t.Fatalf("begin: %v", holder.Error)
	}
	var held []training.Course
	if err := holder.Raw("SELECT * FROM course WHERE id = ? FOR UPDATE", course.ID).Scan(&held).Error; err != nil {
		_ = holder.Rollback().Error
		t.Fatalf("hold lock: %v", err)
	}

	_, err := h.lifecycle.StartCourse(h.ctx, domainagg.CourseTransitionInput{CourseID: course.ID})
	_ = holder.Rollback().Error
	wantCode(t, err, domainagg.CodeRetryable)
	if len(h.hooks.Retries) != 1 {
		t.Fatalf("retry hook: %+v", h.hooks.Retries)
	}

	h.start(t, course.ID)
	if got := h.courseStatus(t, course.ID); got != training.StatusInProgress {
		t.Fatalf("course after lock released: want=IN_PROGRESS got=%s", got)
	}
}
