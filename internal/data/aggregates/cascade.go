package aggregates

import (
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/trainhub-backend/internal/data/repos"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
)

const taskGridBatch = 500

// completeTaskGrid moves every trainee x task cell to COMPLETED, inserting the cells that
// were never touched. Returns the number of rows written.
func completeTaskGrid(dbc dbctx.Context, traineeTasks repos.TraineeTaskRepo, traineeIDs, taskIDs []uuid.UUID, now time.Time) (int64, error) {
	if len(traineeIDs) == 0 || len(taskIDs) == 0 {
		return 0, nil
	}
	updated, err := traineeTasks.CompleteExisting(dbc, traineeIDs, taskIDs, now)
	if err != nil {
		return 0, err
	}
	existing, err := traineeTasks.ListByTraineesAndTasks(dbc, traineeIDs, taskIDs)
	if err != nil {
		return 0, err
	}
	type cell struct{ trainee, task uuid.UUID }
	have := make(map[cell]struct{}, len(existing))
	for _, row := range existing {
		have[cell{row.TraineeID, row.TaskID}] = struct{}{}
	}

	var missing []*training.TraineeTask
	for _, traineeID := range traineeIDs {
		for _, taskID := range taskIDs {
			if _, ok := have[cell{traineeID, taskID}]; ok {
				continue
			}
			completedAt := now
			missing = append(missing, &training.TraineeTask{
				TraineeID:   traineeID,
				TaskID:      taskID,
				Status:      training.TaskCompleted,
				CompletedAt: &completedAt,
			})
		}
	}
	for start := 0; start < len(missing); start += taskGridBatch {
		end := start + taskGridBatch
		if end > len(missing) {
			end = len(missing)
		}
		if _, err := traineeTasks.Create(dbc, missing[start:end]); err != nil {
			return 0, err
		}
	}
	return updated + int64(len(missing)), nil
}

type cascadeRepos struct {
	Courses        repos.CourseRepo
	Subjects       repos.SubjectRepo
	CourseTrainees repos.CourseTraineeRepo
}

// closeSubjects runs the last-trainee-closes-the-subject check for each id.
func (c cascadeRepos) closeSubjects(dbc dbctx.Context, subjectIDs []uuid.UUID, now time.Time, out *domainagg.CascadeOutcome) error {
	for _, id := range subjectIDs {
		flipped, err := c.Subjects.FinishIfAllTraineesDone(dbc, id, now)
		if err != nil {
			return err
		}
		if flipped {
			out.FinishedSubjectIDs = append(out.FinishedSubjectIDs, id)
		}
	}
	return nil
}

// closeCourse stamps every enrollment that has just become complete and then runs the
// course auto-close check.
func (c cascadeRepos) closeCourse(dbc dbctx.Context, courseID uuid.UUID, now time.Time, out *domainagg.CascadeOutcome) error {
	completed, err := c.CourseTrainees.MarkCompletedWhereDone(dbc, courseID, now)
	if err != nil {
		return err
	}
	out.CompletedTraineeIDs = append(out.CompletedTraineeIDs, completed...)
	finished, err := c.Courses.FinishIfAllDone(dbc, courseID, now)
	if err != nil {
		return err
	}
	out.CourseFinished = finished
	return nil
}
