package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

type Repos struct {
	User      repos.UserRepo
	UserToken repos.UserTokenRepo

	Course          repos.CourseRepo
	CourseTrainer   repos.CourseTrainerRepo
	Subject         repos.SubjectRepo
	Task            repos.TaskRepo
	CourseTrainee   repos.CourseTraineeRepo
	TraineeSubject  repos.TraineeSubjectRepo
	TraineeTask     repos.TraineeTaskRepo
	TraineeTaskFile repos.TraineeTaskFileRepo
	DailyReport     repos.DailyReportRepo

	Notification repos.NotificationRepo
	EmailJob     repos.EmailJobRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:      repos.NewUserRepo(db, log),
		UserToken: repos.NewUserTokenRepo(db, log),

		Course:          repos.NewCourseRepo(db, log),
		CourseTrainer:   repos.NewCourseTrainerRepo(db, log),
		Subject:         repos.NewSubjectRepo(db, log),
		Task:            repos.NewTaskRepo(db, log),
		CourseTrainee:   repos.NewCourseTraineeRepo(db, log),
		TraineeSubject:  repos.NewTraineeSubjectRepo(db, log),
		TraineeTask:     repos.NewTraineeTaskRepo(db, log),
		TraineeTaskFile: repos.NewTraineeTaskFileRepo(db, log),
		DailyReport:     repos.NewDailyReportRepo(db, log),

		Notification: repos.NewNotificationRepo(db, log),
		EmailJob:     repos.NewEmailJobRepo(db, log),
	}
}
