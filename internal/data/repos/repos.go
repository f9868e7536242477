package repos

import (
	"github.com/yungbote/trainhub-backend/internal/data/repos/auth"
	"github.com/yungbote/trainhub-backend/internal/data/repos/jobs"
	"github.com/yungbote/trainhub-backend/internal/data/repos/notify"
	"github.com/yungbote/trainhub-backend/internal/data/repos/training"
	"github.com/yungbote/trainhub-backend/internal/data/repos/user"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type UserRepo = user.UserRepo
type UserFilter = user.UserFilter
type UserTokenRepo = auth.UserTokenRepo

type CourseRepo = training.CourseRepo
type CourseFilter = training.CourseFilter
type CourseTrainerRepo = training.CourseTrainerRepo
type SubjectRepo = training.SubjectRepo
type TaskRepo = training.TaskRepo
type DueTask = training.DueTask

type CourseTraineeRepo = training.CourseTraineeRepo
type TraineeSubjectRepo = training.TraineeSubjectRepo
type TraineeTaskRepo = training.TraineeTaskRepo
type TraineeTaskFileRepo = training.TraineeTaskFileRepo
type DailyReportRepo = training.DailyReportRepo
type DailyReportFilter = training.DailyReportFilter

type NotificationRepo = notify.NotificationRepo
type EmailJobRepo = jobs.EmailJobRepo

func NewUserRepo(db *gorm.DB, log *logger.Logger) UserRepo { return user.NewUserRepo(db, log) }
func NewUserTokenRepo(db *gorm.DB, log *logger.Logger) UserTokenRepo {
	return auth.NewUserTokenRepo(db, log)
}

func NewCourseRepo(db *gorm.DB, log *logger.Logger) CourseRepo { return training.NewCourseRepo(db, log) }
func NewCourseTrainerRepo(db *gorm.DB, log *logger.Logger) CourseTrainerRepo {
	return training.NewCourseTrainerRepo(db, log)
}
func NewSubjectRepo(db *gorm.DB, log *logger.Logger) SubjectRepo {
	return training.NewSubjectRepo(db, log)
}
func NewTaskRepo(db *gorm.DB, log *logger.Logger) TaskRepo { return training.NewTaskRepo(db, log) }

func NewCourseTraineeRepo(db *gorm.DB, log *logger.Logger) CourseTraineeRepo {
	return training.NewCourseTraineeRepo(db, log)
}
func NewTraineeSubjectRepo(db *gorm.DB, log *logger.Logger) TraineeSubjectRepo {
	return training.NewTraineeSubjectRepo(db, log)
}
func NewTraineeTaskRepo(db *gorm.DB, log *logger.Logger) TraineeTaskRepo {
	return training.NewTraineeTaskRepo(db, log)
}
func NewTraineeTaskFileRepo(db *gorm.DB, log *logger.Logger) TraineeTaskFileRepo {
	return training.NewTraineeTaskFileRepo(db, log)
}
func NewDailyReportRepo(db *gorm.DB, log *logger.Logger) DailyReportRepo {
	return training.NewDailyReportRepo(db, log)
}

func NewNotificationRepo(db *gorm.DB, log *logger.Logger) NotificationRepo {
	return notify.NewNotificationRepo(db, log)
}
func NewEmailJobRepo(db *gorm.DB, log *logger.Logger) EmailJobRepo {
	return jobs.NewEmailJobRepo(db, log)
}
