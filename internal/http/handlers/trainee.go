package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/services"
)

// TraineeHandler serves the trainee's own views and self-service transitions.
type TraineeHandler struct {
	progression services.ProgressionService
	progress    services.ProgressService
}

func NewTraineeHandler(progression services.ProgressionService, progress services.ProgressService) *TraineeHandler {
	return &TraineeHandler{progression: progression, progress: progress}
}

// POST /api/trainee/subjects/:id/complete
func (h *TraineeHandler) CompleteSubject(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.progression.CompleteSubject(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	msg := "subject completed"
	if res.Cascade.CourseFinished {
		msg = "subject completed; course finished"
	}
	response.RespondMessage(c, msg, res)
}

// GET /api/trainee/courses
func (h *TraineeHandler) Courses(c *gin.Context) {
	rows, err := h.progress.TraineeCourses(c.Request.Context())
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, rows)
}
