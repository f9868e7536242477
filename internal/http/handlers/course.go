package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/platform/validation"
	"github.com/yungbote/trainhub-backend/internal/services"
)

type CourseHandler struct {
	log       *logger.Logger
	courses   services.CourseService
	progress  services.ProgressService
	grading   services.GradingService
	validator *validation.Validator
}

func NewCourseHandler(log *logger.Logger, courses services.CourseService, progress services.ProgressService, grading services.GradingService, validator *validation.Validator) *CourseHandler {
	return &CourseHandler{
		log:       log.With("handler", "CourseHandler"),
		courses:   courses,
		progress:  progress,
		grading:   grading,
		validator: validator,
	}
}

type createCourseRequest struct {
	Title       string     `json:"title" validate:"required,notblank,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

// POST /api/courses
func (h *CourseHandler) Create(c *gin.Context) {
	var req createCourseRequest
	if !bindJSON(c, h.validator, "Course.Create", &req) {
		return
	}
	course, err := h.courses.Create(c.Request.Context(), services.CreateCourseInput{
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, course)
}

// GET /api/courses?status=&page=&limit=
func (h *CourseHandler) List(c *gin.Context) {
	status := training.Status(c.Query("status"))
	if status != "" && !status.Valid() {
		response.RespondInvalid(c, "invalid status")
		return
	}
	res, err := h.courses.List(c.Request.Context(), status, pageFrom(c))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondPage(c, res.Items, res.Page.Page, res.Page.Limit, res.Total)
}

// GET /api/courses/:id
func (h *CourseHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	course, err := h.courses.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, course)
}

type updateCourseRequest struct {
	Title       *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

// PATCH /api/courses/:id
func (h *CourseHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req updateCourseRequest
	if !bindJSON(c, h.validator, "Course.Update", &req) {
		return
	}
	course, err := h.courses.Update(c.Request.Context(), id, services.UpdateCourseInput{
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, course)
}

// DELETE /api/courses/:id
func (h *CourseHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.courses.Delete(c.Request.Context(), id); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondMessage(c, "course deleted", nil)
}

type trainerIDsRequest struct {
	TrainerIDs []string `json:"trainerIds" validate:"required,min=1,max=100"`
}

// POST /api/courses/:id/trainers
func (h *CourseHandler) AssignTrainers(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req trainerIDsRequest
	if !bindJSON(c, h.validator, "Course.AssignTrainers", &req) {
		return
	}
	ids, err := parseUUIDs("trainerIds", req.TrainerIDs)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	assigned, err := h.courses.AssignTrainers(c.Request.Context(), id, ids)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trainerIds": assigned})
}

// DELETE /api/courses/:id/trainers/:trainerId
func (h *CourseHandler) RemoveTrainer(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	trainerID, ok := pathUUID(c, "trainerId")
	if !ok {
		return
	}
	if err := h.courses.RemoveTrainer(c.Request.Context(), id, trainerID); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondMessage(c, "trainer removed", nil)
}

// POST /api/courses/:id/start
func (h *CourseHandler) Start(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.courses.Start(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondMessage(c, "course started", res)
}

// POST /api/courses/:id/finish
func (h *CourseHandler) Finish(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.courses.Finish(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondMessage(c, "course finished", res)
}

type enrollRequest struct {
	TraineeIDs []string `json:"traineeIds" validate:"required,min=1,max=500"`

	// Activate starts the new trainee records at IN_PROGRESS instead of mirroring NOT_STARTED subjects.
	Activate bool `json:"activate"`
}

// POST /api/courses/:id/trainees
func (h *CourseHandler) Enroll(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req enrollRequest
	if !bindJSON(c, h.validator, "Course.Enroll", &req) {
		return
	}
	ids, err := parseUUIDs("traineeIds", req.TraineeIDs)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.courses.Enroll(c.Request.Context(), id, ids, req.Activate)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondMessage(c, "trainees enrolled", res)
}

// DELETE /api/courses/:id/trainees/:traineeId
func (h *CourseHandler) RemoveTrainee(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	traineeID, ok := pathUUID(c, "traineeId")
	if !ok {
		return
	}
	res, err := h.courses.RemoveTrainee(c.Request.Context(), id, traineeID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondMessage(c, "trainee removed", res)
}

// GET /api/courses/:id/progress
func (h *CourseHandler) Progress(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.progress.CourseProgress(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}

type gradeRequest struct {
	Grade    *int   `json:"grade" validate:"required,min=0,max=100"`
	Feedback string `json:"feedback" validate:"max=5000"`
}

// PUT /api/courses/:id/trainees/:traineeId/subjects/:subjectId/grade
func (h *CourseHandler) SetGrade(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	traineeID, ok := pathUUID(c, "traineeId")
	if !ok {
		return
	}
	subjectID, ok := pathUUID(c, "subjectId")
	if !ok {
		return
	}
	var req gradeRequest
	if !bindJSON(c, h.validator, "Course.SetGrade", &req) {
		return
	}
	ts, err := h.grading.SetSubjectGrade(c.Request.Context(), id, traineeID, subjectID, *req.Grade, req.Feedback)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, ts)
}

type resultRequest struct {
	Status string `json:"status" validate:"required,oneof=PASS FAIL RESIGN"`
}

// PUT /api/courses/:id/trainees/:traineeId/result
func (h *CourseHandler) SetResult(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	traineeID, ok := pathUUID(c, "traineeId")
	if !ok {
		return
	}
	var req resultRequest
	if !bindJSON(c, h.validator, "Course.SetResult", &req) {
		return
	}
	ct, err := h.grading.SetCourseResult(c.Request.Context(), id, traineeID, training.EnrollmentStatus(req.Status))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, ct)
}
