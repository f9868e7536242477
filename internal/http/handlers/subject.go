package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/platform/validation"
	"github.com/yungbote/trainhub-backend/internal/services"
)

type SubjectHandler struct {
	subjects  services.SubjectService
	validator *validation.Validator
}

func NewSubjectHandler(subjects services.SubjectService, validator *validation.Validator) *SubjectHandler {
	return &SubjectHandler{subjects: subjects, validator: validator}
}

type createSubjectRequest struct {
	Title       string     `json:"title" validate:"required,notblank,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	Order       int        `json:"order" validate:"min=0"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

// POST /api/courses/:id/subjects
func (h *SubjectHandler) Create(c *gin.Context) {
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req createSubjectRequest
	if !bindJSON(c, h.validator, "Subject.Create", &req) {
		return
	}
	s, err := h.subjects.Create(c.Request.Context(), courseID, services.CreateSubjectInput{
		Title:       req.Title,
		Description: req.Description,
		Order:       req.Order,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, s)
}

type updateSubjectRequest struct {
	Title       *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Order       *int       `json:"order" validate:"omitempty,min=1"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

// PATCH /api/subjects/:id
func (h *SubjectHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req updateSubjectRequest
	if !bindJSON(c, h.validator, "Subject.Update", &req) {
		return
	}
	s, err := h.subjects.Update(c.Request.Context(), id, services.UpdateSubjectInput{
		Title:       req.Title,
		Description: req.Description,
		Order:       req.Order,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, s)
}

// DELETE /api/subjects/:id
func (h *SubjectHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.subjects.Delete(c.Request.Context(), id); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondMessage(c, "subject deleted", nil)
}

// POST /api/subjects/:id/start
func (h *SubjectHandler) Start(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.subjects.Start(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondMessage(c, "subject started", res)
}

// POST /api/subjects/:id/finish
func (h *SubjectHandler) Finish(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.subjects.Finish(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondMessage(c, "subject finished", res)
}
