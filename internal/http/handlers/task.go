package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/platform/validation"
	"github.com/yungbote/trainhub-backend/internal/services"
)

type TaskHandler struct {
	tasks       services.TaskService
	progression services.ProgressionService
	validator   *validation.Validator
}

func NewTaskHandler(tasks services.TaskService, progression services.ProgressionService, validator *validation.Validator) *TaskHandler {
	return &TaskHandler{tasks: tasks, progression: progression, validator: validator}
}

type createTaskRequest struct {
	Title       string     `json:"title" validate:"required,notblank,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	DueDate     *time.Time `json:"dueDate"`
	Order       int        `json:"order" validate:"min=0"`
}

// POST /api/subjects/:id/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	subjectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req createTaskRequest
	if !bindJSON(c, h.validator, "Task.Create", &req) {
		return
	}
	t, err := h.tasks.Create(c.Request.Context(), subjectID, services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Order:       req.Order,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, t)
}

type updateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	DueDate     *time.Time `json:"dueDate"`
	Order       *int       `json:"order" validate:"omitempty,min=1"`
}

// PATCH /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req updateTaskRequest
	if !bindJSON(c, h.validator, "Task.Update", &req) {
		return
	}
	t, err := h.tasks.Update(c.Request.Context(), id, services.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Order:       req.Order,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, t)
}

// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), id); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondMessage(c, "task deleted", nil)
}

// POST /api/tasks/:id/complete
func (h *TaskHandler) Complete(c *gin.Context) { h.toggle(c, true) }

// POST /api/tasks/:id/uncomplete
func (h *TaskHandler) Uncomplete(c *gin.Context) { h.toggle(c, false) }

func (h *TaskHandler) toggle(c *gin.Context, completed bool) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.progression.SetTaskCompletion(c.Request.Context(), id, completed)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}
