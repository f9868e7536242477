package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/platform/validation"
	"github.com/yungbote/trainhub-backend/internal/services"
)

type ReportHandler struct {
	reports   services.ReportService
	validator *validation.Validator
}

func NewReportHandler(reports services.ReportService, validator *validation.Validator) *ReportHandler {
	return &ReportHandler{reports: reports, validator: validator}
}

type createReportRequest struct {
	CourseID string `json:"courseId" validate:"required,uuid"`
	Date     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Content  string `json:"content" validate:"required,notblank,max=20000"`
}

// POST /api/reports
func (h *ReportHandler) Create(c *gin.Context) {
	var req createReportRequest
	if !bindJSON(c, h.validator, "Report.Create", &req) {
		return
	}
	ids, err := parseUUIDs("courseId", []string{req.CourseID})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	r, err := h.reports.Create(c.Request.Context(), services.CreateReportInput{
		CourseID: ids[0],
		Date:     req.Date,
		Content:  req.Content,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, r)
}

// GET /api/reports?courseId=&page=&limit=
func (h *ReportHandler) List(c *gin.Context) {
	courseID, ok := queryUUID(c, "courseId")
	if !ok {
		return
	}
	res, err := h.reports.List(c.Request.Context(), courseID, pageFrom(c))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondPage(c, res.Items, res.Page.Page, res.Page.Limit, res.Total)
}
