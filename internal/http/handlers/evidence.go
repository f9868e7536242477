package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/services"
)

type EvidenceHandler struct {
	evidence services.EvidenceService
}

func NewEvidenceHandler(evidence services.EvidenceService) *EvidenceHandler {
	return &EvidenceHandler{evidence: evidence}
}

// POST /api/tasks/:id/files (multipart, field "file")
func (h *EvidenceHandler) Upload(c *gin.Context) {
	taskID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	// One extra megabyte covers the multipart framing around a max-size file.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxEvidenceBytes+(1<<20))
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondInvalid(c, "file too large", domainagg.FieldError{Field: "file", Message: "exceeds the upload limit"})
			return
		}
		response.RespondInvalid(c, "missing file", domainagg.FieldError{Field: "file", Message: "is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, domainagg.NewError(domainagg.CodeInternal, "Evidence.Upload", "open upload", err))
		return
	}
	defer f.Close()

	file, err := h.evidence.Upload(c.Request.Context(), taskID, services.EvidenceUpload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, file)
}

// GET /api/tasks/:id/files?traineeId=
func (h *EvidenceHandler) List(c *gin.Context) {
	taskID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	traineeID, ok := queryUUID(c, "traineeId")
	if !ok {
		return
	}
	who := uuid.Nil
	if traineeID != nil {
		who = *traineeID
	}
	files, err := h.evidence.List(c.Request.Context(), taskID, who)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, files)
}
