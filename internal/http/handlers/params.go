package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/platform/validation"
	"github.com/yungbote/trainhub-backend/internal/services"
)

// pathUUID parses a path parameter, answering 400 itself when it is not a UUID.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		response.RespondInvalid(c, "invalid "+name, domainagg.FieldError{Field: name, Message: "must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID returns nil for an absent parameter.
func queryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.RespondInvalid(c, "invalid "+name, domainagg.FieldError{Field: name, Message: "must be a UUID"})
		return nil, false
	}
	return &id, true
}

func pageFrom(c *gin.Context) services.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return services.Page{Page: page, Limit: limit}.Normalize()
}

// bindJSON decodes the body into req and runs its validate tags.
func bindJSON(c *gin.Context, v *validation.Validator, op string, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.RespondInvalid(c, "malformed request body", domainagg.FieldError{Field: "body", Message: err.Error()})
		return false
	}
	if err := v.Struct(op, req); err != nil {
		response.RespondError(c, err)
		return false
	}
	return true
}

func parseUUIDs(field string, raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	var fields []domainagg.FieldError
	for i, s := range raw {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			fields = append(fields, domainagg.FieldError{Field: field + "[" + strconv.Itoa(i) + "]", Message: "must be a UUID"})
			continue
		}
		out = append(out, id)
	}
	if len(fields) > 0 {
		return nil, domainagg.NewValidationError("parseUUIDs", "invalid request", fields)
	}
	return out, nil
}
