package response

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/platform/apierr"
)

// RespondError resolves err to a status and writes the failure envelope. The error is
// attached to the gin context so the request logger can report the cause.
func RespondError(c *gin.Context, err error) {
	ae := apierr.From(err)
	if ae == nil {
		ae = apierr.New(http.StatusInternalServerError, string(domainagg.CodeInternal), nil)
	}
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(ae.Status, Envelope{
		Success: false,
		Message: ae.PublicMessage(),
		Code:    ae.Code,
		Errors:  ae.Fields,
	})
}

// RespondInvalid is for malformed input caught before a service is called.
func RespondInvalid(c *gin.Context, message string, fields ...domainagg.FieldError) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{
		Success: false,
		Message: message,
		Code:    string(domainagg.CodeValidation),
		Errors:  fields,
	})
}

func RespondTooManyRequests(c *gin.Context, retryAfter time.Duration) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Envelope{
		Success: false,
		Message: "too many requests",
		Code:    "rate_limited",
	})
}
