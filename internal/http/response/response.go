package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatstream-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError uses the status and code of an *apierr.Error in err's chain, or the fallbacks.
func RespondAPIError(c *gin.Context, err error, fallbackStatus int, fallbackCode string) {
	var ae *apierr.Error
	if errors.As(err, &ae) && ae != nil {
		RespondError(c, ae.Status, ae.Code, ae)
		return
	}
	RespondError(c, fallbackStatus, fallbackCode, err)
}

// AbortError writes the error envelope and stops the remaining handler chain.
func AbortError(c *gin.Context, status int, code string, err error) {
	RespondError(c, status, code, err)
	c.Abort()
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
