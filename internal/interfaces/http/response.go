package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/esunday5/staff-portal/internal/domain/apperror"
)

// Response is the envelope of every JSON response
type Response struct {
	Success bool                  `json:"success"`
	Data    interface{}           `json:"data,omitempty"`
	Error   string                `json:"error,omitempty"`
	Code    apperror.Kind         `json:"code,omitempty"`
	Fields  []apperror.FieldError `json:"fields,omitempty"`
	// Warning carries a non-fatal routing problem, e.g. a missing Supervisor
	Warning string `json:"warning,omitempty"`
}

var statusByKind = map[apperror.Kind]int{
	apperror.KindValidation:           http.StatusBadRequest,
	apperror.KindUnauthorized:         http.StatusForbidden,
	apperror.KindUnauthenticated:      http.StatusUnauthorized,
	apperror.KindNotFound:             http.StatusNotFound,
	apperror.KindStaleState:           http.StatusConflict,
	apperror.KindNoApproverConfigured: http.StatusUnprocessableEntity,
	apperror.KindTransitionFailed:     http.StatusServiceUnavailable,
}

// StatusFor maps an application error to its HTTP status
func StatusFor(err error) int {
	if status, ok := statusByKind[apperror.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func respondError(c *gin.Context, logger Logger, err error) {
	status := StatusFor(err)
	resp := Response{
		Success: false,
		Code:    apperror.KindOf(err),
		Fields:  apperror.FieldsOf(err),
	}

	var appErr *apperror.Error
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		// internal details stay in the log
		logger.Error("Request failed", "error", err, "path", c.FullPath(), "method", c.Request.Method)
		resp.Error = "internal server error"
		resp.Code = ""
	} else {
		resp.Error = appErr.Message
		if status == http.StatusServiceUnavailable {
			logger.Error("Transition failed", "error", err, "path", c.FullPath())
		}
	}

	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `Basic realm="staff-portal"`)
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(field, message string) error {
	return apperror.Validation(apperror.FieldError{Field: field, Message: message})
}
