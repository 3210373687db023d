package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	rased "github.com/goliatone/go-rased"
	"github.com/goliatone/go-rased/pkg/transfer"
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
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondDomainError maps sentinel errors onto HTTP statuses.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, rased.ErrUnknownField):
		RespondError(c, http.StatusBadRequest, "unknown_field", err)
	case errors.Is(err, rased.ErrInvalidValue):
		RespondError(c, http.StatusBadRequest, "invalid_value", err)
	case errors.Is(err, rased.ErrStepBlocked):
		RespondError(c, http.StatusConflict, "step_blocked", err)
	case errors.Is(err, transfer.ErrMissingStudents):
		RespondError(c, http.StatusUnprocessableEntity, "missing_students", err)
	case errors.Is(err, transfer.ErrMalformed):
		RespondError(c, http.StatusBadRequest, "malformed", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
