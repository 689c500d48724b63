// Package handlers implements the mapping API endpoints.
package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/BioMapper/pkg/errors"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Detail  string           `json:"detail,omitempty"`
}

// StatusForError maps an error code onto an HTTP status.
func StatusForError(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeBadRequest, errors.ErrCodeValidation, errors.ErrCodeMalformedIdentifier:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodePipelineAborted, errors.ErrCodeTimeout:
		return http.StatusServiceUnavailable
	case errors.ErrCodeServiceUnavailable, errors.ErrCodeCircuitOpen:
		return http.StatusServiceUnavailable
	case errors.ErrCodeResolutionTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeResolutionTransport, errors.ErrCodeAuthorityResponseInvalid,
		errors.ErrCodeAuthorityRateLimited, errors.ErrCodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the reply for err.  Internal errors are masked.
func errorBody(err error) ErrorResponse {
	code := errors.GetCode(err)
	status := StatusForError(err)
	if status == http.StatusInternalServerError && code != errors.ErrCodeStageFailed && code != errors.ErrCodeInvariantViolation {
		return ErrorResponse{Code: errors.ErrCodeInternal, Message: "internal server error"}
	}
	resp := ErrorResponse{Code: code, Message: err.Error()}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Detail = appErr.Detail
	}
	return resp
}

func writeError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(StatusForError(err), errorBody(err))
}

//Personal.AI order the ending
