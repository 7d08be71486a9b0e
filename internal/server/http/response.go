package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "architect/internal/errors"
	"architect/internal/logging"
	"architect/internal/quiz"
)

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Success  bool   `json:"success"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

const messageQuizBusy = "Please wait for the next question."

func respondOK(c *gin.Context, data any, redirect string) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Redirect: redirect})
}

// respondError renders err with the status and message its kind implies. Missing
// prerequisites are silent redirects.
func respondError(c *gin.Context, logger logging.Logger, err error) {
	respondErrorWithData(c, logger, err, nil)
}

// respondErrorWithData is respondError carrying the state left after the failure.
func respondErrorWithData(c *gin.Context, logger logging.Logger, err error, data any) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, quiz.ErrTransitioning):
		c.JSON(http.StatusConflict, APIResponse{Error: messageQuizBusy})
		return
	case errors.Is(err, quiz.ErrInvalidOption):
		c.JSON(http.StatusBadRequest, APIResponse{Error: "Please choose one of the listed options."})
		return
	}

	resp := APIResponse{
		Data:     data,
		Error:    apperrors.UserMessage(err),
		Redirect: apperrors.RedirectFor(err),
	}
	status := http.StatusInternalServerError
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		status = http.StatusBadRequest
	case apperrors.KindPolicy:
		status = http.StatusForbidden
	case apperrors.KindDuplicateLead:
		status = http.StatusConflict
	case apperrors.KindMissingPrerequisite:
		status = http.StatusConflict
		resp.Error = ""
		resp.Data = nil
	case apperrors.KindService:
		status = http.StatusBadGateway
	case apperrors.KindUnauthorized:
		status = http.StatusUnauthorized
		resp.Error = "Your session has expired. Please sign in again."
		resp.Redirect = "/login"
	case apperrors.KindNotFound:
		status = http.StatusNotFound
		resp.Error = "Not found."
	default:
		logging.FromContext(c.Request.Context(), logger).Error("request failed: %v", err)
	}
	c.JSON(status, resp)
}
