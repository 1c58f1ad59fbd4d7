package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/internal/control/models"
)

// respondError maps service errors onto HTTP status codes. Anything not
// covered by a sentinel is a 500 and gets logged; sentinel failures are
// the caller's problem and only logged at debug.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrDependencyBlocked),
		errors.Is(err, models.ErrAlreadyResolved),
		errors.Is(err, models.ErrDuplicateKey):
		status = http.StatusConflict
	case errors.Is(err, models.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrBudgetExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, models.ErrAdapterUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		log.Debug("request rejected", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// bindOptional decodes a JSON body whose fields are all optional. An
// absent body is fine; a malformed one is a 400.
func bindOptional(c *gin.Context, dst interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid payload")
		return false
	}
	return true
}
