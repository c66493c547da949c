package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/errors"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/logger"
)

// respondError writes err as an AppError body with the matching HTTP status.
// Server-side failures are logged; client errors are not.
func respondError(c *gin.Context, log *logger.Logger, msg string, err error) {
	status := errors.HTTPStatus(err)
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.NewInternalError(msg, err)
	}

	if status >= 500 {
		log.Error(msg, "error", err, "path", c.FullPath())
	}
	c.JSON(status, appErr)
}
