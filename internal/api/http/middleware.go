package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/api/dto"
	"github.com/spec-kit/ticketdesk/internal/observability"
	"github.com/spec-kit/ticketdesk/internal/repository"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorHandlingMiddleware renders errors in the /rest/v1 error shape.
func errorHandlingMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = errors.New("internal error")
			}
			if err != nil {
				status, body := errorResponse(err)
				if status >= http.StatusInternalServerError {
					logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
				}
				c.Status(status)
				err = c.JSON(body)
			}
		}()
		return c.Next()
	}
}

func errorResponse(err error) (int, dto.ErrorResponse) {
	var storeErr *repository.StoreError
	if errors.As(err, &storeErr) {
		status := storeErr.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		return status, dto.ErrorResponse{
			Code:    storeErr.Code,
			Message: storeErr.Message,
			Details: storeErr.Details,
			Hint:    storeErr.Hint,
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, dto.ErrorResponse{Code: http.StatusText(fiberErr.Code), Message: fiberErr.Message}
	}

	if errors.Is(err, repository.ErrStoreOffline) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, dto.ErrorResponse{Code: apperrors.CodeDBConnection, Message: err.Error()}
	}

	de := apperrors.ToDomainError(err)
	status := http.StatusInternalServerError
	switch de.Code {
	case apperrors.CodeValidation:
		status = http.StatusBadRequest
	case apperrors.CodeUnauthorized:
		status = http.StatusUnauthorized
	}
	return status, dto.ErrorResponse{Code: de.Code, Message: de.Message}
}
