package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/joseph-ayodele/statements-tracker/internal/async"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// httpStatus maps application errors onto HTTP status codes.
func httpStatus(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, common.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, common.ErrNotRetryable), errors.Is(err, common.ErrRunSuperseded):
		return fiber.StatusConflict
	case errors.Is(err, async.ErrQueueClosed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *HTTPServer) errorHandler(c *fiber.Ctx, err error) error {
	code := httpStatus(err)
	body := errorBody{Error: err.Error(), Code: common.CodeOf(err, "")}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("http.request.failed", "method", c.Method(), "path", c.Path(), "status", code, "error", err)
		if code == fiber.StatusInternalServerError {
			body.Error = "internal error"
		}
	}
	return c.Status(code).JSON(body)
}
