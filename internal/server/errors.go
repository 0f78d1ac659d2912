package server

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/electronjoe/DamageReview/internal/review"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// apiError carries an error code that is not implied by the HTTP status.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.message }

func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	errorCode := "INTERNAL_ERROR"

	var apiErr *apiError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &apiErr):
		code, errorCode, message = apiErr.status, apiErr.code, apiErr.message
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
		message = fiberErr.Message

		switch code {
		case fiber.StatusBadRequest:
			errorCode = "BAD_REQUEST"
		case fiber.StatusNotFound:
			errorCode = "NOT_FOUND"
		case fiber.StatusMethodNotAllowed:
			errorCode = "METHOD_NOT_ALLOWED"
		case fiber.StatusRequestEntityTooLarge:
			errorCode = "TOO_LARGE"
		case fiber.StatusUnprocessableEntity:
			errorCode = "VALIDATION_ERROR"
		}
	}

	traceID := uuid.New().String()[:8]
	if code >= fiber.StatusInternalServerError {
		log.Printf("Error [%s] %s %s: %v", traceID, c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(ErrorResponse{
		Code:    errorCode,
		Message: message,
		TraceID: traceID,
	})
}

func badRequest(message string) *fiber.Error {
	return fiber.NewError(fiber.StatusBadRequest, message)
}

func notFound(message string) *fiber.Error {
	return fiber.NewError(fiber.StatusNotFound, message)
}

// fromReview maps review errors onto HTTP errors.
func fromReview(err error) error {
	switch {
	case errors.Is(err, review.ErrNotFound):
		return notFound(err.Error())
	case errors.Is(err, review.ErrInvalid):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return err
}
