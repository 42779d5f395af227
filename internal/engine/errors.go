package engine

import "fmt"

type AppError struct {
	Code    string `json:"-"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// ErrorResponse is the wire shape for every API failure: {"error": message}.
type ErrorResponse struct {
	Error string `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError(entity string, id int) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %d not found", entity, id),
	}
}

func UnknownEntityError(name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_ENTITY",
		Status:  404,
		Message: fmt.Sprintf("unknown resource: %s", name),
	}
}

func ValidationError(msg string) *AppError {
	return &AppError{Code: "VALIDATION_FAILED", Status: 400, Message: msg}
}

// ReferencedError reports a delete blocked by referential integrity.
func ReferencedError(msg string) *AppError {
	return &AppError{Code: "REFERENCED", Status: 400, Message: msg}
}

func ReadOnlyError(entity string) *AppError {
	return &AppError{
		Code:    "READ_ONLY",
		Status:  405,
		Message: fmt.Sprintf("%s is read-only", entity),
	}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}
