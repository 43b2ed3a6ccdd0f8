package convert

import (
	"errors"
	"fmt"

	"github.com/crmoraes/nga/internal/builder"
	"github.com/crmoraes/nga/internal/export"
	"github.com/crmoraes/nga/internal/synth"
)

// ErrorCode classifies a failed conversion.
type ErrorCode string

const (
	ErrStructural          ErrorCode = "STRUCTURAL"
	ErrTopicKeyCollision   ErrorCode = "TOPIC_KEY_COLLISION"
	ErrActionNameCollision ErrorCode = "ACTION_NAME_COLLISION"
	ErrInvalidRules        ErrorCode = "INVALID_RULES"
	ErrInvalidModel        ErrorCode = "INVALID_MODEL"
	ErrRead                ErrorCode = "READ"
)

// Error is returned for every failed conversion. Path names the offending
// input field when one is known.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Path    string    `json:"path,omitempty"`
	Cause   error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// CodeOf returns the code of err, or "" when err is not a conversion error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func classify(err error) *Error {
	var structural *export.StructuralError
	if errors.As(err, &structural) {
		return &Error{Code: ErrStructural, Message: structural.Message, Path: structural.Path, Cause: err}
	}
	var collision *builder.CollisionError
	if errors.As(err, &collision) {
		code := ErrTopicKeyCollision
		if collision.Kind == builder.CollisionAction {
			code = ErrActionNameCollision
		}
		return &Error{
			Code:    code,
			Message: fmt.Sprintf("%q and %q both become %q", collision.First, collision.Second, collision.Name),
			Path:    collision.Path,
			Cause:   err,
		}
	}
	var conflict *synth.ConflictError
	if errors.As(err, &conflict) {
		return &Error{Code: ErrActionNameCollision, Message: err.Error(), Path: conflict.Path(), Cause: err}
	}
	return &Error{Code: ErrInvalidModel, Message: err.Error(), Cause: err}
}
