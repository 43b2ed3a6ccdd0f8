package export

import (
	"errors"
	"fmt"
)

// ErrStructural matches every *StructuralError with errors.Is.
var ErrStructural = errors.New("structural error")

// StructuralError reports an input whose shape is wrong at Path.
type StructuralError struct {
	Path    string
	Message string
	Err     error
}

func (e *StructuralError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid input: %s", e.Message)
	}
	return fmt.Sprintf("invalid input at %s: %s", e.Path, e.Message)
}

func (e *StructuralError) Is(target error) bool {
	return target == ErrStructural
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}
