package builder

import (
	"errors"
	"fmt"
)

var (
	ErrTopicKeyCollision   = errors.New("topic key collision")
	ErrActionNameCollision = errors.New("action name collision")
)

type CollisionKind string

const (
	CollisionTopic  CollisionKind = "topic"
	CollisionAction CollisionKind = "action"
)

// CollisionError reports two distinct source names that sanitize to the same
// identifier. Path points at the second one.
type CollisionError struct {
	Kind   CollisionKind
	Name   string
	First  string
	Second string
	Path   string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s: %s %q and %q both become %q", e.Path, e.Kind, e.First, e.Second, e.Name)
}

func (e *CollisionError) Is(target error) bool {
	switch e.Kind {
	case CollisionTopic:
		return target == ErrTopicKeyCollision
	case CollisionAction:
		return target == ErrActionNameCollision
	}
	return false
}
