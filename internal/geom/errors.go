package geom

import (
	"errors"
	"fmt"
)

var (
	ErrDegenerate        = errors.New("degenerate shape")
	ErrSelfIntersecting  = errors.New("self-intersecting polygon")
	ErrNonFiniteVertices = errors.New("non-finite vertex")
)

// InvalidShapeError is returned when a shape is rejected at construction.
type InvalidShapeError struct {
	Kind   string // "polygon", "rect", "circle"
	Points int
	Reason error
}

func (e *InvalidShapeError) Error() string {
	return fmt.Sprintf("invalid %s (%d points): %v", e.Kind, e.Points, e.Reason)
}

func (e *InvalidShapeError) Unwrap() error { return e.Reason }
