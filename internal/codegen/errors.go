package codegen

import (
	"context"
	"errors"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
)

// GenerationError carries the item that failed and the provider's error.
type GenerationError struct {
	Item string
	Err  error
}

func (e *GenerationError) Error() string {
	return "generate " + e.Item + ": " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// newGenerationError classifies a failed item as a generation failure, or as
// a timeout when the provider deadline expired.
func newGenerationError(op, item string, err error) error {
	kind := apperr.KindGeneration
	if errors.Is(err, context.DeadlineExceeded) {
		kind = apperr.KindTimeout
	}
	return &apperr.Error{Kind: kind, Op: op, Err: &GenerationError{Item: item, Err: err}}
}
