package worker

import (
	"errors"
	"fmt"
)

// PanicError indicates a panic occurred while publishing an owner's feed.
// Panics indicate programming errors, not transient issues, so the owner is
// counted as failed without a retry.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// IsPanic returns true if the error indicates a panic occurred.
func IsPanic(err error) bool {
	var panicErr PanicError
	return errors.As(err, &panicErr)
}
