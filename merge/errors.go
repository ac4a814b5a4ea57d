package merge

import (
	"errors"
	"fmt"
)

// MergeInputError is returned when the attempt that seeds the cumulative
// report has no readable result document. Later attempts are skipped with a
// warning instead.
type MergeInputError struct {
	Dir string
	Err error
}

func (e *MergeInputError) Error() string {
	return fmt.Sprintf("no usable results in %s: %v", e.Dir, e.Err)
}

func (e *MergeInputError) Unwrap() error {
	return e.Err
}

// IsMergeInputError checks if an error is a MergeInputError
func IsMergeInputError(err error) bool {
	var mergeErr *MergeInputError
	return errors.As(err, &mergeErr)
}
