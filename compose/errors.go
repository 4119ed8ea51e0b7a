package compose

import (
	"errors"
	"fmt"

	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/rhythm"
)

// StructuralError marks bad input: unknown section ids, wrong score
// stage, an empty progression. It is never retried and its message is
// safe to show the caller.
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string {
	return e.Msg
}

func structuralf(format string, args ...any) *StructuralError {
	return &StructuralError{Msg: fmt.Sprintf(format, args...)}
}

// ExhaustedError means every attempt produced fatal diagnostics even
// after repair. History carries the per-attempt diagnostics for logs;
// the user-facing message stays generic on purpose.
type ExhaustedError struct {
	Attempts int
	History  [][]model.Diagnostic
}

func (e *ExhaustedError) Error() string {
	return "could not produce a valid arrangement for these lyrics, please try different settings"
}

// IsInfeasible reports whether err is a constraint infeasibility, the
// non-retryable tier that carries a hint for the user.
func IsInfeasible(err error) bool {
	var ie *rhythm.InfeasibleError
	return errors.As(err, &ie)
}

// IsStructural reports whether err is a bad-input error.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
