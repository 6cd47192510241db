package valuestore

import "errors"

// ErrInsufficientData is the sentinel matched with errors.Is to detect
// the "skip this cycle" outcome of a stateful check: the first invocation
// for a key has nothing to compare against, so no state can be computed
// yet. This is not a failure; the evaluator produces no result for the
// service and tries again next cycle.
var ErrInsufficientData = errors.New("insufficient data for this cycle")

// InsufficientDataError carries the human-readable reason a check could
// not produce a state this cycle.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string { return e.Reason }

// Is makes errors.Is(err, ErrInsufficientData) match.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// InsufficientData returns an error signalling that this cycle must be
// skipped, with the given reason.
func InsufficientData(reason string) error {
	return &InsufficientDataError{Reason: reason}
}
