// Package types defines the core value types shared by the Fleet Doctor
// check evaluation engine: service states, check results, metrics, and
// threshold levels.
package types

import (
	"fmt"
	"time"
)

// State is the monitoring state of a service, ordered by severity.
// The numeric ordering is significant: aggregation takes the maximum.
type State int

const (
	// StateOK indicates the service is healthy.
	StateOK State = 0

	// StateWarn indicates the service exceeded its warning threshold.
	StateWarn State = 1

	// StateCrit indicates the service exceeded its critical threshold.
	StateCrit State = 2

	// StateUnknown indicates the service state could not be determined
	// (missing data, plugin failure). Unknown is worse than critical for
	// aggregation purposes: it must never be masked by a numeric problem.
	StateUnknown State = 3
)

// String returns the conventional short name for the state.
func (s State) String() string {
	switch s {
	case StateOK:
		return "OK"
	case StateWarn:
		return "WARN"
	case StateCrit:
		return "CRIT"
	case StateUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// WorstState returns the maximum of the given states. OK is the neutral
// element: WorstState() with no arguments returns StateOK.
func WorstState(states ...State) State {
	worst := StateOK
	for _, s := range states {
		if s > worst {
			worst = s
		}
	}
	return worst
}

// Metric is one performance value produced by a check. Thresholds and
// bounds are optional; nil means "not set". Metrics are carried through
// aggregation unchanged and in order.
type Metric struct {
	// Name identifies the metric. Duplicate names across sub-results of
	// one service are preserved as separate series.
	Name string

	// Value is the observed value.
	Value float64

	// Warn and Crit are the thresholds the value was compared against,
	// if any. They are informational at this point; the comparison has
	// already happened in the check.
	Warn *float64
	Crit *float64

	// Min and Max are the value bounds, if known.
	Min *float64
	Max *float64
}

// Float returns a pointer to v, for use with the optional Metric fields.
func Float(v float64) *float64 { return &v }

// Result is one partial outcome yielded by a check invocation. A single
// invocation yields zero or more Results; zero results means the checked
// item has vanished from the current data.
type Result struct {
	// State is the severity of this partial result.
	State State

	// Summary is the one-line human readable text for this result.
	Summary string

	// Details is optional long-form output, rendered after all summaries.
	Details string

	// Metrics are the performance values attached to this result.
	Metrics []Metric
}

// AggregatedResult is the final outcome for one service after combining
// all partial results of a check invocation.
type AggregatedResult struct {
	State   State
	Summary string
	Details string
	Metrics []Metric
}

/// ServiceResult is the per-service handoff to exporters: which host and
// service the aggregate belongs to, and when it was produced.
type ServiceResult struct {
	Host        string
	CheckName   string
	ServiceName string
	Item        string
	Result      AggregatedResult
	Timestamp   time.Time
}

// Levels is a (warn, crit) threshold pair applied to a numeric
// observation. Either bound may be absent, meaning no check at that
// severity. Direction (upper vs. lower bound) is chosen by the caller.
type Levels struct {
	Warn *float64
	Crit *float64
}

// UpperLevels builds Levels from a mandatory (warn, crit) pair.
func UpperLevels(warn, crit float64) Levels {
	return Levels{Warn: Float(warn), Crit: Float(crit)}
}

// Unset reports whether neither bound is configured.
func (l Levels) Unset() bool { return l.Warn == nil && l.Crit == nil }
