package evaluator

import (
	"strings"

	"github.com/supporttools/fleet-doctor/pkg/types"
)

// SummarySeparator joins the partial summaries of one service.
const SummarySeparator = ", "

// Aggregate combines the partial results of one check invocation into the
// final service outcome.
//
// The final state is the worst of all partial states (OK < WARN < CRIT <
// UNKNOWN). Summaries are joined in yield order; long-form details are
// appended after all summaries, newline-separated. Metrics are
// concatenated preserving order; duplicate names stay separate series.
//
// An empty input is the distinguished "no result" outcome and returns
// ok=false: the caller must not fabricate an OK state out of silence.
func Aggregate(results []types.Result) (types.AggregatedResult, bool) {
	if len(results) == 0 {
		return types.AggregatedResult{}, false
	}

	var (
		state     = types.StateOK
		summaries []string
		details   []string
		metrics   []types.Metric
	)

	for _, r := range results {
		state = types.WorstState(state, r.State)
		if r.Summary != "" {
			summaries = append(summaries, r.Summary)
		}
		if r.Details != "" {
			details = append(details, r.Details)
		}
		metrics = append(metrics, r.Metrics...)
	}

	return types.AggregatedResult{
		State:   state,
		Summary: strings.Join(summaries, SummarySeparator),
		Details: strings.Join(details, "\n"),
		Metrics: metrics,
	}, true
}
