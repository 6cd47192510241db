package check

import (
	"fmt"

	"github.com/supporttools/fleet-doctor/pkg/types"
)

// RenderFunc renders a numeric observation for humans, e.g. "85.0%".
type RenderFunc func(float64) string

func renderOrDefault(render RenderFunc, value float64) string {
	if render != nil {
		return render(value)
	}
	return fmt.Sprintf("%.2f", value)
}

// CheckUpperLevels compares an observation against upper-bound levels:
// value >= crit is CRIT, value >= warn is WARN, otherwise OK. Either
// bound may be absent, meaning no check at that severity. Crit takes
// precedence over warn.
//
// The result carries "label: rendered" as summary, a threshold remark
// when not OK, and one metric under metricName (omitted when empty).
func CheckUpperLevels(value float64, metricName, label string, levels types.Levels, render RenderFunc) types.Result {
	state := types.StateOK
	switch {
	case levels.Crit != nil && value >= *levels.Crit:
		state = types.StateCrit
	case levels.Warn != nil && value >= *levels.Warn:
		state = types.StateWarn
	}

	summary := fmt.Sprintf("%s: %s", label, renderOrDefault(render, value))
	if state != types.StateOK {
		summary += fmt.Sprintf(" (warn/crit at %s/%s)",
			renderBound(levels.Warn, render), renderBound(levels.Crit, render))
	}

	result := types.Result{State: state, Summary: summary}
	if metricName != "" {
		result.Metrics = []types.Metric{{
			Name:  metricName,
			Value: value,
			Warn:  levels.Warn,
			Crit:  levels.Crit,
		}}
	}
	return result
}

// CheckLowerLevels compares an observation against lower-bound levels:
// value < crit is CRIT, value < warn is WARN, otherwise OK.
func CheckLowerLevels(value float64, metricName, label string, levels types.Levels, render RenderFunc) types.Result {
	state := types.StateOK
	switch {
	case levels.Crit != nil && value < *levels.Crit:
		state = types.StateCrit
	case levels.Warn != nil && value < *levels.Warn:
		state = types.StateWarn
	}

	summary := fmt.Sprintf("%s: %s", label, renderOrDefault(render, value))
	if state != types.StateOK {
		summary += fmt.Sprintf(" (warn/crit below %s/%s)",
			renderBound(levels.Warn, render), renderBound(levels.Crit, render))
	}

	result := types.Result{State: state, Summary: summary}
	if metricName != "" {
		result.Metrics = []types.Metric{{
			Name:  metricName,
			Value: value,
		}}
	}
	return result
}

func renderBound(bound *float64, render RenderFunc) string {
	if bound == nil {
		return "never"
	}
	return renderOrDefault(render, *bound)
}
