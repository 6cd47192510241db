// Package uptime reports how long a host has been up. The agent ships a
// JSON payload with the boot timestamp under the raw section name
// "start_time"; the section registers the logical name "uptime" so the
// check works the same for any agent that can produce a boot time.
package uptime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/supporttools/fleet-doctor/pkg/check"
	"github.com/supporttools/fleet-doctor/pkg/render"
	"github.com/supporttools/fleet-doctor/pkg/section"
	"github.com/supporttools/fleet-doctor/pkg/types"
	"github.com/supporttools/fleet-doctor/pkg/valuestore"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

func init() {
	section.MustRegister(section.Info{
		Name:        "start_time",
		ParsedName:  "uptime",
		Parse:       parseStartTime,
		Description: "Boot timestamp as a JSON payload",
	})
	check.MustRegister(check.Info{
		Name:        "uptime",
		ServiceName: "Uptime",
		Discover:    discoverUptime,
		Check:       checkUptime,
		Description: "Checks host uptime against optional minimum and maximum levels",
	})
}

// Section carries the boot time only. Uptime is derived at check time so
// that parsing stays a pure function of the agent payload.
type Section struct {
	StartTime time.Time
}

type startTimePayload struct {
	StartTime int64 `json:"start_time"`
}

// parseStartTime reassembles the row fields into the JSON document. The
// agent emits compact JSON, but reassembly keeps the parser robust
// against incidental whitespace.
func parseStartTime(table section.StringTable) (interface{}, error) {
	var fields []string
	for _, row := range table {
		fields = append(fields, row...)
	}
	raw := strings.Join(fields, " ")
	if raw == "" {
		return nil, nil
	}

	var payload startTimePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decoding start_time payload: %w", err)
	}
	if payload.StartTime <= 0 {
		return nil, fmt.Errorf("start_time payload has no timestamp")
	}
	return Section{StartTime: time.Unix(payload.StartTime, 0).UTC()}, nil
}

func discoverUptime(interface{}) []check.Service {
	return []check.Service{{Item: ""}}
}

func checkUptime(_ string, params check.Parameters, parsed interface{}, _ *valuestore.ScopedStore) ([]types.Result, error) {
	sec := parsed.(Section)
	uptime := timeNow().Sub(sec.StartTime).Seconds()
	if uptime < 0 {
		return []types.Result{{
			State:   types.StateUnknown,
			Summary: "boot time is in the future",
		}}, nil
	}

	upper, hasUpper := params.Levels("max")
	lower, hasLower := params.Levels("min")

	state := types.StateOK
	remark := ""
	switch {
	case hasUpper && upper.Crit != nil && uptime >= *upper.Crit:
		state = types.StateCrit
		remark = upperRemark(upper)
	case hasUpper && upper.Warn != nil && uptime >= *upper.Warn:
		state = types.StateWarn
		remark = upperRemark(upper)
	case hasLower && lower.Crit != nil && uptime < *lower.Crit:
		state = types.StateCrit
		remark = lowerRemark(lower)
	case hasLower && lower.Warn != nil && uptime < *lower.Warn:
		state = types.StateWarn
		remark = lowerRemark(lower)
	}

	metric := types.Metric{Name: "uptime", Value: uptime, Min: types.Float(0)}
	if hasUpper {
		metric.Warn = upper.Warn
		metric.Crit = upper.Crit
	}

	return []types.Result{{
		State: state,
		Summary: fmt.Sprintf("Up since %s, uptime: %s%s",
			sec.StartTime.Format("2006-01-02 15:04:05"), timespan(uptime), remark),
		Metrics: []types.Metric{metric},
	}}, nil
}

func timespan(seconds float64) string {
	return render.Timespan(time.Duration(seconds * float64(time.Second)))
}

func upperRemark(levels types.Levels) string {
	return fmt.Sprintf(" (warn/crit at %s/%s)",
		levelText(levels.Warn), levelText(levels.Crit))
}

func lowerRemark(levels types.Levels) string {
	return fmt.Sprintf(" (warn/crit below %s/%s)",
		levelText(levels.Warn), levelText(levels.Crit))
}

func levelText(level *float64) string {
	if level == nil {
		return "never"
	}
	return timespan(*level)
}
