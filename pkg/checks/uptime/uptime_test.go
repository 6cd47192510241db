package uptime

import (
	"strings"
	"testing"
	"time"

	"github.com/supporttools/fleet-doctor/pkg/check"
	"github.com/supporttools/fleet-doctor/pkg/section"
	"github.com/supporttools/fleet-doctor/pkg/types"
)

func withClock(t *testing.T, now time.Time) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = orig })
}

func TestParseStartTime(t *testing.T) {
	parsed, err := parseStartTime(section.StringTable{
		{`{"start_time":1700000000}`},
	})
	if err != nil {
		t.Fatalf("parseStartTime() error = %v", err)
	}
	sec := parsed.(Section)
	if !sec.StartTime.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("StartTime = %v", sec.StartTime)
	}
}

// Whitespace inside the JSON splits the row into fields; the parser
// must reassemble them.
func TestParseStartTimeSplitPayload(t *testing.T) {
	parsed, err := parseStartTime(section.StringTable{
		{`{"start_time":`, `1700000000}`},
	})
	if err != nil {
		t.Fatalf("parseStartTime() error = %v", err)
	}
	if parsed.(Section).StartTime.Unix() != 1700000000 {
		t.Errorf("StartTime = %v", parsed.(Section).StartTime)
	}
}

func TestParseStartTimeErrors(t *testing.T) {
	if parsed, err := parseStartTime(section.StringTable{}); err != nil || parsed != nil {
		t.Errorf("empty table = (%v, %v), want (nil, nil)", parsed, err)
	}
	if _, err := parseStartTime(section.StringTable{{"not-json"}}); err == nil {
		t.Error("malformed payload parsed without error")
	}
	if _, err := parseStartTime(section.StringTable{{`{"start_time":0}`}}); err == nil {
		t.Error("zero timestamp parsed without error")
	}
}

func TestSectionRename(t *testing.T) {
	info := section.Get("start_time")
	if info == nil {
		t.Fatal("section not registered")
	}
	if info.ParsedName != "uptime" {
		t.Errorf("ParsedName = %q, want %q", info.ParsedName, "uptime")
	}
}

func TestCheckUptime(t *testing.T) {
	boot := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	withClock(t, boot.Add(50*time.Hour))

	tests := []struct {
		name      string
		params    check.Parameters
		wantState types.State
		wantIn    string
	}{
		{
			name:      "no levels",
			params:    check.Parameters{},
			wantState: types.StateOK,
			wantIn:    "uptime: 2 days 2 hours",
		},
		{
			name:      "below max",
			params:    check.Parameters{"max": []interface{}{200 * 3600, 400 * 3600}},
			wantState: types.StateOK,
			wantIn:    "uptime: 2 days 2 hours",
		},
		{
			name:      "above max warn",
			params:    check.Parameters{"max": []interface{}{40 * 3600, 400 * 3600}},
			wantState: types.StateWarn,
			wantIn:    "(warn/crit at",
		},
		{
			name:      "above max crit",
			params:    check.Parameters{"max": []interface{}{30 * 3600, 40 * 3600}},
			wantState: types.StateCrit,
			wantIn:    "(warn/crit at",
		},
		{
			name:      "below min crit",
			params:    check.Parameters{"min": []interface{}{80 * 3600, 60 * 3600}},
			wantState: types.StateCrit,
			wantIn:    "(warn/crit below",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := checkUptime("", tt.params, Section{StartTime: boot}, nil)
			if err != nil {
				t.Fatalf("checkUptime() error = %v", err)
			}
			if len(results) != 1 {
				t.Fatalf("got %d results, want 1", len(results))
			}
			if results[0].State != tt.wantState {
				t.Errorf("state = %v, want %v", results[0].State, tt.wantState)
			}
			if !strings.Contains(results[0].Summary, tt.wantIn) {
				t.Errorf("summary = %q, want it to contain %q", results[0].Summary, tt.wantIn)
			}
			if !strings.Contains(results[0].Summary, "Up since 2026-08-23 10:00:00") {
				t.Errorf("summary = %q, want boot time", results[0].Summary)
			}
		})
	}
}

func TestCheckUptimeMetric(t *testing.T) {
	boot := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	withClock(t, boot.Add(90*time.Minute))

	results, err := checkUptime("", check.Parameters{
		"max": []interface{}{3600, 7200},
	}, Section{StartTime: boot}, nil)
	if err != nil {
		t.Fatalf("checkUptime() error = %v", err)
	}

	if len(results[0].Metrics) != 1 {
		t.Fatalf("got %d metrics, want 1", len(results[0].Metrics))
	}
	m := results[0].Metrics[0]
	if m.Name != "uptime" || m.Value != 5400 {
		t.Errorf("metric = %+v", m)
	}
	if m.Warn == nil || *m.Warn != 3600 || m.Crit == nil || *m.Crit != 7200 {
		t.Errorf("metric levels = (%v, %v)", m.Warn, m.Crit)
	}
}

func TestCheckUptimeFutureBoot(t *testing.T) {
	now := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	withClock(t, now)

	results, err := checkUptime("", check.Parameters{}, Section{StartTime: now.Add(time.Hour)}, nil)
	if err != nil {
		t.Fatalf("checkUptime() error = %v", err)
	}
	if results[0].State != types.StateUnknown {
		t.Errorf("state = %v, want UNKNOWN for a future boot time", results[0].State)
	}
}
