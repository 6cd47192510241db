package valuestore

import (
	"fmt"
	"time"
)

// observation is the persisted sample for rate and age computations.
type observation struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// Rate computes the per-second rate of change of a raw counter value
// against the sample stored by the previous invocation, and stages the
// current sample for the next one.
//
// The first invocation for a key has no reference sample: the current
// one is staged and ErrInsufficientData is returned instead of a bogus
// rate. The same applies when time did not advance or the counter moved
// backwards (counter reset or wrap): the new sample replaces the stored
// one and this cycle is skipped.
func (s *ScopedStore) Rate(key string, now time.Time, value float64) (float64, error) {
	sample := observation{Time: float64(now.UnixNano()) / 1e9, Value: value}

	var prev observation
	had := s.Get(key, &prev)
	if err := s.Set(key, sample); err != nil {
		return 0, err
	}

	if !had {
		return 0, InsufficientData(fmt.Sprintf("counter %q initialized, rate available next cycle", key))
	}
	elapsed := sample.Time - prev.Time
	if elapsed <= 0 {
		return 0, InsufficientData(fmt.Sprintf("no time elapsed since last reading of %q", key))
	}
	if value < prev.Value {
		return 0, InsufficientData(fmt.Sprintf("counter %q went backwards (reset or wrap)", key))
	}

	return (value - prev.Value) / elapsed, nil
}

// Age returns how long the given marker value has been observed
// unchanged. When the marker differs from the stored one (or none is
// stored), the age restarts at zero and the new marker is staged.
func (s *ScopedStore) Age(key string, now time.Time, marker string) (time.Duration, error) {
	type markerSample struct {
		Time   float64 `json:"time"`
		Marker string  `json:"marker"`
	}

	nowSec := float64(now.UnixNano()) / 1e9

	var prev markerSample
	if s.Get(key, &prev) && prev.Marker == marker {
		// Unchanged: keep the original sighting time.
		if err := s.Set(key, prev); err != nil {
			return 0, err
		}
		return time.Duration((nowSec - prev.Time) * float64(time.Second)), nil
	}

	if err := s.Set(key, markerSample{Time: nowSec, Marker: marker}); err != nil {
		return 0, err
	}
	return 0, nil
}
