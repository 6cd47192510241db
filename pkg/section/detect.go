package section

import "strings"

// ScalarWalk is the pre-fetched scalar data a detection predicate runs
// against: OID to value, as materialized by the external SNMP fetch
// layer. The engine never talks SNMP itself.
type ScalarWalk map[string]string

// DetectFunc decides whether a protocol-probed section applies to a
// device, given its pre-fetched scalars. A nil DetectFunc on a section
// means "agent-sourced, no probing".
type DetectFunc func(walk ScalarWalk) bool

// Exists matches when the OID was returned by the walk at all.
func Exists(oid string) DetectFunc {
	return func(walk ScalarWalk) bool {
		_, ok := walk[oid]
		return ok
	}
}

// Equals matches when the OID's value equals the given string.
func Equals(oid, value string) DetectFunc {
	return func(walk ScalarWalk) bool {
		return walk[oid] == value
	}
}

// StartsWith matches when the OID's value has the given prefix.
func StartsWith(oid, prefix string) DetectFunc {
	return func(walk ScalarWalk) bool {
		v, ok := walk[oid]
		return ok && strings.HasPrefix(v, prefix)
	}
}

// Contains matches when the OID's value contains the given substring.
func Contains(oid, substring string) DetectFunc {
	return func(walk ScalarWalk) bool {
		v, ok := walk[oid]
		return ok && strings.Contains(v, substring)
	}
}

// AnyOf matches when at least one of the given predicates matches.
func AnyOf(detects ...DetectFunc) DetectFunc {
	return func(walk ScalarWalk) bool {
		for _, d := range detects {
			if d(walk) {
				return true
			}
		}
		return false
	}
}

// AllOf matches when every given predicate matches.
func AllOf(detects ...DetectFunc) DetectFunc {
	return func(walk ScalarWalk) bool {
		for _, d := range detects {
			if !d(walk) {
				return false
			}
		}
		return true
	}
}

// Not inverts a predicate.
func Not(detect DetectFunc) DetectFunc {
	return func(walk ScalarWalk) bool {
		return !detect(walk)
	}
}
