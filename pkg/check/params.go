package check

import (
	"github.com/supporttools/fleet-doctor/pkg/types"
)

// Parameters is the merged configuration a check invocation receives:
// option name to threshold/levels/enum value. It is built once per
// evaluation and must not be mutated by the check.
type Parameters map[string]interface{}

// MergeParams computes the effective parameters for one service from the
// check's built-in defaults and the configured rules.
//
// Precedence: explicit rules win over defaults. Among several matching
// rules the first in configuration order wins per key, so operators can
// put specific rules above general ones.
func MergeParams(defaults Parameters, rules []types.RuleConfig, checkName, host, item string) Parameters {
	merged := make(Parameters, len(defaults))

	for _, rule := range rules {
		if !ruleMatches(rule, checkName, host, item) {
			continue
		}
		for key, value := range rule.Params {
			if _, set := merged[key]; !set {
				merged[key] = value
			}
		}
	}

	for key, value := range defaults {
		if _, set := merged[key]; !set {
			merged[key] = value
		}
	}

	return merged
}

func ruleMatches(rule types.RuleConfig, checkName, host, item string) bool {
	if rule.Check != checkName {
		return false
	}
	if len(rule.Hosts) > 0 && !containsString(rule.Hosts, host) {
		return false
	}
	if len(rule.Items) > 0 && !containsString(rule.Items, item) {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// Float reads a numeric parameter. YAML decoding may deliver ints or
// floats; both are accepted.
func (p Parameters) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// String reads a string parameter.
func (p Parameters) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Strings reads a string-list parameter. Both []string and the
// []interface{} form produced by YAML/JSON decoding are accepted;
// non-string elements are skipped.
func (p Parameters) Strings(key string) []string {
	v, ok := p[key]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		var out []string
		for _, e := range list {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Levels reads a (warn, crit) threshold pair parameter. Accepted forms:
// types.Levels, a two-element numeric list (YAML "[80, 90]"), or absent.
func (p Parameters) Levels(key string) (types.Levels, bool) {
	v, ok := p[key]
	if !ok {
		return types.Levels{}, false
	}
	switch lv := v.(type) {
	case types.Levels:
		return lv, true
	case []float64:
		if len(lv) == 2 {
			return types.UpperLevels(lv[0], lv[1]), true
		}
	case []int:
		if len(lv) == 2 {
			return types.UpperLevels(float64(lv[0]), float64(lv[1])), true
		}
	case []interface{}:
		if len(lv) == 2 {
			warn, wok := toFloat(lv[0])
			crit, cok := toFloat(lv[1])
			if wok && cok {
				return types.UpperLevels(warn, crit), true
			}
		}
	}
	return types.Levels{}, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
