package reload

import (
	"fmt"
	"strings"

	"github.com/supporttools/fleet-doctor/pkg/types"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string // Field path (e.g., "rules[0].check")
	Message string // Human-readable error message
}

// ValidationResult contains the result of configuration validation.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ConfigValidator validates Fleet Doctor configurations before they are
// applied by a reload. It goes beyond the config's own Validate by
// checking rule references against the check registry.
type ConfigValidator struct {
	registry types.CheckRegistryValidator
	maxRules int
}

// NewConfigValidator creates a new configuration validator. registry may
// be nil, in which case rule check names are not cross-checked.
func NewConfigValidator(registry types.CheckRegistryValidator) *ConfigValidator {
	return &ConfigValidator{
		registry: registry,
		maxRules: 1000,
	}
}

// Validate validates a Fleet Doctor configuration.
func (v *ConfigValidator) Validate(config *types.FleetDoctorConfig) *ValidationResult {
	result := &ValidationResult{Valid: true, Errors: []ValidationError{}}

	if config == nil {
		v.addError(result, "config", "configuration cannot be nil")
		return result
	}

	if config.Kind != "" && config.Kind != "FleetDoctorConfig" {
		v.addError(result, "kind", "kind must be 'FleetDoctorConfig'")
	}

	if err := config.Validate(); err != nil {
		v.addError(result, "config", err.Error())
	}

	v.validateRules(config.Rules, result)

	return result
}

func (v *ConfigValidator) validateRules(rules []types.RuleConfig, result *ValidationResult) {
	if len(rules) > v.maxRules {
		v.addError(result, "rules", fmt.Sprintf("too many rules: %d (max: %d)", len(rules), v.maxRules))
		return
	}

	for i, rule := range rules {
		field := fmt.Sprintf("rules[%d]", i)

		if rule.Check == "" {
			v.addError(result, field+".check", "check name is required")
			continue
		}
		if v.registry != nil && !v.registry.IsRegistered(rule.Check) {
			v.addError(result, field+".check",
				fmt.Sprintf("unknown check %q, available: %v", rule.Check, v.registry.RegisteredNames()))
		}
		if len(rule.Params) == 0 {
			v.addError(result, field+".params", "rule sets no parameters")
		}
	}
}

func (v *ConfigValidator) addError(result *ValidationResult, field, message string) {
	result.Valid = false
	result.Errors = append(result.Errors, ValidationError{Field: field, Message: message})
}

// FormatValidationErrors renders validation errors as a single message.
func FormatValidationErrors(errors []ValidationError) string {
	parts := make([]string, 0, len(errors))
	for _, e := range errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}
