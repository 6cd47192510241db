package reload

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/supporttools/fleet-doctor/pkg/logger"
	"github.com/supporttools/fleet-doctor/pkg/types"
	"github.com/supporttools/fleet-doctor/pkg/util"
)

// ReloadCallback is called when a configuration reload is needed.
// It receives the new configuration and the diff, and should apply the changes.
type ReloadCallback func(ctx context.Context, newConfig *types.FleetDoctorConfig, diff *ConfigDiff) error

// Coordinator orchestrates configuration reload operations: load, full
// validation, diff, then apply. A configuration that fails validation is
// never partially applied.
type Coordinator struct {
	configPath       string
	currentConfig    *types.FleetDoctorConfig
	reloadCallback   ReloadCallback
	validator        *ConfigValidator
	mu               sync.Mutex
	reloadInProgress bool
}

// NewCoordinator creates a new reload coordinator.
func NewCoordinator(
	configPath string,
	initialConfig *types.FleetDoctorConfig,
	reloadCallback ReloadCallback,
	validator *ConfigValidator,
) *Coordinator {
	return &Coordinator{
		configPath:     configPath,
		currentConfig:  initialConfig,
		reloadCallback: reloadCallback,
		validator:      validator,
	}
}

// TriggerReload attempts to reload the configuration from disk.
// This method is safe to call concurrently; only one reload happens at a time.
func (c *Coordinator) TriggerReload(ctx context.Context) error {
	c.mu.Lock()
	if c.reloadInProgress {
		c.mu.Unlock()
		return fmt.Errorf("reload already in progress")
	}
	c.reloadInProgress = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.reloadInProgress = false
		c.mu.Unlock()
	}()

	return c.performReload(ctx)
}

// performReload executes the reload process.
func (c *Coordinator) performReload(ctx context.Context) error {
	startTime := time.Now()

	logger.WithField("path", c.configPath).Info("Configuration reload initiated")

	newConfig, err := util.LoadConfig(c.configPath)
	if err != nil {
		logger.Warnf("Configuration reload failed to load: %v", err)
		return fmt.Errorf("failed to load config: %w", err)
	}

	if c.validator != nil {
		validationResult := c.validator.Validate(newConfig)
		if !validationResult.Valid {
			errorMsg := FormatValidationErrors(validationResult.Errors)
			logger.Warnf("Configuration validation failed: %s", errorMsg)
			return fmt.Errorf("configuration validation failed: %s", errorMsg)
		}
	}

	c.mu.Lock()
	diff := ComputeConfigDiff(c.currentConfig, newConfig)
	c.mu.Unlock()

	if !diff.HasChanges() {
		logger.Info("Configuration reload completed with no changes")
		return nil
	}

	if err := c.reloadCallback(ctx, newConfig, diff); err != nil {
		logger.Warnf("Failed to apply configuration changes: %v", err)
		return fmt.Errorf("failed to apply changes: %w", err)
	}

	c.mu.Lock()
	c.currentConfig = newConfig
	c.mu.Unlock()

	logger.Info(c.buildReloadStats(diff, time.Since(startTime)))
	return nil
}

// buildReloadStats creates a summary message of what was reloaded.
func (c *Coordinator) buildReloadStats(diff *ConfigDiff, duration time.Duration) string {
	var changes []string

	if diff.RulesAdded > 0 {
		changes = append(changes, fmt.Sprintf("%d rule(s) added", diff.RulesAdded))
	}
	if diff.RulesRemoved > 0 {
		changes = append(changes, fmt.Sprintf("%d rule(s) removed", diff.RulesRemoved))
	}
	if diff.RulesChanged && diff.RulesAdded == 0 && diff.RulesRemoved == 0 {
		changes = append(changes, "rules reordered")
	}
	if diff.SettingsChanged {
		changes = append(changes, "settings updated")
	}
	if diff.ExportersChanged {
		changes = append(changes, "exporters updated")
	}

	msg := fmt.Sprintf("Configuration reload completed in %v. ", duration.Round(time.Millisecond))
	if len(changes) == 0 {
		return msg + "No changes detected."
	}
	return msg + "Changes: " + strings.Join(changes, ", ")
}

// CurrentConfig returns the current active configuration (thread-safe).
func (c *Coordinator) CurrentConfig() *types.FleetDoctorConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentConfig
}
