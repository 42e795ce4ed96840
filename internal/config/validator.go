package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateLiveData(&cfg.LiveData, result)
	validateApplicationData(&cfg.ApplicationData, result)

	return result
}

func validateLiveData(data *LiveData, result *ValidationResult) {
	if data.RoomID <= 0 {
		result.AddError("live_data.room_id", "room id is required")
	}

	if data.UID < 0 {
		result.AddError("live_data.uid", "uid must not be negative")
	}

	if strings.TrimSpace(data.GatewayURL) == "" {
		result.AddError("live_data.gateway_url", "gateway URL is required")
	} else if !strings.HasPrefix(data.GatewayURL, "http://") && !strings.HasPrefix(data.GatewayURL, "https://") {
		result.AddError("live_data.gateway_url", "gateway URL must start with http:// or https://")
	}

	if data.AutoReconnect && data.ReconnectDelaySec < 1 {
		result.AddWarning("live_data.reconnect_delay_sec",
			"reconnect delay under 1 second hammers the gateway; using it anyway")
	}
}

func validateApplicationData(data *ApplicationData, result *ValidationResult) {
	if data.API.Enabled {
		validatePort(data.API.Port, "application_data.api.port", result)
	}

	if data.MQTT.Enabled {
		if strings.TrimSpace(data.MQTT.BrokerURL) == "" {
			result.AddError("application_data.mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		validatePort(data.MQTT.Port, "application_data.mqtt.port", result)
	}

	if data.Webhook.Enabled && strings.TrimSpace(data.Webhook.URL) == "" {
		result.AddError("application_data.webhook.url", "webhook URL is required when enabled")
	}

	if data.Window.Size < 1 {
		result.AddError("application_data.window.size", "recent-event window size must be at least 1")
	}
	if data.Window.Size > 65536 {
		result.AddWarning("application_data.window.size",
			fmt.Sprintf("very large window (%d) holds every event in memory", data.Window.Size))
	}

	if data.Timers.SnapshotInterval < 5 {
		result.AddWarning("application_data.timers.snapshot_interval_sec",
			"snapshot interval under 5 seconds generates noisy telemetry")
	}

	switch strings.ToLower(data.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "":
	default:
		result.AddWarning("application_data.logging.level",
			fmt.Sprintf("unknown log level %q, falling back to info", data.Logging.Level))
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("port %d out of range (1-65535)", port))
	}
}
