// Package service implements the core business logic.
package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/givestack/braintree-donations/internal/core/domain"
	"github.com/givestack/braintree-donations/internal/core/ports"
)

// Settings paths in the host's option store.
const (
	settingTestMode       = "test_mode"
	settingsGatewayPrefix = "gateways_braintree."

	SettingWebhookEndpointStatus = settingsGatewayPrefix + "webhook_endpoint_status"

	WebhookEndpointActive  = "active"
	WebhookEndpointMissing = "missing_endpoint"
)

// gatewaySetting returns the path of an environment scoped gateway option,
// e.g. gateways_braintree.test_merchant_id.
func gatewaySetting(env domain.Environment, name string) string {
	return settingsGatewayPrefix + string(env) + "_" + name
}

// defaultPlanSetting returns the path of the default plan for a period,
// e.g. gateways_braintree.default_test_plans.month.
func defaultPlanSetting(env domain.Environment, period domain.Period) string {
	return settingsGatewayPrefix + "default_" + string(env) + "_plans." + string(period)
}

// getString reads a trimmed option, "" when unset.
func getString(ctx context.Context, settings ports.SettingsStore, path string) (string, error) {
	value, _, err := settings.Get(ctx, path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// getFlag reads a boolean option the way the host stores checkboxes ("1", "true").
func getFlag(ctx context.Context, settings ports.SettingsStore, path string) (bool, error) {
	value, err := getString(ctx, settings, path)
	if err != nil || value == "" {
		return false, err
	}
	flag, err := strconv.ParseBool(value)
	if err != nil {
		return false, nil
	}
	return flag, nil
}

// ActiveEnvironment returns the environment selected by the host's test mode option.
func ActiveEnvironment(ctx context.Context, settings ports.SettingsStore) (domain.Environment, error) {
	testMode, err := getFlag(ctx, settings, settingTestMode)
	if err != nil {
		return "", err
	}
	return domain.EnvironmentFor(testMode), nil
}
