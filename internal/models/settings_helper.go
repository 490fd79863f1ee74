package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/julianstephens/doselit/internal/constants"
)

// MapToSettings converts a map of key-value pairs to a Settings struct.
// Unknown keys are ignored so older binaries tolerate newer databases.
func MapToSettings(data map[string]string) (Settings, error) {
	settings := Settings{}

	for key, value := range data {
		switch key {
		case constants.SettingTimezone:
			settings.Timezone = value
		case constants.SettingHorizonDays:
			n, err := strconv.Atoi(value)
			if err != nil {
				return Settings{}, fmt.Errorf("parsing horizon_days: %w", err)
			}
			settings.HorizonDays = n
		case constants.SettingRegenInterval:
			d, err := time.ParseDuration(value)
			if err != nil {
				return Settings{}, fmt.Errorf("parsing regen_interval: %w", err)
			}
			settings.RegenInterval = d
		case constants.SettingRemindersEnabled:
			settings.RemindersEnabled = value == "true"
		case constants.SettingReminderLeadMin:
			n, err := strconv.Atoi(value)
			if err != nil {
				return Settings{}, fmt.Errorf("parsing reminder_lead_min: %w", err)
			}
			settings.ReminderLeadMin = n
		case constants.SettingReminderMessage:
			settings.ReminderMessage = value
		case constants.SettingDelayedMessage:
			settings.DelayedMessage = value
		case constants.SettingStockAlertMessage:
			settings.StockAlertMessage = value
		}
	}
	return settings, nil
}

// ParseInterval parses a regeneration cadence such as "6h". Anything under
// a minute is rejected.
func ParseInterval(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < time.Minute {
		return 0, fmt.Errorf("interval %s is shorter than a minute", d)
	}
	return d, nil
}

// SettingsToMap converts a Settings struct to a map of key-value pairs.
func SettingsToMap(settings Settings) map[string]string {
	return map[string]string{
		constants.SettingTimezone:          settings.Timezone,
		constants.SettingHorizonDays:       strconv.Itoa(settings.HorizonDays),
		constants.SettingRegenInterval:     settings.RegenInterval.String(),
		constants.SettingRemindersEnabled:  strconv.FormatBool(settings.RemindersEnabled),
		constants.SettingReminderLeadMin:   strconv.Itoa(settings.ReminderLeadMin),
		constants.SettingReminderMessage:   settings.ReminderMessage,
		constants.SettingDelayedMessage:    settings.DelayedMessage,
		constants.SettingStockAlertMessage: settings.StockAlertMessage,
	}
}

// DefaultSettings returns the settings written by a fresh init.
func DefaultSettings() Settings {
	s := Settings{RemindersEnabled: constants.DefaultRemindersEnabled}
	ApplyDefaultSettings(&s)
	return s
}

// ApplyDefaultSettings applies default values to missing settings.
func ApplyDefaultSettings(settings *Settings) {
	if settings.Timezone == "" {
		settings.Timezone = constants.DefaultTimezone
	}
	if settings.HorizonDays <= 0 {
		settings.HorizonDays = constants.DefaultHorizonDays
	}
	if settings.RegenInterval <= 0 {
		settings.RegenInterval = constants.DefaultRegenInterval
	}
	if settings.ReminderLeadMin < 0 {
		settings.ReminderLeadMin = constants.DefaultReminderLeadMin
	}
	if settings.ReminderMessage == "" {
		settings.ReminderMessage = constants.DefaultReminderMessage
	}
	if settings.DelayedMessage == "" {
		settings.DelayedMessage = constants.DefaultDelayedMessage
	}
	if settings.StockAlertMessage == "" {
		settings.StockAlertMessage = constants.DefaultStockAlertMessage
	}
}
