package settings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/utils"
)

type SettingsGetCmd struct {
	Key string `arg:"" optional:"" help:"Setting to print. Lists every setting when omitted."`
}

func (c *SettingsGetCmd) Run(ctx *cli.Context) error {
	settings, _, err := ctx.Settings()
	if err != nil {
		return err
	}
	values := models.SettingsToMap(settings)

	if c.Key != "" {
		v, ok := values[c.Key]
		if !ok {
			return unknownKey(c.Key, values)
		}
		fmt.Println(v)
		return nil
	}

	keys := sortedKeys(values)
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}
	fmt.Println("Current Settings:")
	for _, k := range keys {
		fmt.Printf("  %-*s  %s\n", width, k, values[k])
	}
	return nil
}

type SettingsSetCmd struct {
	Key   string `arg:"" help:"Setting to change."`
	Value string `arg:"" help:"New value."`
}

func (c *SettingsSetCmd) Run(ctx *cli.Context) error {
	settings, _, err := ctx.Settings()
	if err != nil {
		return err
	}
	values := models.SettingsToMap(settings)
	if _, ok := values[c.Key]; !ok {
		return unknownKey(c.Key, values)
	}

	value, err := normalize(c.Key, strings.TrimSpace(c.Value))
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", c.Key, err)
	}
	values[c.Key] = value

	updated, err := models.MapToSettings(values)
	if err != nil {
		return err
	}
	if err := ctx.Store.SaveSettings(ctx.Context(), updated); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	fmt.Printf("%s = %s\n", c.Key, value)

	if c.Key == constants.SettingTimezone || c.Key == constants.SettingHorizonDays {
		fmt.Println(cli.MutedStyle.Render("Already scheduled intakes are kept, new ones follow the new value."))
	}
	return nil
}

func normalize(key, value string) (string, error) {
	switch key {
	case constants.SettingTimezone:
		if !utils.ValidateTimezone(value) {
			return "", fmt.Errorf("unknown timezone %q", value)
		}
	case constants.SettingHorizonDays:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return "", fmt.Errorf("expected a positive number of days")
		}
	case constants.SettingReminderLeadMin:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return "", fmt.Errorf("expected a non-negative number of minutes")
		}
	case constants.SettingRegenInterval:
		d, err := models.ParseInterval(value)
		if err != nil {
			return "", err
		}
		return d.String(), nil
	case constants.SettingRemindersEnabled:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("expected true or false")
		}
		return strconv.FormatBool(b), nil
	default:
		if value == "" {
			return "", fmt.Errorf("message template cannot be empty")
		}
	}
	return value, nil
}

func unknownKey(key string, values map[string]string) error {
	return fmt.Errorf("unknown setting %q (expected one of: %s)", key, strings.Join(sortedKeys(values), ", "))
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
