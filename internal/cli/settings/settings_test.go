package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/doselit/internal/cli/clitest"
	"github.com/julianstephens/doselit/internal/constants"
)

func TestSettingsSetCmd(t *testing.T) {
	env := clitest.New(t)

	tests := []struct {
		key   string
		value string
		check func(t *testing.T)
	}{
		{constants.SettingTimezone, "Europe/Paris", func(t *testing.T) {
			s, err := env.Store.GetSettings(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "Europe/Paris", s.Timezone)
		}},
		{constants.SettingHorizonDays, " 14 ", func(t *testing.T) {
			s, err := env.Store.GetSettings(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 14, s.HorizonDays)
		}},
		{constants.SettingRegenInterval, "30m", func(t *testing.T) {
			s, err := env.Store.GetSettings(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 30*time.Minute, s.RegenInterval)
		}},
		{constants.SettingRemindersEnabled, "0", func(t *testing.T) {
			s, err := env.Store.GetSettings(context.Background())
			require.NoError(t, err)
			assert.False(t, s.RemindersEnabled)
		}},
		{constants.SettingReminderLeadMin, "0", func(t *testing.T) {
			s, err := env.Store.GetSettings(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 0, s.ReminderLeadMin)
		}},
		{constants.SettingStockAlertMessage, "Refill {medication}", func(t *testing.T) {
			s, err := env.Store.GetSettings(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "Refill {medication}", s.StockAlertMessage)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			require.NoError(t, (&SettingsSetCmd{Key: tt.key, Value: tt.value}).Run(env.Ctx))
			tt.check(t)
		})
	}
}

func TestSettingsSetCmd_Invalid(t *testing.T) {
	env := clitest.New(t)

	tests := []struct {
		key   string
		value string
	}{
		{constants.SettingTimezone, "Mars/Olympus"},
		{constants.SettingHorizonDays, "0"},
		{constants.SettingHorizonDays, "soon"},
		{constants.SettingReminderLeadMin, "-5"},
		{constants.SettingRegenInterval, "10s"},
		{constants.SettingRemindersEnabled, "maybe"},
		{constants.SettingReminderMessage, "   "},
		{"colour", "blue"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			assert.Error(t, (&SettingsSetCmd{Key: tt.key, Value: tt.value}).Run(env.Ctx))
		})
	}

	s, err := env.Store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "UTC", s.Timezone)
	assert.Equal(t, 2, s.HorizonDays)
}

func TestSettingsGetCmd(t *testing.T) {
	env := clitest.New(t)

	assert.NoError(t, (&SettingsGetCmd{}).Run(env.Ctx))
	assert.NoError(t, (&SettingsGetCmd{Key: constants.SettingTimezone}).Run(env.Ctx))
	assert.ErrorContains(t, (&SettingsGetCmd{Key: "colour"}).Run(env.Ctx), "unknown setting")
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedKeys(map[string]string{"c": "", "a": "", "b": ""}))
}
