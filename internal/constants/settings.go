package constants

const (
	// Setting keys
	SettingTimezone          = "timezone"
	SettingHorizonDays       = "horizon_days"
	SettingRegenInterval     = "regen_interval"
	SettingRemindersEnabled  = "reminders_enabled"
	SettingReminderLeadMin   = "reminder_lead_min"
	SettingReminderMessage   = "reminder_message"
	SettingDelayedMessage    = "delayed_message"
	SettingStockAlertMessage = "stock_alert_message"

	// Default Settings Values
	DefaultTimezone          = "Local" // Use system local timezone by default
	DefaultHorizonDays       = 14
	DefaultRemindersEnabled  = true
	DefaultReminderLeadMin   = 0
	DefaultReminderMessage   = "Time to take {medication} ({posology})"
	DefaultDelayedMessage    = "You have not taken {medication} yet (due at {time})"
	DefaultStockAlertMessage = "Low stock for {medication}: {stock} left"
	DefaultUnitsPerTake      = 1
	DefaultMinThreshold      = 10
)
