package models

import "time"

// Settings represents application-wide settings
type Settings struct {
	Timezone          string        `json:"timezone"`            // IANA timezone name, or "Local" for the system timezone
	HorizonDays       int           `json:"horizon_days"`        // number of future days the regenerator materializes
	RegenInterval     time.Duration `json:"regen_interval"`      // cadence of the background regenerator
	RemindersEnabled  bool          `json:"reminders_enabled"`   // whether reminders are dispatched at all
	ReminderLeadMin   int           `json:"reminder_lead_min"`   // minutes before the scheduled time a reminder fires
	ReminderMessage   string        `json:"reminder_message"`    // template for the regular reminder
	DelayedMessage    string        `json:"delayed_message"`     // template for the reminder sent once the grace window passed
	StockAlertMessage string        `json:"stock_alert_message"` // template for low-stock alerts
}
