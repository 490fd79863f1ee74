package constants

import "time"

const (
	AppName            = "doselit"
	DefaultKeyringUser = "database-connection"
	DefaultConfigPath  = "~/.config/doselit/doselit.db"
	Version            = "v0.3.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time-of-day format for posology slots (HH:MM)
	TimeFormat = "15:04"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "doselit-"
	BackupFileSuffix = ".db"

	// Notify constants
	NotifierLockfileName   = "doselit-notifier.lock"
	NotificationDurationMs = 5000
	TrayAppIdentifier      = "com.julianstephens.doselit"
	TrayExecutable         = "doselit-tray"
	TraySecretHeader       = "X-Doselit-Secret"

	// Environment variables
	EnvDBConnection = "DOSELIT_DB_CONNECTION"
	EnvUser         = "DOSELIT_USER"
)

const (
	// LateThreshold is the grace window after a scheduled instant. It is a
	// fixed business rule shared by every status computation.
	LateThreshold = 30 * time.Minute

	// CalendarEventDuration is the length of an intake event in a calendar mirror.
	CalendarEventDuration = 30 * time.Minute

	// DefaultRegenInterval is the cadence of the schedule regenerator.
	DefaultRegenInterval = 6 * time.Hour

	// DispatchInterval is the cadence of the reminder dispatcher.
	DispatchInterval = time.Minute

	// AdherenceShortWindowDays and AdherenceLongWindowDays are the trailing
	// windows reported by the adherence aggregator.
	AdherenceShortWindowDays = 7
	AdherenceLongWindowDays  = 30
)
