package storage

import (
	"context"
	"time"

	"github.com/julianstephens/doselit/internal/logger"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/utils"
)

// CivilSettings returns the stored settings with defaults filled in and the
// timezone they select. Unreadable settings fall back to the defaults and an
// invalid timezone to the local one; both are logged.
func CivilSettings(ctx context.Context, p Provider) (models.Settings, *time.Location) {
	settings, err := p.GetSettings(ctx)
	if err != nil {
		logger.Warn("falling back to default settings", "error", err)
		settings = models.DefaultSettings()
	}
	models.ApplyDefaultSettings(&settings)
	loc, err := utils.LocationFromSettings(settings)
	if err != nil {
		logger.Warn("falling back to local timezone", "error", err)
		loc = time.Local
	}
	return settings, loc
}
