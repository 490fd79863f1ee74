package system

import (
	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.StartSession()
	if err != nil {
		return err
	}
	_, loc, err := ctx.Settings()
	if err != nil {
		return err
	}

	return tui.Run(ctx.Context(), tui.Options{
		Store:      ctx.Store,
		UserID:     userID,
		Location:   loc,
		Clock:      ctx.Clock,
		OnLowStock: ctx.SendStockAlert,
	})
}
