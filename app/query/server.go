package query

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/app/query/controller"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/app/query/types"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/utils"
)

// NewServer wires the controller's router into app.Server. The server is not
// started here; App.Start owns its lifecycle.
func NewServer(app *types.App) error {
	ctl := controller.NewController(app)
	router, err := ctl.NewRouter()
	if err != nil {
		return err
	}

	// <ip>:<port> binds one interface, :<port> binds them all.
	addr := utils.Env("ADDR", ":3001")
	app.Server = &http.Server{
		Addr:    addr,
		Handler: controller.WithCORS(router),
		// Header-only timeout: the WebSocket route holds connections open
		// long past any full-request deadline.
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
