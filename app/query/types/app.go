package types

import (
	"context"
	"net/http"
	"time"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/war"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/redis"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/temporal"
	"go.uber.org/zap"
)

// App holds everything the query service needs at request time.
type App struct {
	WarDB          war.Store
	TemporalClient *temporal.Client
	RedisClient    *redis.Client

	// ClanTag is the tracked clan. Read endpoints default to it and ops
	// endpoints refuse other tags.
	ClanTag string

	Logger *zap.Logger
	Server *http.Server
}

// User is an API user entry. Hash is a bcrypt hash of the password.
type User struct {
	Username string `json:"username"`
	Hash     []byte `json:"hash"`
	Role     string `json:"role"`
}

// Start serves until ctx is cancelled, then drains the HTTP server before
// closing the backends under it.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	if err := a.WarDB.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
	if a.TemporalClient != nil {
		a.TemporalClient.Close()
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	a.Logger.Info("Чао!")
}
