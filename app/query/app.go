package query

import (
	"context"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/app/query/types"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/war"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/logging"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/redis"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/royale"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/temporal"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/utils"
	"go.uber.org/zap"
)

// Initialize builds the query app from the environment.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		panic(err) // no logger to report with
	}

	clanTag := utils.Env("CLAN_TAG", "")
	if clanTag == "" {
		logger.Fatal("CLAN_TAG is required")
	}

	warDb, warDbErr := war.New(ctx, logger, "query")
	if warDbErr != nil {
		logger.Fatal("Unable to initialize war database", zap.Error(warDbErr))
	}

	// Ops endpoints start workflows, so the query service holds its own
	// Temporal client.
	temporalClient, temporalErr := temporal.NewClient(ctx, logger)
	if temporalErr != nil {
		logger.Fatal("Unable to initialize temporal client", zap.Error(temporalErr))
	}

	return &types.App{
		WarDB:          warDb,
		TemporalClient: temporalClient,
		RedisClient:    redis.NewClientIfEnabled(ctx, logger),
		ClanTag:        royale.NormalizeTag(clanTag),
		Logger:         logger,
	}
}
