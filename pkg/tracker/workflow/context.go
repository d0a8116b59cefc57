package workflow

import (
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/temporal"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/tracker/activity"
)

type Context struct {
	TemporalClient  *temporal.Client
	ActivityContext *activity.Context
}
