package app

import (
	"time"

	"github.com/reelcrate/reelcrate/internal/app/api/server"
	"github.com/reelcrate/reelcrate/internal/app/service/billing"
	"github.com/reelcrate/reelcrate/internal/app/service/eventledger"
	"github.com/reelcrate/reelcrate/internal/app/service/statistics"
	"github.com/reelcrate/reelcrate/internal/platform/db"
	"github.com/reelcrate/reelcrate/internal/platform/pagecache"
	"github.com/reelcrate/reelcrate/internal/platform/stripeapi"
	"github.com/reelcrate/reelcrate/pkg/config"
	"github.com/reelcrate/reelcrate/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	stripeapi.Module,
	pagecache.Module,
	eventledger.Module,
	statistics.Module,
	billing.Module,
	fx.Provide(
		func(c *stripeapi.Client) billing.ProviderClient { return c },
		func(i *pagecache.Invalidator) billing.PageCacheInvalidator { return i },
		func(l *eventledger.Service) billing.EventLedger { return l },
	),
)
