package pagecache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/reelcrate/reelcrate/pkg/config"
)

// Invalidator drops rendered-page cache entries so the next request re-renders
// with fresh entitlement data. The page renderer stores entries under
// "page:<path>".
type Invalidator struct {
	rdb *redis.Client
	log *zap.SugaredLogger
}

func NewInvalidator(cfg *cfgpkg.Config, log *zap.SugaredLogger) *Invalidator {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &Invalidator{rdb: rdb, log: log}
}

// InvalidatePages deletes the cache entries for the given paths.
func (i *Invalidator) InvalidatePages(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, "page:"+p)
	}
	if err := i.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("pagecache: delete %d keys: %w", len(keys), err)
	}
	return nil
}

func registerClose(lc fx.Lifecycle, inv *Invalidator) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return inv.rdb.Close()
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewInvalidator),
	fx.Invoke(registerClose),
)
