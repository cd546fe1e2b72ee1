package directory

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"tradeocr/internal/application/port"
	"tradeocr/internal/domain/model"
)

// Backend 被缓存的目录，同时负责写入
type Backend interface {
	port.StockDirectory
	port.StockWriter
}

// Cached 名称查找结果缓存，未命中也缓存；写入时清空
type Cached struct {
	backend Backend
	cache   *cache.Cache
}

func NewCached(backend Backend, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cached{
		backend: backend,
		cache:   cache.New(ttl, 2*ttl),
	}
}

func (c *Cached) FindExact(ctx context.Context, name string) (string, error) {
	return c.lookup(ctx, "exact:"+name, name, c.backend.FindExact)
}

func (c *Cached) FindContaining(ctx context.Context, name string) (string, error) {
	return c.lookup(ctx, "contains:"+name, name, c.backend.FindContaining)
}

func (c *Cached) UpsertStock(ctx context.Context, s *model.Stock) error {
	if err := c.backend.UpsertStock(ctx, s); err != nil {
		return err
	}
	c.cache.Flush()
	return nil
}

func (c *Cached) lookup(ctx context.Context, key, name string, fn func(context.Context, string) (string, error)) (string, error) {
	if v, found := c.cache.Get(key); found {
		code := v.(string)
		if code == "" {
			return "", model.ErrNotFound
		}
		return code, nil
	}

	code, err := fn(ctx, name)
	switch {
	case err == nil:
		c.cache.Set(key, code, cache.DefaultExpiration)
	case errors.Is(err, model.ErrNotFound):
		c.cache.Set(key, "", cache.DefaultExpiration)
	default:
		// 后端错误不缓存
		return "", err
	}
	log.Debug().Str("key", key).Str("ts_code", code).Msg("stock directory cache filled")
	return code, err
}

var _ Backend = (*Cached)(nil)
