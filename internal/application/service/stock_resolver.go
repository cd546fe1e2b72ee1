package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"tradeocr/internal/application/port"
	"tradeocr/internal/domain/model"
)

// DefaultAliases 常见识别错误或基础表缺失时的兜底映射
var DefaultAliases = map[string]string{
	"贝达药业": "300558.SZ",
	"汉威科技": "300007.SZ",
	"硕贝德":  "300322.SZ",
	"深信服":  "300454.SZ",
	"天孚通信": "300394.SZ",
}

// StockResolver 名称 -> 代码：精确匹配 -> 包含匹配 -> 静态别名
type StockResolver struct {
	dir     port.StockDirectory
	aliases map[string]string
}

func NewStockResolver(dir port.StockDirectory, aliases map[string]string) *StockResolver {
	if aliases == nil {
		aliases = DefaultAliases
	}
	return &StockResolver{dir: dir, aliases: aliases}
}

// Resolve 返回第一个命中的代码
func (r *StockResolver) Resolve(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", model.ErrUnresolvableStock)
	}

	lookups := []struct {
		kind string
		fn   func(context.Context, string) (string, error)
	}{
		{"exact", r.dir.FindExact},
		{"contains", r.dir.FindContaining},
	}
	for _, l := range lookups {
		code, err := l.fn(ctx, name)
		if err == nil && code != "" {
			log.Debug().Str("name", name).Str("ts_code", code).Str("match", l.kind).Msg("stock resolved")
			return code, nil
		}
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return "", fmt.Errorf("stock lookup %s %q: %w", l.kind, name, err)
		}
	}

	if code, ok := r.aliases[name]; ok {
		log.Debug().Str("name", name).Str("ts_code", code).Str("match", "alias").Msg("stock resolved")
		return code, nil
	}
	return "", fmt.Errorf("%w: %q", model.ErrUnresolvableStock, name)
}
