package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tradeocr/internal/application/port"
	"tradeocr/internal/domain/model"
)

// Repo 跨进程的 key 锁 + 交易入库事件（stream + pubsub）
type Repo struct {
	rdb         *redis.Client
	prefix      string
	lockTTL     time.Duration
	renewEvery  time.Duration
	retryDelay  time.Duration
	tradeStream string
	tradeChan   string
}

func New(rdb *redis.Client, prefix string, lockTTL time.Duration, tradeStream, tradeChan string) *Repo {
	if strings.TrimSpace(tradeStream) == "" {
		tradeStream = prefix + ":trades"
	}
	if strings.TrimSpace(tradeChan) == "" {
		tradeChan = prefix + ":trades:pub"
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Repo{
		rdb:         rdb,
		prefix:      prefix,
		lockTTL:     lockTTL,
		renewEvery:  lockTTL / 3,
		retryDelay:  20 * time.Millisecond,
		tradeStream: tradeStream,
		tradeChan:   tradeChan,
	}
}

// 只有持有者 token 一致时才删除
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// 只有持有者 token 一致时才续期
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lock SET NX PX 轮询获取，ctx 取消时放弃
// 持有期间每 lockTTL/3 续期一次，释放后停止；进程崩溃时锁在 lockTTL 后过期
func (r *Repo) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := r.prefix + ":lock:" + key
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, lockKey, token, r.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", lockKey, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.renew(lockKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			r.release(lockKey, token)
		})
	}, nil
}

// renew 定期延长锁的过期时间，锁已不属于自己时退出
func (r *Repo) renew(lockKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.renewEvery)
		n, err := renewScript.Run(ctx, r.rdb, []string{lockKey}, token, r.lockTTL.Milliseconds()).Int64()
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("key", lockKey).Msg("redis lock renew failed")
			continue
		}
		if n == 0 {
			log.Warn().Str("key", lockKey).Msg("redis lock lost before release")
			return
		}
	}
}

// release 调用方 ctx 可能已取消，释放用独立的短超时
func (r *Repo) release(lockKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, r.rdb, []string{lockKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Str("key", lockKey).Msg("redis unlock failed")
	}
}

// TradeEvent 发布到 stream / channel 的消息体
type TradeEvent struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	TsCode     string `json:"ts_code"`
	TradeType  string `json:"trade_type"`
	Quantity   int64  `json:"quantity"`
	Price      string `json:"price"`
	TradeDate  string `json:"trade_date"`
	ProfitLoss string `json:"profit_loss,omitempty"`
	TsMs       int64  `json:"ts_ms"`
}

func newTradeEvent(rec *model.TradeRecord) TradeEvent {
	ev := TradeEvent{
		ID:        rec.ID,
		UserID:    rec.UserID,
		TsCode:    rec.TsCode,
		TradeType: string(rec.TradeType),
		Quantity:  rec.Quantity,
		Price:     rec.Price.String(),
		TradeDate: rec.TradeDate.Format(model.DateLayout),
		TsMs:      time.Now().UnixMilli(),
	}
	if rec.ProfitLoss.Valid {
		ev.ProfitLoss = rec.ProfitLoss.Decimal.String()
	}
	return ev
}

func (r *Repo) PublishTradeSaved(ctx context.Context, rec *model.TradeRecord) error {
	ev := newTradeEvent(rec)
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	// 1) Stream: XADD <stream> * id user_id ts_code ... payload
	_, err = r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.tradeStream,
		Values: map[string]any{
			"id":         ev.ID,
			"user_id":    ev.UserID,
			"ts_code":    ev.TsCode,
			"trade_type": ev.TradeType,
			"payload":    string(b),
		},
	}).Result()
	if err != nil {
		return err
	}

	// 2) PubSub: PUBLISH <channel> json
	return r.rdb.Publish(ctx, r.tradeChan, string(b)).Err()
}

var (
	_ port.Locker         = (*Repo)(nil)
	_ port.EventPublisher = (*Repo)(nil)
)
