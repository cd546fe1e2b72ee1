package svc

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tradeocr/internal/application/port"
	"tradeocr/internal/application/service"
	"tradeocr/internal/application/usecase/ingest"
	domainservice "tradeocr/internal/domain/service"
	"tradeocr/internal/infrastructure/config"
	"tradeocr/internal/infrastructure/directory"
	"tradeocr/internal/infrastructure/storage/composite"
	"tradeocr/internal/infrastructure/storage/eventlog"
	pgrepo "tradeocr/internal/infrastructure/storage/postgres"
	redisrepo "tradeocr/internal/infrastructure/storage/redis"
	sqliterepo "tradeocr/internal/infrastructure/storage/sqlite"
)

// OCREngine 预处理 + 识别，Close 可为 nil
type OCREngine struct {
	Preprocessor port.Preprocessor
	Recognizer   port.TextRecognizer
	Close        func() error
}

// OCRFactory 按配置构造识别引擎
type OCRFactory func(cfg *config.Config) (*OCREngine, error)

// Options 按命令需要裁剪初始化内容
type Options struct {
	// OCR 为 nil 时不初始化识别引擎（只读命令不需要）
	OCR  OCRFactory
	Sink port.Sink
}

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层（第一层初始化）
	store       port.Store
	redisClient *redisclient.Client
	redisRepo   *redisrepo.Repo
	directory   *directory.Cached

	// 输出端口
	Sink port.Sink

	// 应用业务组件（依赖基础设施）
	locker       port.Locker
	publisher    port.EventPublisher
	preprocessor port.Preprocessor
	recognizer   port.TextRecognizer
	resolver     *service.StockResolver
	positions    *service.PositionService
	ledger       *service.LedgerWriter
	ingest       *ingest.Service

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext
// 这是应用启动的唯一入口点，所有依赖初始化都在这里完成
func New(ctx context.Context, cfg *config.Config, opts Options) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Sink:        opts.Sink,
		closerChain: make([]func() error, 0),
	}

	if err := sc.initializeComponents(opts); err != nil {
		// 清理已初始化的资源
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 按依赖顺序初始化
func (sc *ServiceContext) initializeComponents(opts Options) error {
	// 0. 存储层
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInitFailed, err)
	}

	// 1. 锁：启用 redis 时跨进程，否则进程内
	if sc.redisRepo != nil {
		sc.locker = sc.redisRepo
	} else {
		sc.locker = domainservice.NewKeyLocker()
	}

	// 事件：本地事件日志 + redis，均未配置时不发布
	if err := sc.initPublisher(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInitFailed, err)
	}

	// 2. 业务组件
	sc.directory = directory.NewCached(sc.store, sc.Config.CacheTTL())
	sc.resolver = service.NewStockResolver(sc.directory, sc.aliases())
	sc.positions = service.NewPositionService(sc.store, sc.locker)
	sc.ledger = service.NewLedgerWriter(service.LedgerWriterDeps{
		Trades:    sc.store,
		Resolver:  sc.resolver,
		Positions: sc.positions,
		Locker:    sc.locker,
		Events:    sc.publisher,
	})

	// 3. 识别引擎
	if opts.OCR != nil {
		if err := sc.initOCR(opts.OCR); err != nil {
			return fmt.Errorf("%w: %v", ErrOCRInitFailed, err)
		}
	}

	sc.ingest = ingest.NewService(ingest.ServiceDeps{
		Preprocessor:     sc.preprocessor,
		Recognizer:       sc.recognizer,
		Parser:           domainservice.NewTransactionParser(),
		Ledger:           sc.ledger,
		UploadDir:        sc.Config.App.UploadDir,
		RecognizeTimeout: sc.Config.RecognizeTimeout(),
	})

	log.Info().
		Str("storage", sc.Config.Storage.Driver).
		Bool("redis", sc.redisRepo != nil).
		Bool("ocr", opts.OCR != nil).
		Msg("✓ All components initialized")
	return nil
}

// initializeStorage 初始化存储层 (SQLite/Postgres 和可选的 Redis)
func (sc *ServiceContext) initializeStorage() error {
	switch sc.Config.Storage.Driver {
	case "postgres":
		if err := sc.initPostgres(); err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
	default:
		if err := sc.initSQLite(); err != nil {
			return fmt.Errorf("sqlite initialization failed: %w", err)
		}
	}

	if sc.Config.Redis.Enabled {
		if err := sc.initRedis(); err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
	}
	return nil
}

// initRedis 初始化 Redis 连接
func (sc *ServiceContext) initRedis() error {
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     sc.Config.Redis.Addr,
		Password: sc.Config.Redis.Password,
		DB:       sc.Config.Redis.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	sc.redisClient = rdb
	sc.redisRepo = redisrepo.New(
		rdb,
		sc.Config.Redis.Prefix,
		sc.Config.LockTTL(),
		sc.Config.Redis.EventStream,
		sc.Config.Redis.EventChannel,
	)

	// 注册关闭回调
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", sc.Config.Redis.Addr).
		Int("db", sc.Config.Redis.DB).
		Msg("✓ Redis initialized")
	return nil
}

// initSQLite 初始化 SQLite 数据库
func (sc *ServiceContext) initSQLite() error {
	repo, err := sqliterepo.New(sc.Config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("sqlite repo creation failed: %w", err)
	}
	sc.store = repo

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", sc.Config.SQLite.Path).
		Msg("✓ SQLite initialized")
	return nil
}

// initPostgres 初始化 Postgres 数据库
func (sc *ServiceContext) initPostgres() error {
	repo, err := pgrepo.New(sc.Config.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("postgres repo creation failed: %w", err)
	}
	sc.store = repo

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("✓ Postgres initialized")
	return nil
}

// initPublisher 组装事件发布器
func (sc *ServiceContext) initPublisher() error {
	var pubs []port.EventPublisher

	if path := sc.Config.Events.LogPath; path != "" {
		repo, err := eventlog.New(path)
		if err != nil {
			return fmt.Errorf("event log initialization failed: %w", err)
		}
		sc.closerChain = append(sc.closerChain, func() error {
			log.Info().Msg("closing event log")
			return repo.Close()
		})
		pubs = append(pubs, repo)
		log.Info().Str("path", path).Msg("✓ Event log initialized")
	}
	if sc.redisRepo != nil {
		pubs = append(pubs, sc.redisRepo)
	}

	if len(pubs) == 0 {
		sc.publisher = port.NoopPublisher{}
		return nil
	}
	sc.publisher = composite.New(pubs...)
	return nil
}

// initOCR 初始化图片预处理和文字识别
func (sc *ServiceContext) initOCR(factory OCRFactory) error {
	engine, err := factory(sc.Config)
	if err != nil {
		return err
	}
	sc.preprocessor = engine.Preprocessor
	sc.recognizer = engine.Recognizer
	if engine.Close != nil {
		sc.closerChain = append(sc.closerChain, func() error {
			log.Info().Msg("closing ocr engine")
			return engine.Close()
		})
	}
	log.Info().Str("backend", sc.Config.OCR.Backend).Msg("✓ OCR initialized")
	return nil
}

func (sc *ServiceContext) aliases() map[string]string {
	if len(sc.Config.Directory.Aliases) == 0 {
		return nil
	}
	return sc.Config.Directory.Aliases
}

// Ingest 截图入库用例
func (sc *ServiceContext) Ingest() *ingest.Service { return sc.ingest }

// Positions 持仓服务
func (sc *ServiceContext) Positions() *service.PositionService { return sc.positions }

// Trades 流水查询
func (sc *ServiceContext) Trades() port.TradeRepository { return sc.store }

// Stocks 股票基础信息写入（同时清空目录缓存）
func (sc *ServiceContext) Stocks() port.StockWriter { return sc.directory }

// Close 按照相反的顺序关闭所有资源，应在退出时调用
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}
