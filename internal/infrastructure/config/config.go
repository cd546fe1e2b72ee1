package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		LogLevel  string `toml:"log_level"`
		UploadDir string `toml:"upload_dir"`
		UserID    int64  `toml:"user_id"`
	} `toml:"app"`

	OCR struct {
		Backend    string `toml:"backend"` // tesseract | http
		Languages  string `toml:"languages"`
		PSM        int    `toml:"psm"`
		Whitelist  string `toml:"whitelist"`
		TimeoutSec int    `toml:"timeout_sec"`
		HTTPURL    string `toml:"http_url"`
	} `toml:"ocr"`

	Preprocess struct {
		MedianKsize int   `toml:"median_ksize"`
		MorphKernel int   `toml:"morph_kernel"`
		Otsu        *bool `toml:"otsu"` // 未配置时为 true
	} `toml:"preprocess"`

	Storage struct {
		Driver string `toml:"driver"` // sqlite | postgres
	} `toml:"storage"`

	SQLite struct {
		Path string `toml:"path"`
	} `toml:"sqlite"`

	Postgres struct {
		DSN string `toml:"dsn"`
	} `toml:"postgres"`

	Redis struct {
		Enabled      bool   `toml:"enabled"`
		Addr         string `toml:"addr"`
		Password     string `toml:"password"`
		DB           int    `toml:"db"`
		Prefix       string `toml:"prefix"`
		LockTTLSec   int    `toml:"lock_ttl_sec"`
		EventStream  string `toml:"event_stream"`
		EventChannel string `toml:"event_channel"`
	} `toml:"redis"`

	Directory struct {
		CacheTTLSec int               `toml:"cache_ttl_sec"`
		Aliases     map[string]string `toml:"aliases"`
	} `toml:"directory"`

	// Events 入库事件的本地 JSON Lines 日志，LogPath 为空时不写
	Events struct {
		LogPath string `toml:"log_path"`
	} `toml:"events"`
}

// Load 读取 TOML，叠加 .env / 环境变量覆盖，再补默认值并校验
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	_ = godotenv.Load()
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.UploadDir == "" {
		cfg.App.UploadDir = "uploads/trade_images"
	}
	if cfg.App.UserID <= 0 {
		cfg.App.UserID = 1
	}
	if cfg.OCR.Backend == "" {
		cfg.OCR.Backend = "tesseract"
	}
	if cfg.OCR.Languages == "" {
		cfg.OCR.Languages = "chi_sim"
	}
	if cfg.OCR.PSM <= 0 {
		cfg.OCR.PSM = 6
	}
	if cfg.OCR.Whitelist == "" {
		cfg.OCR.Whitelist = DefaultWhitelist
	}
	if cfg.OCR.TimeoutSec <= 0 {
		cfg.OCR.TimeoutSec = 30
	}
	if cfg.Preprocess.MedianKsize <= 0 {
		cfg.Preprocess.MedianKsize = 3
	}
	if cfg.Preprocess.MorphKernel <= 0 {
		cfg.Preprocess.MorphKernel = 2
	}
	if cfg.Preprocess.Otsu == nil {
		otsu := true
		cfg.Preprocess.Otsu = &otsu
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "data/tradeocr.db"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "tradeocr"
	}
	if cfg.Redis.LockTTLSec <= 0 {
		cfg.Redis.LockTTLSec = 30
	}
	if cfg.Redis.EventStream == "" {
		cfg.Redis.EventStream = "tradeocr:trades"
	}
	if cfg.Redis.EventChannel == "" {
		cfg.Redis.EventChannel = "tradeocr:trades:pub"
	}
	if cfg.Directory.CacheTTLSec <= 0 {
		cfg.Directory.CacheTTLSec = 600
	}
}

func validate(cfg *Config) error {
	cfg.OCR.Backend = strings.ToLower(strings.TrimSpace(cfg.OCR.Backend))
	switch cfg.OCR.Backend {
	case "tesseract":
	case "http":
		if strings.TrimSpace(cfg.OCR.HTTPURL) == "" {
			return errors.New("ocr.http_url empty but backend is http")
		}
	default:
		return fmt.Errorf("ocr.backend %q not supported", cfg.OCR.Backend)
	}

	if cfg.Preprocess.MedianKsize%2 == 0 {
		return fmt.Errorf("preprocess.median_ksize must be odd, got %d", cfg.Preprocess.MedianKsize)
	}

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch cfg.Storage.Driver {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.Postgres.DSN) == "" {
			return errors.New("postgres.dsn empty but storage.driver is postgres")
		}
	default:
		return fmt.Errorf("storage.driver %q not supported", cfg.Storage.Driver)
	}

	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis.addr empty but enabled")
	}
	return nil
}

// applyEnv TRADEOCR_* 环境变量覆盖文件配置
func applyEnv(cfg *Config) error {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr("TRADEOCR_LOG_LEVEL", &cfg.App.LogLevel)
	setStr("TRADEOCR_UPLOAD_DIR", &cfg.App.UploadDir)
	setStr("TRADEOCR_OCR_BACKEND", &cfg.OCR.Backend)
	setStr("TRADEOCR_OCR_HTTP_URL", &cfg.OCR.HTTPURL)
	setStr("TRADEOCR_STORAGE_DRIVER", &cfg.Storage.Driver)
	setStr("TRADEOCR_SQLITE_PATH", &cfg.SQLite.Path)
	setStr("TRADEOCR_POSTGRES_DSN", &cfg.Postgres.DSN)
	setStr("TRADEOCR_REDIS_ADDR", &cfg.Redis.Addr)
	setStr("TRADEOCR_REDIS_PASSWORD", &cfg.Redis.Password)
	setStr("TRADEOCR_EVENTS_LOG_PATH", &cfg.Events.LogPath)

	if v := os.Getenv("TRADEOCR_USER_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TRADEOCR_USER_ID: %w", err)
		}
		cfg.App.UserID = id
	}
	if v := os.Getenv("TRADEOCR_REDIS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRADEOCR_REDIS_ENABLED: %w", err)
		}
		cfg.Redis.Enabled = b
	}
	return nil
}

// DefaultWhitelist 识别字符白名单：数字、字母和委托记录里的常见汉字
const DefaultWhitelist = "0123456789." +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz" +
	"年月日时分秒成交委托撤单担保品融资买入卖出已成部撤"

func (c *Config) RecognizeTimeout() time.Duration {
	return time.Duration(c.OCR.TimeoutSec) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Redis.LockTTLSec) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Directory.CacheTTLSec) * time.Second
}

// UseOtsu 二值化是否使用 Otsu 自动阈值
func (c *Config) UseOtsu() bool {
	return c.Preprocess.Otsu == nil || *c.Preprocess.Otsu
}
