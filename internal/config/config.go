package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const DefaultEmptyReviewText = "此用户没有填写评价。"

type Config struct {
	Platform           string `mapstructure:"PLATFORM"`
	ItemIDs            string `mapstructure:"ITEM_IDS"`
	PageCount          int    `mapstructure:"PAGE_COUNT"`
	OrderType          string `mapstructure:"ORDER_TYPE"`
	RateType           string `mapstructure:"RATE_TYPE"`
	Cookies            string `mapstructure:"COOKIES"`
	RequireToken       bool   `mapstructure:"REQUIRE_TOKEN"`
	FilterEmptyReviews bool   `mapstructure:"FILTER_EMPTY_REVIEWS"`
	EmptyReviewText    string `mapstructure:"EMPTY_REVIEW_TEXT"`
	ExportFields       string `mapstructure:"EXPORT_FIELDS"`
	ExportPath         string `mapstructure:"EXPORT_PATH"`
	SaveDataOption     string `mapstructure:"SAVE_DATA_OPTION"`
	DataDir            string `mapstructure:"DATA_DIR"`

	StoreBackend       string `mapstructure:"STORE_BACKEND"`
	SQLitePath         string `mapstructure:"SQLITE_PATH"`
	MySQLDSN           string `mapstructure:"MYSQL_DSN"`
	PostgresDSN        string `mapstructure:"POSTGRES_DSN"`
	MongoURI           string `mapstructure:"MONGO_URI"`
	MongoDB            string `mapstructure:"MONGO_DB"`
	CacheBackend       string `mapstructure:"CACHE_BACKEND"`
	CacheDefaultTTLSec int    `mapstructure:"CACHE_DEFAULT_TTL_SEC"`
	RedisAddr          string `mapstructure:"REDIS_ADDR"`
	RedisPassword      string `mapstructure:"REDIS_PASSWORD"`
	RedisDB            int    `mapstructure:"REDIS_DB"`
	RedisKeyPrefix     string `mapstructure:"REDIS_KEY_PREFIX"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	HttpTimeoutSec       int     `mapstructure:"HTTP_TIMEOUT_SEC"`
	HttpRetryCount       int     `mapstructure:"HTTP_RETRY_COUNT"`
	HttpRetryBaseDelayMs int     `mapstructure:"HTTP_RETRY_BASE_DELAY_MS"`
	HttpRetryMaxDelayMs  int     `mapstructure:"HTTP_RETRY_MAX_DELAY_MS"`
	HttpMaxRPS           float64 `mapstructure:"HTTP_MAX_RPS"`
	CrawlerMinSleepMs    int     `mapstructure:"CRAWLER_MIN_SLEEP_MS"`
	CrawlerMaxSleepMs    int     `mapstructure:"CRAWLER_MAX_SLEEP_MS"`
	MaxConcurrencyNum    int     `mapstructure:"MAX_CONCURRENCY_NUM"`

	EnableIPProxy       bool   `mapstructure:"ENABLE_IP_PROXY"`
	IPProxyPoolCount    int    `mapstructure:"IP_PROXY_POOL_COUNT"`
	IPProxyProviderName string `mapstructure:"IP_PROXY_PROVIDER_NAME"`
	IPProxyList         string `mapstructure:"IP_PROXY_LIST"`
	IPProxyFile         string `mapstructure:"IP_PROXY_FILE"`
}

var AppConfig Config

func LoadConfig(path string) error {
	// A missing .env is fine; the cookie may come from yaml or the environment.
	_ = godotenv.Load()

	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("PLATFORM", "tmall")
	viper.SetDefault("ITEM_IDS", "")
	viper.SetDefault("PAGE_COUNT", 5)
	viper.SetDefault("ORDER_TYPE", "")
	viper.SetDefault("RATE_TYPE", "")
	viper.SetDefault("COOKIES", "")
	viper.SetDefault("REQUIRE_TOKEN", false)
	viper.SetDefault("FILTER_EMPTY_REVIEWS", false)
	viper.SetDefault("EMPTY_REVIEW_TEXT", DefaultEmptyReviewText)
	viper.SetDefault("EXPORT_FIELDS", "all")
	viper.SetDefault("EXPORT_PATH", "")
	viper.SetDefault("SAVE_DATA_OPTION", "xlsx")
	viper.SetDefault("DATA_DIR", "data")
	viper.SetDefault("STORE_BACKEND", "file")
	viper.SetDefault("SQLITE_PATH", "data/tmall_reviews.db")
	viper.SetDefault("MYSQL_DSN", "")
	viper.SetDefault("POSTGRES_DSN", "")
	viper.SetDefault("MONGO_URI", "")
	viper.SetDefault("MONGO_DB", "tmall_reviews")
	viper.SetDefault("CACHE_BACKEND", "memory")
	viper.SetDefault("CACHE_DEFAULT_TTL_SEC", 600)
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_KEY_PREFIX", "tmall_crawler:")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("HTTP_TIMEOUT_SEC", 20)
	viper.SetDefault("HTTP_RETRY_COUNT", 0)
	viper.SetDefault("HTTP_RETRY_BASE_DELAY_MS", 500)
	viper.SetDefault("HTTP_RETRY_MAX_DELAY_MS", 4000)
	viper.SetDefault("HTTP_MAX_RPS", 0)
	viper.SetDefault("CRAWLER_MIN_SLEEP_MS", 1000)
	viper.SetDefault("CRAWLER_MAX_SLEEP_MS", 2000)
	viper.SetDefault("MAX_CONCURRENCY_NUM", 1)
	viper.SetDefault("ENABLE_IP_PROXY", false)
	viper.SetDefault("IP_PROXY_POOL_COUNT", 2)
	viper.SetDefault("IP_PROXY_PROVIDER_NAME", "static")
	viper.SetDefault("IP_PROXY_LIST", "")
	viper.SetDefault("IP_PROXY_FILE", "")

	viper.SetEnvPrefix("TMALL_CRAWLER")
	viper.AutomaticEnv()
	viper.RegisterAlias("COOKIE", "COOKIES")

	// If no config file found, just use defaults/env
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return err
	}
	Normalize(&AppConfig)
	return nil
}

func SplitCSV(s string) []string {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.SaveDataOption = strings.ToLower(strings.TrimSpace(cfg.SaveDataOption))
	if cfg.SaveDataOption == "excel" {
		cfg.SaveDataOption = "xlsx"
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.CacheBackend))
	cfg.OrderType = strings.TrimSpace(cfg.OrderType)
	cfg.IPProxyProviderName = strings.ToLower(strings.TrimSpace(cfg.IPProxyProviderName))
	cfg.Cookies = strings.TrimSpace(cfg.Cookies)
	if cfg.PageCount <= 0 {
		cfg.PageCount = 5
	}
	if cfg.EmptyReviewText == "" {
		cfg.EmptyReviewText = DefaultEmptyReviewText
	}
	if cfg.CrawlerMaxSleepMs < cfg.CrawlerMinSleepMs {
		cfg.CrawlerMaxSleepMs = cfg.CrawlerMinSleepMs
	}
}
