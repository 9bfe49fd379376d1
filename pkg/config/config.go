package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	defaultConfigFile = "config/config.yml"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Site     SiteConfig
	Uploads  UploadsConfig
	Ranking  RankingConfig
	Search   SearchConfig
	Session  SessionConfig
	History  HistoryConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SiteConfig holds presentation values and the optional admin bootstrap account.
type SiteConfig struct {
	Title         string
	AdminName     string
	AdminPassword string
}

// UploadsConfig controls where study files live and how preview links are signed.
type UploadsConfig struct {
	Dir               string
	MaxFileSizeBytes  int64
	AllowedExtensions []string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
}

// RankingConfig tunes the home page widgets.
type RankingConfig struct {
	Limit        int
	CacheEnabled bool
	CacheTTL     time.Duration
}

// SearchConfig bounds result paging.
type SearchConfig struct {
	DefaultPerPage int
	MaxPerPage     int
}

// SessionConfig names the anonymous session carrier used for view counters.
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
}

// HistoryConfig sizes the background history writer.
type HistoryConfig struct {
	Workers int
	Retries int
}

// Load reads the configuration once without watching for changes.
func Load() (*Config, error) {
	store, err := LoadStore("")
	if err != nil {
		return nil, err
	}
	return store.Current(), nil
}

func newViper(path string) (*viper.Viper, bool, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		path = defaultConfigFile
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return v, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("env")
	cfg.Port = v.GetInt("port")
	cfg.APIPrefix = v.GetString("api.prefix")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("db.host"),
		Port:         v.GetInt("db.port"),
		User:         v.GetString("db.user"),
		Password:     v.GetString("db.password"),
		Name:         v.GetString("db.name"),
		SSLMode:      v.GetString("db.ssl_mode"),
		MaxOpenConns: v.GetInt("db.max_open_conns"),
		MaxIdleConns: v.GetInt("db.max_idle_conns"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("redis.host"),
		Port:     v.GetInt("redis.port"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("jwt.secret"),
		Expiration: parseDuration(v.GetString("jwt.expiration"), 24*time.Hour),
		Issuer:     v.GetString("jwt.issuer"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("allowed.origins"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	cfg.Site = SiteConfig{
		Title:         v.GetString("site.title"),
		AdminName:     v.GetString("site.admin_name"),
		AdminPassword: v.GetString("site.admin_password"),
	}

	maxUpload := v.GetInt64("uploads.max_file_size")
	if maxUpload <= 0 {
		maxUpload = 200 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		Dir:               v.GetString("uploads.dir"),
		MaxFileSizeBytes:  maxUpload,
		AllowedExtensions: splitAndTrim(v.GetString("uploads.allowed_extensions")),
		SignedURLSecret:   v.GetString("uploads.signed_url_secret"),
		SignedURLTTL:      parseDuration(v.GetString("uploads.signed_url_ttl"), 30*time.Minute),
	}

	cfg.Ranking = RankingConfig{
		Limit:        v.GetInt("ranking.limit"),
		CacheEnabled: v.GetBool("ranking.cache_enabled"),
		CacheTTL:     parseDuration(v.GetString("ranking.cache_ttl"), 5*time.Minute),
	}

	cfg.Search = SearchConfig{
		DefaultPerPage: v.GetInt("search.default_per_page"),
		MaxPerPage:     v.GetInt("search.max_per_page"),
	}

	cfg.Session = SessionConfig{
		CookieName: v.GetString("session.cookie_name"),
		TTL:        parseDuration(v.GetString("session.ttl"), 10*time.Minute),
	}

	cfg.History = HistoryConfig{
		Workers: v.GetInt("history.workers"),
		Retries: v.GetInt("history.retries"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("port must be positive, got %d", c.Port)
	}
	if strings.TrimSpace(c.Uploads.Dir) == "" {
		return fmt.Errorf("uploads.dir is required")
	}
	if c.Ranking.Limit <= 0 {
		return fmt.Errorf("ranking.limit must be positive, got %d", c.Ranking.Limit)
	}
	if c.Search.DefaultPerPage <= 0 || c.Search.MaxPerPage < c.Search.DefaultPerPage {
		return fmt.Errorf("search paging bounds invalid: default=%d max=%d", c.Search.DefaultPerPage, c.Search.MaxPerPage)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("port", 8080)
	v.SetDefault("api.prefix", "/api/v1")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "research_archive")
	v.SetDefault("db.ssl_mode", "disable")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "dev_secret")
	v.SetDefault("jwt.expiration", "24h")
	v.SetDefault("jwt.issuer", "research-archive-api")

	v.SetDefault("allowed.origins", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("site.title", "Research Archive")
	v.SetDefault("site.admin_name", "")
	v.SetDefault("site.admin_password", "")

	v.SetDefault("uploads.dir", "./data")
	v.SetDefault("uploads.max_file_size", 200*1024*1024)
	v.SetDefault("uploads.allowed_extensions", ".pdf,.mp4,.png")
	v.SetDefault("uploads.signed_url_secret", "dev_preview_secret")
	v.SetDefault("uploads.signed_url_ttl", "30m")

	v.SetDefault("ranking.limit", 10)
	v.SetDefault("ranking.cache_enabled", true)
	v.SetDefault("ranking.cache_ttl", "5m")

	v.SetDefault("search.default_per_page", 10)
	v.SetDefault("search.max_per_page", 100)

	v.SetDefault("session.cookie_name", "sid")
	v.SetDefault("session.ttl", "10m")

	v.SetDefault("history.workers", 2)
	v.SetDefault("history.retries", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
