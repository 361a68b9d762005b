package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maltedev/catalog-price-scraper/internal/parser"
	"github.com/spf13/viper"
)

const (
	DefaultIndexURL   = "https://www.santerialacatedral.com.ar/products/category/aromanza-1"
	DefaultOutputName = "ProductosConPreciosCalculados.xlsx"
)

type Config struct {
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Export   ExportConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type ScraperConfig struct {
	IndexURL           string
	IndexWaitSelector  string
	ExcludedCategories []string
	DedupeCategories   bool
	Selectors          SelectorConfig
}

type SelectorConfig struct {
	ProductContainer string
	ProductName      string
	ProductPrice     string
	PaginationLink   string
	CategoryPath     string
}

type BrowserConfig struct {
	Engine         string
	Headless       bool
	Timeout        time.Duration
	SettleTimeout  time.Duration
	PollInterval   time.Duration
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	CacheSize      int
}

type ExportConfig struct {
	OutputPath      string
	Snapshot        bool
	WaitForKeypress bool
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

type StorageConfig struct {
	Enabled bool
	Bucket  string
	Prefix  string
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads defaults, an optional catalog.yaml (from CATALOG_CONFIG, the
// working directory or ./config) and environment overrides. Nested keys map
// to upper-cased environment names with dots replaced by underscores, so
// scraper.index_url is SCRAPER_INDEX_URL.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CATALOG_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("catalog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Scraper: ScraperConfig{
			IndexURL:           v.GetString("scraper.index_url"),
			IndexWaitSelector:  v.GetString("scraper.index_wait_selector"),
			ExcludedCategories: stringSlice(v, "scraper.excluded_categories"),
			DedupeCategories:   v.GetBool("scraper.dedupe_categories"),
			Selectors: SelectorConfig{
				ProductContainer: v.GetString("scraper.selectors.product_container"),
				ProductName:      v.GetString("scraper.selectors.product_name"),
				ProductPrice:     v.GetString("scraper.selectors.product_price"),
				PaginationLink:   v.GetString("scraper.selectors.pagination_link"),
				CategoryPath:     v.GetString("scraper.selectors.category_path"),
			},
		},
		Browser: BrowserConfig{
			Engine:         v.GetString("browser.engine"),
			Headless:       v.GetBool("browser.headless"),
			Timeout:        v.GetDuration("browser.timeout"),
			SettleTimeout:  v.GetDuration("browser.settle_timeout"),
			PollInterval:   v.GetDuration("browser.poll_interval"),
			ViewportWidth:  v.GetInt("browser.viewport_width"),
			ViewportHeight: v.GetInt("browser.viewport_height"),
			UserAgent:      v.GetString("browser.user_agent"),
			AcceptLanguage: v.GetString("browser.accept_language"),
			TimezoneID:     v.GetString("browser.timezone"),
			Locale:         v.GetString("browser.locale"),
			CacheSize:      v.GetInt("browser.cache_size"),
		},
		Export: ExportConfig{
			OutputPath:      v.GetString("export.output_path"),
			Snapshot:        v.GetBool("export.snapshot"),
			WaitForKeypress: v.GetBool("export.wait_for_keypress"),
		},
		Database: DatabaseConfig{
			Enabled:  v.GetBool("db.enabled"),
			Host:     v.GetString("db.host"),
			Port:     v.GetInt("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			Name:     v.GetString("db.name"),
			SSLMode:  v.GetString("db.ssl_mode"),
			MaxConns: v.GetInt32("db.max_conns"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Stream:   v.GetString("redis.stream"),
		},
		Storage: StorageConfig{
			Enabled: v.GetBool("storage.enabled"),
			Bucket:  v.GetString("storage.bucket"),
			Prefix:  v.GetString("storage.prefix"),
		},
		Server: ServerConfig{
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			AllowedOrigins:  stringSlice(v, "server.allowed_origins"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if cfg.Export.OutputPath == "" {
		cfg.Export.OutputPath = defaultOutputPath()
	}
	if cfg.Scraper.IndexWaitSelector == "" {
		cfg.Scraper.IndexWaitSelector = parser.CategoryLinkSelector(cfg.Scraper.Selectors.CategoryPath)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraper.index_url", DefaultIndexURL)
	// Empty means "derived from the category path".
	v.SetDefault("scraper.index_wait_selector", "")
	v.SetDefault("scraper.excluded_categories", parser.DefaultExcludedCategories())
	v.SetDefault("scraper.dedupe_categories", true)

	selectors := parser.DefaultSelectors()
	v.SetDefault("scraper.selectors.product_container", selectors.ProductContainer)
	v.SetDefault("scraper.selectors.product_name", selectors.ProductName)
	v.SetDefault("scraper.selectors.product_price", selectors.ProductPrice)
	v.SetDefault("scraper.selectors.pagination_link", selectors.PaginationLink)
	v.SetDefault("scraper.selectors.category_path", selectors.CategoryPath)

	v.SetDefault("browser.engine", "playwright")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.timeout", 30*time.Second)
	v.SetDefault("browser.settle_timeout", 12*time.Second)
	v.SetDefault("browser.poll_interval", 500*time.Millisecond)
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.accept_language", "es-AR,es;q=0.9,en;q=0.8")
	v.SetDefault("browser.timezone", "America/Argentina/Buenos_Aires")
	v.SetDefault("browser.locale", "es-AR")
	v.SetDefault("browser.cache_size", 16)

	v.SetDefault("export.output_path", "")
	v.SetDefault("export.snapshot", true)
	v.SetDefault("export.wait_for_keypress", true)

	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "catalog_prices")
	v.SetDefault("db.ssl_mode", "disable")
	v.SetDefault("db.max_conns", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "stream:catalog_exports")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "catalog-exports")

	v.SetDefault("server.port", 8086)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
}

// stringSlice accepts both YAML lists and comma separated environment
// values. viper's own GetStringSlice splits strings on whitespace, which
// would break names like "CATEGORY IMAGE".
func stringSlice(v *viper.Viper, key string) []string {
	raw, ok := v.Get(key).(string)
	if !ok {
		return v.GetStringSlice(key)
	}

	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func defaultOutputPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		desktop := filepath.Join(home, "Desktop")
		if info, err := os.Stat(desktop); err == nil && info.IsDir() {
			return filepath.Join(desktop, DefaultOutputName)
		}
	}
	return DefaultOutputName
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Scraper.IndexURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("SCRAPER_INDEX_URL must be an absolute http(s) URL: %q", c.Scraper.IndexURL)
	}

	s := c.Scraper.Selectors
	if s.ProductContainer == "" || s.ProductName == "" || s.ProductPrice == "" || s.PaginationLink == "" || s.CategoryPath == "" {
		return fmt.Errorf("all scraper selectors are required")
	}

	switch c.Browser.Engine {
	case "playwright", "rod":
	default:
		return fmt.Errorf("BROWSER_ENGINE must be playwright or rod, got %q", c.Browser.Engine)
	}

	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("BROWSER_TIMEOUT must be positive")
	}

	if c.Browser.SettleTimeout <= 0 {
		return fmt.Errorf("BROWSER_SETTLE_TIMEOUT must be positive")
	}

	if c.Browser.PollInterval <= 0 || c.Browser.PollInterval > c.Browser.SettleTimeout {
		return fmt.Errorf("BROWSER_POLL_INTERVAL must be positive and not exceed BROWSER_SETTLE_TIMEOUT")
	}

	if c.Browser.CacheSize < 0 {
		return fmt.Errorf("BROWSER_CACHE_SIZE cannot be negative")
	}

	if !strings.EqualFold(filepath.Ext(c.Export.OutputPath), ".xlsx") {
		return fmt.Errorf("EXPORT_OUTPUT_PATH must end in .xlsx: %q", c.Export.OutputPath)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Redis.Enabled && (c.Redis.Addr == "" || c.Redis.Stream == "") {
		return fmt.Errorf("REDIS_ADDR and REDIS_STREAM are required when redis is enabled")
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required when storage is enabled")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	return nil
}
