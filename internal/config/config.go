// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage, locking, rate limiting,
// observability, and the token economics the settlement engine runs with.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/units"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-chat-ledger")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LogFileConfig configures the optional rotating log file.
type LogFileConfig struct {
	Path       string // LOG_FILE; empty disables file output
	MaxSizeMB  int    // LOG_FILE_MAX_SIZE_MB
	MaxBackups int    // LOG_FILE_MAX_BACKUPS
	MaxAgeDays int    // LOG_FILE_MAX_AGE_DAYS
	Compress   bool   // LOG_FILE_COMPRESS
}

// RedisConfig configures the distributed per-address lock. An empty Addr
// selects the in-process locker.
type RedisConfig struct {
	Addr     string        // REDIS_ADDR
	Password string        // REDIS_PASSWORD
	DB       int           // REDIS_DB
	LockTTL  time.Duration // LOCK_TTL
}

// Economics holds the immutable token economics. Amounts are in base units
// (18 decimals); env values are human decimals such as "0.001".
type Economics struct {
	Owner    common.Address // OWNER_ADDRESS: may mint, authorize spenders and register chatbots
	Platform common.Address // PLATFORM_ADDRESS: receives message fees and the platform native cut
	Pool     common.Address // POOL_ADDRESS: beneficiary of the global creator pool

	MessageCost       *uint256.Int // MESSAGE_COST
	CreatorRewardPct  uint64       // CREATOR_REWARD_RATIO
	FreeMessages      int          // FREE_MESSAGES
	DailyClaimAmount  *uint256.Int // DAILY_CLAIM_AMOUNT
	ExchangeRate      uint64       // EXCHANGE_RATE, tokens per native unit
	MinPurchase       *uint256.Int // MIN_PURCHASE, native units
	PlatformNativePct uint64       // PLATFORM_NATIVE_SHARE
	PoolNativePct     uint64       // POOL_NATIVE_SHARE, 100 - platform share
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	LogFile LogFileConfig

	// Storage
	DBDriver string // sqlite|postgres
	DBPath   string // SQLite path
	DBDSN    string // Postgres DSN

	// Locking
	Redis RedisConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig

	// Token economics
	Economics Economics
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		LogFile: LogFileConfig{
			Path:       getenv("LOG_FILE", ""),
			MaxSizeMB:  getint("LOG_FILE_MAX_SIZE_MB", 100),
			MaxBackups: getint("LOG_FILE_MAX_BACKUPS", 5),
			MaxAgeDays: getint("LOG_FILE_MAX_AGE_DAYS", 30),
			Compress:   getbool("LOG_FILE_COMPRESS", true),
		},

		// Storage
		DBDriver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:   getenv("DB_PATH", "ledger.db"),
		DBDSN:    getenv("DB_DSN", ""),

		// Locking
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
			LockTTL:  getdur("LOCK_TTL", 5*time.Second),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-chat-ledger"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	eco, err := loadEconomics()
	if err != nil {
		return cfg, err
	}
	cfg.Economics = eco

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DBDSN) == "" {
			return cfg, errors.New("DB_DSN must be set when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.Redis.LockTTL <= 0 {
		return cfg, errors.New("LOCK_TTL must be > 0")
	}
	if cfg.LogFile.Path != "" && cfg.LogFile.MaxSizeMB <= 0 {
		return cfg, errors.New("LOG_FILE_MAX_SIZE_MB must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// loadEconomics parses and validates the token economics. The owner and
// platform addresses have no defaults.
func loadEconomics() (Economics, error) {
	var eco Economics
	var err error

	if eco.Owner, err = getaddr("OWNER_ADDRESS", ""); err != nil {
		return eco, err
	}
	if eco.Platform, err = getaddr("PLATFORM_ADDRESS", ""); err != nil {
		return eco, err
	}
	if eco.Pool, err = getaddr("POOL_ADDRESS", eco.Owner.Hex()); err != nil {
		return eco, err
	}
	if eco.MessageCost, err = getamount("MESSAGE_COST", "0.001"); err != nil {
		return eco, err
	}
	if eco.DailyClaimAmount, err = getamount("DAILY_CLAIM_AMOUNT", "10"); err != nil {
		return eco, err
	}
	if eco.MinPurchase, err = getamount("MIN_PURCHASE", "0.001"); err != nil {
		return eco, err
	}

	creatorPct := getint("CREATOR_REWARD_RATIO", 80)
	rate := getint("EXCHANGE_RATE", 10000)
	platformPct := getint("PLATFORM_NATIVE_SHARE", 70)
	poolPct := getint("POOL_NATIVE_SHARE", 100-platformPct)
	eco.FreeMessages = getint("FREE_MESSAGES", 5)

	if eco.MessageCost.IsZero() {
		return eco, errors.New("MESSAGE_COST must be > 0")
	}
	if creatorPct < 0 || creatorPct > 100 {
		return eco, errors.New("CREATOR_REWARD_RATIO must be between 0 and 100")
	}
	if eco.FreeMessages < 0 {
		return eco, errors.New("FREE_MESSAGES must be >= 0")
	}
	if rate <= 0 {
		return eco, errors.New("EXCHANGE_RATE must be > 0")
	}
	if platformPct < 0 || poolPct < 0 || platformPct+poolPct != 100 {
		return eco, errors.New("PLATFORM_NATIVE_SHARE and POOL_NATIVE_SHARE must be >= 0 and sum to 100")
	}
	eco.CreatorRewardPct = uint64(creatorPct)
	eco.ExchangeRate = uint64(rate)
	eco.PlatformNativePct = uint64(platformPct)
	eco.PoolNativePct = uint64(poolPct)
	return eco, nil
}

// ---- helpers ----

func getaddr(k, def string) (common.Address, error) {
	v := getenv(k, def)
	if v == "" {
		return common.Address{}, fmt.Errorf("%s must be set", k)
	}
	a, err := domain.ParseAddress(v)
	if err != nil || a == domain.ZeroAddress {
		return common.Address{}, fmt.Errorf("%s must be a non-zero hex address", k)
	}
	return a, nil
}

func getamount(k, def string) (*uint256.Int, error) {
	v, err := units.ParseUnits(getenv(k, def))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	return v, nil
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
