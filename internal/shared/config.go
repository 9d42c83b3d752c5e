package shared

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string // empty disables the run log
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration

	SearchBase         string
	SearchKey          string
	SearchRPS          int
	SearchFallbackBase string
	SearchFallbackKey  string
	SearchTimeout      time.Duration
	ScrapeTimeout      time.Duration
	ScrapeTopN         int
	ScrapeMaxLength    int
	ResultsPerQuery    int
	MinValidListings   int

	UFRateURL      string
	UFFallbackRate float64

	PremiumHardFloor float64
	PremiumSoftFloor float64
	RerankMargin     float64
	RerankBase       string
	RerankKey        string
	RerankModel      string

	TablesPath      string // empty uses the embedded tables
	WarmWorkers     int
	WarmQueriesFile string
}

// Load reads the environment, after an optional .env file in the working
// directory. Real environment variables win over .env entries.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg(".env present but unreadable")
	}

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		MySQLDSN:    env("MYSQL_DSN", ""),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),
		CacheTTL:    seconds("CACHE_TTL_SECONDS", 600),

		SearchBase:         env("SEARCH_BASE_URL", "https://google.serper.dev"),
		SearchKey:          env("SEARCH_API_KEY", ""),
		SearchRPS:          atoi("SEARCH_RPS", 5),
		SearchFallbackBase: env("SEARCH_FALLBACK_BASE_URL", ""),
		SearchFallbackKey:  env("SEARCH_FALLBACK_API_KEY", ""),
		SearchTimeout:      seconds("SEARCH_TIMEOUT_SECONDS", 10),
		ScrapeTimeout:      seconds("SCRAPE_TIMEOUT_SECONDS", 8),
		ScrapeTopN:         atoi("SCRAPE_TOP_N", 5),
		ScrapeMaxLength:    atoi("SCRAPE_MAX_LENGTH", 20000),
		ResultsPerQuery:    atoi("RESULTS_PER_QUERY", 10),
		MinValidListings:   atoi("MIN_VALID_LISTINGS", 3),

		UFRateURL:      env("UF_RATE_URL", "https://mindicador.cl/api/uf"),
		UFFallbackRate: atof("UF_FALLBACK_RATE", 39000),

		PremiumHardFloor: atof("PREMIUM_HARD_FLOOR", 0.30),
		PremiumSoftFloor: atof("PREMIUM_SOFT_FLOOR", 0.50),
		RerankMargin:     atof("RERANK_MARGIN", 0.08),
		RerankBase:       env("RERANK_BASE_URL", "https://api.openai.com/v1"),
		RerankKey:        env("RERANK_API_KEY", ""),
		RerankModel:      env("RERANK_MODEL", ""),

		TablesPath:      env("TABLES_PATH", ""),
		WarmWorkers:     atoi("WARM_WORKERS", 4),
		WarmQueriesFile: env("WARM_QUERIES_FILE", "queries.txt"),
	}
	if c.SearchKey == "" {
		log.Warn().Msg("SEARCH_API_KEY is empty")
	}
	if c.PremiumHardFloor > c.PremiumSoftFloor {
		log.Warn().Float64("hard", c.PremiumHardFloor).Float64("soft", c.PremiumSoftFloor).
			Msg("PREMIUM_HARD_FLOOR above PREMIUM_SOFT_FLOOR; soft warnings will never fire")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not an integer; using default")
	}
	return def
}

func atof(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not a number; using default")
	}
	return def
}

func seconds(k string, def int) time.Duration {
	return time.Duration(atoi(k, def)) * time.Second
}
