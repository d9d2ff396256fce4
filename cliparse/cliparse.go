package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	AdminKeySalt string

	// Optional realtime feed and ledger backends
	RedisURL       string
	LedgerRedisURL string

	SyncInterval    time.Duration
	SyncCooldown    time.Duration
	TombstoneTTL    time.Duration
	Debounce        time.Duration
	ActiveTTL       time.Duration
	MaxCoinsPerPoll int64

	LogFormat string
}

// Defaults returns the configuration used when neither a flag nor an env
// variable sets a value.
func Defaults() Config {
	return Config{
		Port:            3318,
		DatabaseType:    "sqlite",
		SyncInterval:    30 * time.Second,
		SyncCooldown:    10 * time.Second,
		TombstoneTTL:    60 * time.Second,
		Debounce:        500 * time.Millisecond,
		ActiveTTL:       5 * time.Second,
		MaxCoinsPerPoll: 100,
		LogFormat:       "text",
	}
}

// LoadEnv reads KEY=value pairs from the given files (".env" when none are
// named) into the environment. Missing files are ignored and variables
// already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ParseFlags validates flags and fills the rest from env and defaults
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("coinpoll", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.RedisURL, "redis", "", "Redis URL for realtime changes")
	fs.StringVar(&cfg.LedgerRedisURL, "ledger-redis", "", "Redis URL for the settlement ledger")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKeySalt, "admin-salt", "", "Admin key salt (prefer env)")

	// Sync tuning
	fs.DurationVar(&cfg.SyncInterval, "sync-interval", 0, "Periodic reconciliation interval")
	fs.DurationVar(&cfg.SyncCooldown, "sync-cooldown", 0, "Quiet period after a local write")
	fs.DurationVar(&cfg.TombstoneTTL, "tombstone-ttl", 0, "How long deleted polls stay suppressed")
	fs.DurationVar(&cfg.Debounce, "debounce", 0, "Realtime event debounce window")
	fs.Int64Var(&cfg.MaxCoinsPerPoll, "max-coins", 0, "Coin cap per voter per poll")

	fs.StringVar(&cfg.LogFormat, "log-format", "", "Log format (text or json)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	def := Defaults()
	cfg.ActiveTTL = def.ActiveTTL

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = def.Port
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = def.DatabaseType
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}
	if cfg.LedgerRedisURL == "" {
		cfg.LedgerRedisURL = os.Getenv("LEDGER_REDIS_URL")
	}

	durations := []struct {
		dst *time.Duration
		env string
		def time.Duration
	}{
		{&cfg.SyncInterval, "SYNC_INTERVAL", def.SyncInterval},
		{&cfg.SyncCooldown, "SYNC_COOLDOWN", def.SyncCooldown},
		{&cfg.TombstoneTTL, "TOMBSTONE_TTL", def.TombstoneTTL},
		{&cfg.Debounce, "DEBOUNCE", def.Debounce},
	}
	for _, d := range durations {
		if *d.dst != 0 {
			continue
		}
		if s := os.Getenv(d.env); s != "" {
			v, err := time.ParseDuration(s)
			if err != nil || v <= 0 {
				return Config{}, fmt.Errorf("invalid %s env variable", d.env)
			}
			*d.dst = v
		} else {
			*d.dst = d.def
		}
	}

	if cfg.MaxCoinsPerPoll == 0 {
		if s := os.Getenv("MAX_COINS_PER_POLL"); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil || n <= 0 {
				return Config{}, errors.New("invalid MAX_COINS_PER_POLL env variable")
			}
			cfg.MaxCoinsPerPoll = n
		} else {
			cfg.MaxCoinsPerPoll = def.MaxCoinsPerPoll
		}
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = os.Getenv("LOG_FORMAT")
		if cfg.LogFormat == "" {
			cfg.LogFormat = def.LogFormat
		}
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	// Secrets - MUST be provided
	if cfg.AdminKeySalt == "" {
		cfg.AdminKeySalt = os.Getenv("ADMIN_KEY_SALT")
	}
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}

	return cfg, nil
}
