package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Buffer      BufferConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
	Game        GameConfig
	Push        PushConfig
	Relay       RelayConfig
}

type HTTPConfig struct {
	Host          string
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxConn       int
	EnablePprof   bool
	EnableMetrics bool
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

type BufferConfig struct {
	Path           string
	MaxSize        int
	RetentionHours int
	SyncInterval   time.Duration
	MaxRetry       int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// GameConfig tunes the session and the store.
type GameConfig struct {
	TickInterval    time.Duration
	IdleTimeout     time.Duration
	RevealDelay     time.Duration
	TimeSaveEvery   int
	QuestGoal       int
	TickDuration    time.Duration
	DetailCacheSize int
	// TemplatePath seeds the template slot on first boot.
	TemplatePath string
	// PublicURL is where players open the game; the controller link is
	// derived from it.
	PublicURL string
	CacheTTL  time.Duration
}

// PushConfig points the server at the relay. An empty URL disables the push
// channel.
type PushConfig struct {
	URL         string
	DialTimeout time.Duration
}

type RelayConfig struct {
	Host    string
	Port    string
	Channel string
	// UseRedis shares rebroadcasts between relay instances.
	UseRedis bool
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "algorithm"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:          getString("SERVER_HOST", "0.0.0.0"),
			Port:          getString("SERVER_PORT", "8080"),
			ReadTimeout:   getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:   getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:       getInt("SERVER_MAX_CONN", 0),
			EnablePprof:   getBool("SERVER_ENABLE_PPROF", false),
			EnableMetrics: getBool("SERVER_ENABLE_METRICS", false),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "algorithm"),
			User:            getString("DB_USER", "algorithm"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:   os.Getenv("JWT_SECRET"),
			Issuer:   getString("JWT_ISSUER", "algorithm"),
			TokenTTL: getDuration("CONTROLLER_TOKEN_TTL", 12*time.Hour),
		},
		Buffer: BufferConfig{
			Path:           getString("BOLTDB_PATH", "./data/buffer.db"),
			MaxSize:        getInt("BUFFER_MAX_SIZE", 1_000_000),
			RetentionHours: getInt("BUFFER_RETENTION_HOURS", 24),
			SyncInterval:   getDuration("SYNC_INTERVAL_SECONDS", 30*time.Second),
			MaxRetry:       getInt("MAX_RETRY_ATTEMPTS", 3),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
		Game: GameConfig{
			TickInterval:    getDuration("GAME_TICK_INTERVAL", time.Second),
			IdleTimeout:     getDuration("GAME_IDLE_TIMEOUT", 5*time.Minute),
			RevealDelay:     getDuration("GAME_REVEAL_DELAY", 3*time.Second),
			TimeSaveEvery:   getInt("GAME_TIME_SAVE_EVERY", 10),
			QuestGoal:       getInt("GAME_QUEST_GOAL", 3),
			TickDuration:    getDuration("GAME_TICK_DURATION", time.Minute),
			DetailCacheSize: getInt("GAME_DETAIL_CACHE_SIZE", 256),
			TemplatePath:    getString("GAME_TEMPLATE_PATH", "./assets/template.json"),
			PublicURL:       getString("GAME_PUBLIC_URL", "http://localhost:4200"),
			CacheTTL:        getDuration("GAME_CACHE_TTL", time.Hour),
		},
		Push: PushConfig{
			URL:         os.Getenv("PUSH_URL"),
			DialTimeout: getDuration("PUSH_DIAL_TIMEOUT", 5*time.Second),
		},
		Relay: RelayConfig{
			Host:     getString("RELAY_HOST", "0.0.0.0"),
			Port:     getString("RELAY_PORT", "8888"),
			Channel:  getString("RELAY_CHANNEL", "algorithm:game"),
			UseRedis: getBool("RELAY_USE_REDIS", false),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}

// RelayAddress returns the listen address of the synchronizator.
func (c *Config) RelayAddress() string {
	return fmt.Sprintf("%s:%s", c.Relay.Host, c.Relay.Port)
}

// ControllerURL is the page a second device opens to take control.
func (c *Config) ControllerURL() string {
	if c.Game.PublicURL == "" {
		return ""
	}
	return strings.TrimRight(c.Game.PublicURL, "/") + "/controller"
}
