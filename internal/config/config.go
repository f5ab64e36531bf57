package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend kinds.
const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config aggregates runtime configuration.
type Config struct {
	App       AppConfig
	Backend   BackendConfig
	Rest      RestConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	DevServer DevServerConfig
}

// AppConfig identifies the running binary.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// BackendConfig selects and shapes the ticket store.
type BackendConfig struct {
	Kind              string
	TicketsTable      string
	EventsTable       string
	PageSize          int
	TechnicianSources []string
}

// RestConfig points at a PostgREST/GoTrue project.
type RestConfig struct {
	URL            string
	AnonKey        string
	TimeoutSeconds int
	RetryCount     int
	JWTSecret      string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. Preferences stay in memory when
// Redis is disabled.
type RedisConfig struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior. Format is json or console.
type LoggerConfig struct {
	Level  string
	Output string
	Format string
}

// AuthConfig defines how the dev backend issues credentials.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// DevServerConfig controls the local PostgREST/GoTrue stand-in. With
// AutoConfirm, signup returns a session instead of waiting for email
// confirmation.
type DevServerConfig struct {
	Host                  string
	Port                  string
	TicketsScheme         string
	RequestTimeoutSeconds int
	AnonKey               string
	AutoConfirm           bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	restURL := strings.TrimRight(os.Getenv("TICKETDESK_REST_URL"), "/")
	postgresDSN := os.Getenv("POSTGRES_DSN")

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "ticketdesk"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Backend: BackendConfig{
			Kind:              strings.ToLower(getEnv("TICKETDESK_BACKEND", defaultBackend(restURL, postgresDSN))),
			TicketsTable:      getEnv("TICKETDESK_TICKETS_TABLE", "tickets"),
			EventsTable:       getEnv("TICKETDESK_EVENTS_TABLE", "ticket_events"),
			PageSize:          getEnvAsInt("TICKETDESK_PAGE_SIZE", 20),
			TechnicianSources: getEnvAsList("TICKETDESK_TECHNICIAN_SOURCES", []string{"technicians", "users", "profiles"}),
		},
		Rest: RestConfig{
			URL:            restURL,
			AnonKey:        os.Getenv("TICKETDESK_REST_ANON_KEY"),
			TimeoutSeconds: getEnvAsInt("TICKETDESK_REST_TIMEOUT_SECONDS", 15),
			RetryCount:     getEnvAsInt("TICKETDESK_REST_RETRY_COUNT", 0),
			JWTSecret:      os.Getenv("TICKETDESK_REST_JWT_SECRET"),
		},
		Postgres: PostgresConfig{
			DSN:            postgresDSN,
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", false),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Enabled:   getEnvAsBool("REDIS_ENABLED", false),
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "ticketdesk"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "stderr"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		DevServer: DevServerConfig{
			Host:                  getEnv("DEVSERVER_HOST", "127.0.0.1"),
			Port:                  getEnv("DEVSERVER_PORT", "54321"),
			TicketsScheme:         strings.ToUpper(getEnv("DEVSERVER_TICKETS_SCHEME", "A")),
			RequestTimeoutSeconds: getEnvAsInt("DEVSERVER_REQUEST_TIMEOUT_SECONDS", 10),
			AnonKey:               getEnv("DEVSERVER_ANON_KEY", "dev-anon-key"),
			AutoConfirm:           getEnvAsBool("DEVSERVER_AUTOCONFIRM", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the wiring cannot honor.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case BackendREST:
		if c.Rest.URL == "" {
			return fmt.Errorf("TICKETDESK_BACKEND=rest requires TICKETDESK_REST_URL")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("TICKETDESK_BACKEND=postgres requires POSTGRES_DSN")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown TICKETDESK_BACKEND %q", c.Backend.Kind)
	}
	if c.Backend.PageSize <= 0 {
		return fmt.Errorf("TICKETDESK_PAGE_SIZE must be positive, got %d", c.Backend.PageSize)
	}
	if c.DevServer.TicketsScheme != "A" && c.DevServer.TicketsScheme != "B" {
		return fmt.Errorf("DEVSERVER_TICKETS_SCHEME must be A or B, got %q", c.DevServer.TicketsScheme)
	}
	return nil
}

// Offline reports whether no remote backend is configured.
func (c *Config) Offline() bool {
	return c.Backend.Kind == BackendMemory
}

// Timeout returns the REST client timeout.
func (r RestConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Addr returns the dev server bind address.
func (d DevServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", d.Host, d.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (d DevServerConfig) RequestTimeout() time.Duration {
	if d.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(d.RequestTimeoutSeconds) * time.Second
}

func defaultBackend(restURL, postgresDSN string) string {
	switch {
	case restURL != "":
		return BackendREST
	case postgresDSN != "":
		return BackendPostgres
	}
	return BackendMemory
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
