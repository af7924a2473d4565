package config

import (
	"os"
	"strconv"
	"time"

	"agegate/pkg/domain"
)

// ProviderEndpoints captures the OAuth surface of one identity provider.
// Both surfaces run the same PKCE flow; only these values differ.
type ProviderEndpoints struct {
	AuthorizeURL string
	TokenURL     string
	UserinfoURL  string
	ClientID     string
	RedirectURI  string
	Scopes       []string
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds Postgres connection configuration.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Server captures process-wide configuration. Secrets are read once at start
// and immutable afterwards.
type Server struct {
	Addr string

	Database DatabaseConfig
	Redis    RedisConfig

	// KafkaBrokers is a comma-separated broker list. Empty disables the
	// audit outbox worker (events still land in the outbox table).
	KafkaBrokers string

	// RootSecret seeds per-widget verification token keys via HKDF.
	RootSecret string

	// Postback verification settings.
	PostbackSecret  string
	PostbackIssuer  string
	ConsentClientID string
	// PostbackJWKSPath points at the pre-provisioned JWKS file. Keys are
	// pinned at startup; no remote fetch happens at request time.
	PostbackJWKSPath string

	Providers map[domain.Provider]ProviderEndpoints

	// PendingSessionTTL bounds the window between initiate and callback. It
	// matches the provider's authorization code validity: minutes, not hours.
	PendingSessionTTL time.Duration
	// SessionTTL bounds the durable session record before the sweeper
	// expires it.
	SessionTTL time.Duration
	// TokenTTL is the verification token lifetime.
	TokenTTL time.Duration
	// LinkTTL bounds how long a guardian consent link may stay unresolved.
	LinkTTL time.Duration

	// AdultAge is the age threshold in years at or above which a subject
	// verifies as an adult.
	AdultAge int

	// ExchangeTimeout bounds every outbound call to a provider.
	ExchangeTimeout time.Duration

	// SweepInterval is how often the TTL sweeper runs.
	SweepInterval time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr: getEnv("AGEGATE_ADDR", ":8080"),

		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		KafkaBrokers: os.Getenv("KAFKA_BROKERS"),

		RootSecret: getEnv("ROOT_SECRET", "dev-secret-key-change-in-production"),

		PostbackSecret:   os.Getenv("POSTBACK_SHARED_SECRET"),
		PostbackIssuer:   os.Getenv("POSTBACK_ISSUER"),
		ConsentClientID:  os.Getenv("CONSENT_CLIENT_ID"),
		PostbackJWKSPath: os.Getenv("POSTBACK_JWKS_PATH"),

		Providers: map[domain.Provider]ProviderEndpoints{
			domain.ProviderDirect: {
				AuthorizeURL: os.Getenv("DIRECT_AUTHORIZE_URL"),
				TokenURL:     os.Getenv("DIRECT_TOKEN_URL"),
				UserinfoURL:  os.Getenv("DIRECT_USERINFO_URL"),
				ClientID:     os.Getenv("DIRECT_CLIENT_ID"),
				RedirectURI:  os.Getenv("DIRECT_REDIRECT_URI"),
				Scopes:       []string{"openid", "profile", "birthdate"},
			},
			domain.ProviderBroker: {
				AuthorizeURL: os.Getenv("BROKER_AUTHORIZE_URL"),
				TokenURL:     os.Getenv("BROKER_TOKEN_URL"),
				UserinfoURL:  os.Getenv("BROKER_USERINFO_URL"),
				ClientID:     os.Getenv("BROKER_CLIENT_ID"),
				RedirectURI:  os.Getenv("BROKER_REDIRECT_URI"),
				Scopes:       []string{"openid", "age_verification"},
			},
		},

		PendingSessionTTL: getEnvDuration("PENDING_SESSION_TTL", 10*time.Minute),
		SessionTTL:        getEnvDuration("SESSION_TTL", 1*time.Hour),
		TokenTTL:          getEnvDuration("TOKEN_TTL", 15*time.Minute),
		LinkTTL:           getEnvDuration("LINK_TTL", 24*time.Hour),

		AdultAge: getEnvInt("ADULT_AGE", 18),

		ExchangeTimeout: getEnvDuration("EXCHANGE_TIMEOUT", 10*time.Second),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", 1*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
