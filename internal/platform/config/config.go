package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// Year is the pricing unit: fees are charged per started 365-day year.
	Year = 365 * 24 * time.Hour
	// DefaultMinPeriod is the shortest lease a caller may buy.
	DefaultMinPeriod = 28 * 24 * time.Hour
	// DefaultMaxPeriod is the longest lease a caller may buy in one go.
	DefaultMaxPeriod = 10 * Year
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	LogFormat     string
	LogLevel      string
	// Owner is the initial holder of the administrative capability.
	Owner string
}

// Pricing holds the engine's construction-time defaults.
type Pricing struct {
	BasePrice *big.Int
	MinPeriod time.Duration
	MaxPeriod time.Duration
}

// Resolver configures the deferred lookup gateway.
type Resolver struct {
	// Target is the identity signed responses must be bound to.
	Target     string
	Signer     string
	GatewayURL string
}

// DatabaseConfig selects the Postgres backed stores when URL is set.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxTimeout       time.Duration
}

// RedisConfig configures the off-ledger gateway's address store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

// KafkaConfig enables the Kafka event publisher when Brokers is non-empty.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	ClientID   string
	BufferSize int
}

// Treasury selects where collected fees are pushed.
type Treasury struct {
	// URL of an HTTP push endpoint; empty keeps fees in the in-process treasury.
	URL     string
	Timeout time.Duration
}

// RateLimit caps requests per caller over a sliding window. Zero Requests
// disables limiting.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Gateway configures cmd/gateway.
type Gateway struct {
	Addr        string
	SigningKey  string
	ResponseTTL time.Duration
	Writers     []string
	// RegistryURL is where lease ownership is checked for writes.
	RegistryURL     string
	RegistryTimeout time.Duration
	// Writes carry bearer tokens minted by the registry, so these match
	// the registry's JWT settings.
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	RateLimit     RateLimit
	LogFormat     string
	LogLevel      string
}

// Config is the registry server's full configuration.
type Config struct {
	Server    Server
	Pricing   Pricing
	Resolver  Resolver
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Treasury  Treasury
	RateLimit RateLimit
}

// Load builds the registry configuration from environment variables so main
// stays lean. Development defaults apply when a variable is unset.
func Load() (*Config, error) {
	var p parser

	cfg := &Config{
		Server: Server{
			Addr: env("PHONELEASE_ADDR", ":8080"),
			// Use a default for development - should be overridden in production
			JWTSigningKey: env("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     env("JWT_ISSUER", "phonelease"),
			JWTAudience:   env("JWT_AUDIENCE", "phonelease-api"),
			LogFormat:     env("LOG_FORMAT", "json"),
			LogLevel:      env("LOG_LEVEL", "info"),
			Owner:         os.Getenv("REGISTRY_OWNER"),
		},
		Pricing: Pricing{
			BasePrice: p.bigInt("BASE_PRICE", "10000000000000000"),
			MinPeriod: p.duration("MIN_PERIOD", DefaultMinPeriod),
			MaxPeriod: p.duration("MAX_PERIOD", DefaultMaxPeriod),
		},
		Resolver: Resolver{
			Target:     os.Getenv("RESOLVER_TARGET"),
			Signer:     os.Getenv("RESOLVER_SIGNER"),
			GatewayURL: env("RESOLVER_GATEWAY_URL", "http://localhost:8090"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    p.int("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    p.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: p.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			TxTimeout:       p.duration("DB_TX_TIMEOUT", 5*time.Second),
		},
		Redis: redisFromEnv(&p),
		Kafka: KafkaConfig{
			Brokers:    list(os.Getenv("KAFKA_BROKERS")),
			Topic:      env("KAFKA_TOPIC", "phonelease.events"),
			ClientID:   env("KAFKA_CLIENT_ID", "phonelease"),
			BufferSize: p.int("KAFKA_BUFFER_SIZE", 1024),
		},
		Treasury: Treasury{
			URL:     os.Getenv("TREASURY_URL"),
			Timeout: p.duration("TREASURY_TIMEOUT", 5*time.Second),
		},
		RateLimit: rateLimitFromEnv(&p),
	}
	if p.err != nil {
		return nil, p.err
	}
	if cfg.Pricing.MinPeriod <= 0 || cfg.Pricing.MinPeriod > cfg.Pricing.MaxPeriod {
		return nil, fmt.Errorf("invalid lease period bounds: min %s, max %s", cfg.Pricing.MinPeriod, cfg.Pricing.MaxPeriod)
	}
	if cfg.Pricing.BasePrice.Sign() <= 0 {
		return nil, fmt.Errorf("BASE_PRICE must be positive")
	}
	return cfg, nil
}

// LoadGateway builds the off-ledger gateway configuration.
func LoadGateway() (*Gateway, RedisConfig, error) {
	var p parser
	gw := &Gateway{
		Addr:        env("GATEWAY_ADDR", ":8090"),
		SigningKey:  os.Getenv("GATEWAY_SIGNING_KEY"),
		ResponseTTL: p.duration("GATEWAY_RESPONSE_TTL", 5*time.Minute),
		Writers:     list(os.Getenv("GATEWAY_WRITERS")),

		RegistryURL:     env("GATEWAY_REGISTRY_URL", "http://localhost:8080"),
		RegistryTimeout: p.duration("GATEWAY_REGISTRY_TIMEOUT", 5*time.Second),
		JWTSigningKey:   env("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:       env("JWT_ISSUER", "phonelease"),
		JWTAudience:     env("JWT_AUDIENCE", "phonelease-api"),
		RateLimit:       rateLimitFromEnv(&p),
		LogFormat:       env("LOG_FORMAT", "json"),
		LogLevel:        env("LOG_LEVEL", "info"),
	}
	rc := redisFromEnv(&p)
	if p.err != nil {
		return nil, RedisConfig{}, p.err
	}
	if gw.SigningKey == "" {
		return nil, RedisConfig{}, fmt.Errorf("GATEWAY_SIGNING_KEY is required")
	}
	return gw, rc, nil
}

func rateLimitFromEnv(p *parser) RateLimit {
	return RateLimit{
		Requests: p.int("RATE_LIMIT_REQUESTS", 60),
		Window:   p.duration("RATE_LIMIT_WINDOW", time.Minute),
	}
}

func redisFromEnv(p *parser) RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     p.int("REDIS_POOL_SIZE", 10),
		MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		KeyPrefix:    env("REDIS_KEY_PREFIX", "phonelease:addr:"),
	}
}

// parser records the first malformed variable and keeps defaults for the rest.
type parser struct {
	err error
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) bigInt(key, def string) *big.Int {
	raw := env(key, def)
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		p.fail(key, raw, fmt.Errorf("not a base-10 integer"))
		v, _ = new(big.Int).SetString(def, 10)
	}
	return v
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func list(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
