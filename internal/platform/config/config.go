package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"actionplan/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	PublicBaseURL string
	LogFormat     string
	LogLevel      string

	DatabaseURL    string
	GatewayTimeout time.Duration

	Redis   RedisConfig
	LockTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	AttachmentDir  string
	MaxUploadBytes int64

	// LayoutFile is an optional YAML file overriding cell positions.
	LayoutFile string
	// StrictLayout rejects workbooks whose label cells do not match.
	StrictLayout bool
	// AllowPartialMetadata stores uploads missing the optional header fields.
	AllowPartialMetadata bool
}

// RedisConfig configures the import lock backend. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

const (
	DefaultMaxUploadBytes = 20 << 20
	DefaultGatewayTimeout = 10 * time.Second
	DefaultLockTTL        = 2 * time.Minute
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	addr := getEnv("ACTIONPLAN_ADDR", ":8080")
	cfg := Server{
		Addr:          addr,
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost"+addr),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:  strings.SplitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "actionplan.events"),
		AttachmentDir: getEnv("ATTACHMENT_DIR", "data/attachments"),
		LayoutFile:    os.Getenv("LAYOUT_FILE"),
	}

	var err error
	if cfg.GatewayTimeout, err = durationEnv("GATEWAY_TIMEOUT", DefaultGatewayTimeout); err != nil {
		return Server{}, err
	}
	if cfg.LockTTL, err = durationEnv("LOCK_TTL", DefaultLockTTL); err != nil {
		return Server{}, err
	}
	if cfg.MaxUploadBytes, err = int64Env("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes); err != nil {
		return Server{}, err
	}
	if cfg.StrictLayout, err = boolEnv("STRICT_LAYOUT"); err != nil {
		return Server{}, err
	}
	if cfg.AllowPartialMetadata, err = boolEnv("ALLOW_PARTIAL_METADATA"); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func int64Env(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid size %q", key, v)
	}
	return n, nil
}

func boolEnv(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}
