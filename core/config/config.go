package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OTel       OTelConfig
	Stream     StreamConfig
	Platform   PlatformConfig
	Chat       ChatConfig
	Natty      NattyConfig
	CopyPastor CopyPastorConfig
	MetaSmoke  MetaSmokeConfig
	GenericBot GenericBotConfig
	Policy     PolicyConfig
	Env        string
	Port       string
	RedisURL   string
	Username   string
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// StreamConfig describes the Redis stream that carries observed network events.
type StreamConfig struct {
	Name      string
	Group     string
	Consumer  string
	DLQStream   string
	BatchSize   int64
	Block       time.Duration
	StaleIdle   time.Duration
	TraceHeader string
}

type PlatformConfig struct {
	SiteURL    string // e.g. "https://stackoverflow.com"
	FKey       string
	IsMainSite bool
}

type ChatConfig struct {
	BaseURL string
	FKey    string
	RoomID  int
	UserID  int64
}

type NattyConfig struct {
	FeedbackURL string
	Disabled    bool
}

type CopyPastorConfig struct {
	ServerURL string
	Key       string
	Disabled  bool
}

type MetaSmokeConfig struct {
	BaseURL string
	AppKey  string
	Filter  string
}

type GenericBotConfig struct {
	URL      string
	Disabled bool
}

// PolicyConfig holds the tunable thresholds used by the coordinator.
type PolicyConfig struct {
	LowQualityMaxScore int
	LowQualityMaxAge   time.Duration
	ProbeAttempts      int
	NattyMaxAnswerAge  time.Duration
	NattyMinAfterQ     time.Duration
}

// Load loads configuration from environment variables.
// In development it also reads a local .env file when present.
func Load() (Config, error) {
	if getEnv("ADVFLAG_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:      getEnv("ADVFLAG_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		Username: getEnv("ADVFLAG_USERNAME", ""),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "advflag"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Stream: StreamConfig{
			Name:        getEnv("REDIS_STREAM", "advflag_network_events"),
			Group:       getEnv("REDIS_CONSUMER_GROUP", "advflag_group"),
			Consumer:    getEnv("REDIS_CONSUMER_NAME", "advflag"),
			DLQStream:   getEnv("REDIS_DLQ_STREAM", "advflag_network_events_dlq"),
			BatchSize:   int64(getEnvInt("REDIS_BATCH_SIZE", 20)),
			Block:       getEnvDuration("REDIS_BLOCK", 5*time.Second),
			StaleIdle:   getEnvDuration("REDIS_STALE_IDLE", 2*time.Minute),
			TraceHeader: getEnv("TRACE_HEADER_NAME", "X-Trace-Id"),
		},
		Platform: PlatformConfig{
			SiteURL:    getEnv("PLATFORM_SITE_URL", "https://stackoverflow.com"),
			FKey:       getEnv("PLATFORM_FKEY", ""),
			IsMainSite: getEnvBool("PLATFORM_IS_MAIN_SITE", true),
		},
		Chat: ChatConfig{
			BaseURL: getEnv("CHAT_BASE_URL", "https://chat.stackoverflow.com"),
			FKey:    getEnv("CHAT_FKEY", ""),
			RoomID:  getEnvInt("CHAT_ROOM_ID", 111347),
			UserID:  int64(getEnvInt("CHAT_USER_ID", 0)),
		},
		Natty: NattyConfig{
			FeedbackURL: getEnv("NATTY_FEEDBACK_URL", "https://logs.sobotics.org/napi/api/feedback"),
			Disabled:    getEnvBool("NATTY_DISABLED", false),
		},
		CopyPastor: CopyPastorConfig{
			ServerURL: getEnv("COPYPASTOR_URL", "https://copypastor.sobotics.org"),
			Key:       getEnv("COPYPASTOR_KEY", ""),
			Disabled:  getEnvBool("COPYPASTOR_DISABLED", false),
		},
		MetaSmoke: MetaSmokeConfig{
			BaseURL: getEnv("METASMOKE_URL", "https://metasmoke.erwaysoftware.com"),
			AppKey:  getEnv("METASMOKE_KEY", ""),
			Filter:  getEnv("METASMOKE_FILTER", "GGJFNNKKJFHFKJFLJLGIJMFIHNNJNINJ"),
		},
		GenericBot: GenericBotConfig{
			URL:      getEnv("GENERICBOT_URL", "https://so.floern.com/api/trackpost.php"),
			Disabled: getEnvBool("GENERICBOT_DISABLED", false),
		},
		Policy: PolicyConfig{
			LowQualityMaxScore: getEnvInt("LOW_QUALITY_MAX_SCORE", 0),
			LowQualityMaxAge:   getEnvDuration("LOW_QUALITY_MAX_AGE", 24*time.Hour),
			ProbeAttempts:      getEnvInt("STATUS_PROBE_ATTEMPTS", 3),
			NattyMaxAnswerAge:  getEnvDuration("NATTY_MAX_ANSWER_AGE", 30*24*time.Hour),
			NattyMinAfterQ:     getEnvDuration("NATTY_MIN_AFTER_QUESTION", 30*24*time.Hour),
		},
	}

	if cfg.Platform.FKey == "" {
		return Config{}, fmt.Errorf("PLATFORM_FKEY is required")
	}
	if cfg.Policy.ProbeAttempts < 1 {
		return Config{}, fmt.Errorf("STATUS_PROBE_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c NattyConfig) Enabled() bool {
	return !c.Disabled && c.FeedbackURL != ""
}

func (c CopyPastorConfig) Enabled() bool {
	return !c.Disabled && c.ServerURL != ""
}

func (c MetaSmokeConfig) Enabled() bool {
	return c.BaseURL != "" && c.AppKey != ""
}

func (c GenericBotConfig) Enabled() bool {
	return !c.Disabled && c.URL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
