// Package config loads service configuration from environment variables.
// Invalid values fall back to defaults rather than failing startup.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig
	ASR           ASRConfig
	Translation   TranslationConfig
	Extraction    ExtractionConfig
	Chunking      ChunkingConfig
	Kafka         KafkaConfig
	Store         StoreConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds identity and listener settings.
type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	MetricsPort string
}

// ASRConfig selects and configures the speech stream source.
type ASRConfig struct {
	Provider     string // "ws" or "mock"
	WSURL        string
	APIKey       string
	LanguageCode string
}

// TranslationConfig configures the optional per-segment translation pass.
type TranslationConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

// ExtractionConfig configures the field-extraction API client.
type ExtractionConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ChunkingConfig controls when committed segments are handed off for
// extraction.
type ChunkingConfig struct {
	SegmentsPerChunk int
}

// KafkaConfig configures the event publisher.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicTranscript string
	TopicAutofill   string
	Principal       string
}

// StoreConfig configures session persistence.
type StoreConfig struct {
	Path string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel string
}

// Load reads configuration from the environment.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-clinical-scribe")

	cfg := &Config{
		Service: ServiceConfig{
			Principal:   principal,
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
		ASR: ASRConfig{
			Provider:     envOrDefault("ASR_PROVIDER", "mock"),
			WSURL:        envOrDefault("ASR_WS_URL", ""),
			APIKey:       envOrDefault("ASR_API_KEY", ""),
			LanguageCode: envOrDefault("ASR_LANGUAGE_CODE", "en-US"),
		},
		Translation: TranslationConfig{
			Enabled: envOrDefaultBool("TRANSLATION_ENABLED", false),
			BaseURL: envOrDefault("TRANSLATION_BASE_URL", ""),
			Timeout: envOrDefaultDuration("TRANSLATION_TIMEOUT", 5*time.Second),
		},
		Extraction: ExtractionConfig{
			BaseURL: envOrDefault("EXTRACTION_BASE_URL", ""),
			Timeout: envOrDefaultDuration("EXTRACTION_TIMEOUT", 30*time.Second),
		},
		Chunking: ChunkingConfig{
			SegmentsPerChunk: envOrDefaultInt("CHUNK_SEGMENTS", 4),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         envOrDefaultList("KAFKA_BROKERS", nil),
			TopicTranscript: envOrDefault("KAFKA_TOPIC_TRANSCRIPT", "clinical.transcript.committed"),
			TopicAutofill:   envOrDefault("KAFKA_TOPIC_AUTOFILL", "clinical.autofill.updates"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Store: StoreConfig{
			Path: envOrDefault("STORE_PATH", "scribe.db"),
		},
		Observability: ObservabilityConfig{
			LogLevel: envOrDefault("LOG_LEVEL", "info"),
		},
	}

	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
