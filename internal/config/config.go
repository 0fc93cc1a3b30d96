// Package config loads service configuration from the environment.
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
	Recognition   RecognitionConfig
	Commands      CommandsConfig
	Kafka         KafkaConfig
	Notify        NotifyConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the service and its listeners.
type ServiceConfig struct {
	Principal string
	GRPCPort  string
	HTTPPort  string

	// AllowedOrigins lists browser origins allowed to open the WebSocket
	// feed; same-origin pages are always allowed. "*" allows any origin.
	AllowedOrigins []string
}

// RecognitionConfig selects and tunes the speech recognition provider.
type RecognitionConfig struct {
	Provider       string // mock, push, google or none
	LanguageCode   string
	SampleRateHz   int32
	InterimResults bool
	AudioEncoding  string
	AudioPath      string
	MockInterval   time.Duration
}

// CommandsConfig points at an optional YAML command table.
type CommandsConfig struct {
	File string
}

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicStatus  string
	TopicCommand string
	Principal    string
}

// NotifyConfig controls user-facing notifications.
type NotifyConfig struct {
	Desktop bool
	Locale  string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// Load reads the configuration from environment variables, falling back to
// defaults for unset or unparsable values.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-voice-commands")

	return &Config{
		Service: ServiceConfig{
			Principal: principal,
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),

			AllowedOrigins: envOrDefaultList("HTTP_ALLOWED_ORIGINS", nil),
		},
		Recognition: RecognitionConfig{
			Provider:       envOrDefault("RECOGNIZER_PROVIDER", "mock"),
			LanguageCode:   envOrDefault("RECOGNIZER_LANGUAGE_CODE", "es-ES"),
			SampleRateHz:   int32(envOrDefaultInt("RECOGNIZER_SAMPLE_RATE_HZ", 16000)),
			InterimResults: envOrDefaultBool("RECOGNIZER_INTERIM_RESULTS", true),
			AudioEncoding:  envOrDefault("RECOGNIZER_AUDIO_ENCODING", "LINEAR16"),
			AudioPath:      os.Getenv("RECOGNIZER_AUDIO_PATH"),
			MockInterval:   envOrDefaultDuration("MOCK_INTERVAL", 750*time.Millisecond),
		},
		Commands: CommandsConfig{
			File: os.Getenv("COMMANDS_FILE"),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      envOrDefaultList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicStatus:  envOrDefault("KAFKA_TOPIC_STATUS", "voice.command.status"),
			TopicCommand: envOrDefault("KAFKA_TOPIC_COMMAND", "voice.command.detected"),
			Principal:    envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Notify: NotifyConfig{
			Desktop: envOrDefaultBool("NOTIFY_DESKTOP", false),
			Locale:  envOrDefault("NOTIFY_LOCALE", "es"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
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
	b, err := strconv.ParseBool(v)
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
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
