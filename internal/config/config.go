package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// CaptureConfig describes the microphone capture backend and the fixed
// transport parameters stamped on every finalized recording.
type CaptureConfig struct {
	Mode       string `yaml:"mode"` // mock, exec
	Command    string `yaml:"command"`
	Codec      string `yaml:"codec"`
	SampleRate int    `yaml:"sample_rate"`
	SegmentMS  int    `yaml:"segment_ms"`
}

// RecognitionConfig configures the remote speech-recognition client.
type RecognitionConfig struct {
	Mode             string `yaml:"mode"` // mock, google, gcloud
	Endpoint         string `yaml:"endpoint"`
	APIKey           string `yaml:"api_key"`
	CredentialsJSON  string `yaml:"credentials_json"`
	Language         string `yaml:"language"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
}

// RefineConfig configures the remote generative-text client.
type RefineConfig struct {
	Mode             string  `yaml:"mode"` // mock, openai, ollama
	Endpoint         string  `yaml:"endpoint"`
	APIKey           string  `yaml:"api_key"`
	Model            string  `yaml:"model"`
	MaxTokens        int     `yaml:"max_tokens"`
	Temperature      float64 `yaml:"temperature"`
	RequestTimeoutMS int     `yaml:"request_timeout_ms"`
}

type DeliveryConfig struct {
	Mode    string `yaml:"mode"` // mock, exec, bus
	Command string `yaml:"command"`
}

type NotifyConfig struct {
	Mode string `yaml:"mode"` // log, bus
}

type SessionStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName  string             `yaml:"runtime_name"`
	Environment  string             `yaml:"environment"`
	HTTP         HTTPConfig         `yaml:"http"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Bus          BusConfig          `yaml:"bus"`
	Capture      CaptureConfig      `yaml:"capture"`
	Recognition  RecognitionConfig  `yaml:"recognition"`
	Refine       RefineConfig       `yaml:"refine"`
	Delivery     DeliveryConfig     `yaml:"delivery"`
	Notify       NotifyConfig       `yaml:"notify"`
	SessionStore SessionStoreConfig `yaml:"session_store"`
}

func Default() Config {
	return Config{
		RuntimeName: "dicta-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8090,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9092",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Capture: CaptureConfig{
			Mode:       "mock",
			Codec:      "WEBM_OPUS",
			SampleRate: 48000,
			SegmentMS:  100,
		},
		Recognition: RecognitionConfig{
			Mode:     "mock",
			Endpoint: "https://speech.googleapis.com",
			Language: "en-US",
		},
		Refine: RefineConfig{
			Mode:        "mock",
			Endpoint:    "http://localhost:11434",
			Model:       "gpt-4o-mini",
			MaxTokens:   512,
			Temperature: 0.2,
		},
		Delivery: DeliveryConfig{
			Mode: "bus",
		},
		Notify: NotifyConfig{
			Mode: "log",
		},
		SessionStore: SessionStoreConfig{
			Path:          "./data/dicta-sessions.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "DICTA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "DICTA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "DICTA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "DICTA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "DICTA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "DICTA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "DICTA_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "DICTA_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "DICTA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "DICTA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "DICTA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "DICTA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "DICTA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "DICTA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "DICTA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "DICTA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Capture.Mode, "DICTA_CAPTURE_MODE")
	overrideString(&cfg.Capture.Command, "DICTA_CAPTURE_COMMAND")
	overrideString(&cfg.Capture.Codec, "DICTA_CAPTURE_CODEC")
	overrideInt(&cfg.Capture.SampleRate, "DICTA_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.SegmentMS, "DICTA_CAPTURE_SEGMENT_MS")
	overrideString(&cfg.Recognition.Mode, "DICTA_RECOGNITION_MODE")
	overrideString(&cfg.Recognition.Endpoint, "DICTA_RECOGNITION_ENDPOINT")
	overrideString(&cfg.Recognition.APIKey, "DICTA_RECOGNITION_API_KEY")
	overrideString(&cfg.Recognition.CredentialsJSON, "DICTA_RECOGNITION_CREDENTIALS_JSON")
	overrideString(&cfg.Recognition.Language, "DICTA_RECOGNITION_LANGUAGE")
	overrideInt(&cfg.Recognition.RequestTimeoutMS, "DICTA_RECOGNITION_REQUEST_TIMEOUT_MS")
	overrideString(&cfg.Refine.Mode, "DICTA_REFINE_MODE")
	overrideString(&cfg.Refine.Endpoint, "DICTA_REFINE_ENDPOINT")
	overrideString(&cfg.Refine.APIKey, "DICTA_REFINE_API_KEY")
	overrideString(&cfg.Refine.Model, "DICTA_REFINE_MODEL")
	overrideInt(&cfg.Refine.MaxTokens, "DICTA_REFINE_MAX_TOKENS")
	overrideFloat(&cfg.Refine.Temperature, "DICTA_REFINE_TEMPERATURE")
	overrideInt(&cfg.Refine.RequestTimeoutMS, "DICTA_REFINE_REQUEST_TIMEOUT_MS")
	overrideString(&cfg.Delivery.Mode, "DICTA_DELIVERY_MODE")
	overrideString(&cfg.Delivery.Command, "DICTA_DELIVERY_COMMAND")
	overrideString(&cfg.Notify.Mode, "DICTA_NOTIFY_MODE")
	overrideString(&cfg.SessionStore.Path, "DICTA_SESSION_STORE_PATH")
	overrideString(&cfg.SessionStore.RetentionMode, "DICTA_SESSION_STORE_RETENTION_MODE")
	overrideInt(&cfg.SessionStore.RetentionDays, "DICTA_SESSION_STORE_RETENTION_DAYS")
	overrideInt(&cfg.SessionStore.MaxSessions, "DICTA_SESSION_STORE_MAX_SESSIONS")
	overrideBool(&cfg.SessionStore.VacuumOnStart, "DICTA_SESSION_STORE_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Capture.Mode {
	case "mock", "exec":
	default:
		return errors.New("capture.mode must be one of mock|exec")
	}
	if cfg.Capture.Mode == "exec" && cfg.Capture.Command == "" {
		return errors.New("capture.command must be set when mode=exec")
	}
	if cfg.Capture.Codec == "" {
		return errors.New("capture.codec must not be empty")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.SegmentMS <= 0 {
		return errors.New("capture.segment_ms must be positive")
	}
	switch cfg.Recognition.Mode {
	case "mock", "google", "gcloud":
	default:
		return errors.New("recognition.mode must be one of mock|google|gcloud")
	}
	if cfg.Recognition.Mode == "google" && cfg.Recognition.Endpoint == "" {
		return errors.New("recognition.endpoint must be set when mode=google")
	}
	if cfg.Recognition.Language == "" {
		return errors.New("recognition.language must not be empty")
	}
	if cfg.Recognition.RequestTimeoutMS < 0 {
		return errors.New("recognition.request_timeout_ms must be >= 0")
	}
	switch cfg.Refine.Mode {
	case "mock", "openai", "ollama":
	default:
		return errors.New("refine.mode must be one of mock|openai|ollama")
	}
	if cfg.Refine.Mode == "ollama" && cfg.Refine.Endpoint == "" {
		return errors.New("refine.endpoint must be set when mode=ollama")
	}
	if cfg.Refine.MaxTokens < 0 {
		return errors.New("refine.max_tokens must be >= 0")
	}
	if cfg.Refine.RequestTimeoutMS < 0 {
		return errors.New("refine.request_timeout_ms must be >= 0")
	}
	switch cfg.Delivery.Mode {
	case "mock", "exec", "bus":
	default:
		return errors.New("delivery.mode must be one of mock|exec|bus")
	}
	if cfg.Delivery.Mode == "exec" && cfg.Delivery.Command == "" {
		return errors.New("delivery.command must be set when mode=exec")
	}
	switch cfg.Notify.Mode {
	case "log", "bus":
	default:
		return errors.New("notify.mode must be one of log|bus")
	}
	if cfg.SessionStore.RetentionMode != "ephemeral" && cfg.SessionStore.Path == "" {
		return errors.New("session_store.path must not be empty")
	}
	switch cfg.SessionStore.RetentionMode {
	case "ephemeral", "session", "persistent":
	default:
		return errors.New("session_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.SessionStore.RetentionDays < 0 {
		return errors.New("session_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
