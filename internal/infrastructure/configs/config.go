package configs

import (
	"fmt"
	"time"

	"github.com/hilthontt/whisperroom/internal/infrastructure/env"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	HTTP        HTTPConfig        `koanf:"http"`
	RateLimiter RateLimiterConfig `koanf:"rateLimiter"`
	RoomStore   RoomStoreConfig   `koanf:"room_store"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Transcriber TranscriberConfig `koanf:"transcriber"`
	WS          WSConfig          `koanf:"ws"`
}

type HTTPConfig struct {
	Host           string        `koanf:"host"`
	Port           uint16        `koanf:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	AllowedHeaders []string      `koanf:"allowed_headers"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

type RateLimiterConfig struct {
	MaxRatePerSecond int           `koanf:"maxRatePerSecond"`
	MaxBurst         int           `koanf:"maxBurst"`
	CacheTTL         time.Duration `koanf:"cacheTTL"`
	SourceHeaderKey  string        `koanf:"sourceHeaderKey"`
}

type RoomStoreConfig struct {
	Capacity      uint          `koanf:"capacity"`
	IdleExpiry    time.Duration `koanf:"idle_expiry"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

type IngestConfig struct {
	MaxAudioBytes int64 `koanf:"max_audio_bytes"`
}

type TranscriberConfig struct {
	Endpoint string        `koanf:"endpoint"`
	Timeout  time.Duration `koanf:"timeout"`
}

type WSConfig struct {
	SendBuffer int `koanf:"send_buffer"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load from YAML file if it exists
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Only return error if file was explicitly provided but failed to load
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Apply defaults and environment variable overrides
	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	// HTTP defaults
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 8080)
	setDefault(k, "http.read_timeout", 10*time.Second)
	setDefault(k, "http.write_timeout", 30*time.Second)
	setDefault(k, "http.allowed_origins", []string{"*"})
	setDefault(k, "http.allowed_headers", []string{"Content-Type", "Authorization"})

	// Rate limiter defaults
	setDefault(k, "rateLimiter.maxRatePerSecond", 10)
	setDefault(k, "rateLimiter.maxBurst", 20)
	setDefault(k, "rateLimiter.cacheTTL", 5*time.Minute)
	setDefault(k, "rateLimiter.sourceHeaderKey", "X-Forwarded-For")

	// Room store defaults
	setDefault(k, "room_store.capacity", 100)
	setDefault(k, "room_store.idle_expiry", 30*time.Minute)
	setDefault(k, "room_store.sweep_interval", time.Minute)

	// Ingest defaults: clips are a few seconds of mono 16kHz audio, so a
	// couple of MB is already generous.
	setDefault(k, "ingest.max_audio_bytes", int64(2<<20))

	// Transcriber defaults
	setDefault(k, "transcriber.endpoint", "http://localhost:8000/API/v1/transcribe")
	setDefault(k, "transcriber.timeout", 30*time.Second)

	// WebSocket defaults
	setDefault(k, "ws.send_buffer", 64)
}

func applyEnvOverrides(k *koanf.Koanf) {
	// HTTP config from env
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if readTimeout := env.GetInt("HTTP_READ_TIMEOUT_SECONDS", 0); readTimeout > 0 {
		k.Set("http.read_timeout", time.Duration(readTimeout)*time.Second)
	}
	if writeTimeout := env.GetInt("HTTP_WRITE_TIMEOUT_SECONDS", 0); writeTimeout > 0 {
		k.Set("http.write_timeout", time.Duration(writeTimeout)*time.Second)
	}
	if origin := env.GetString("CORS_ALLOWED_ORIGIN", ""); origin != "" {
		k.Set("http.allowed_origins", []string{origin})
	}

	// Rate limiter config from env
	if maxRate := env.GetInt("RATE_LIMIT_MAX_RATE_PER_SECOND", 0); maxRate > 0 {
		k.Set("rateLimiter.maxRatePerSecond", maxRate)
	}
	if maxBurst := env.GetInt("RATE_LIMIT_MAX_BURST", 0); maxBurst > 0 {
		k.Set("rateLimiter.maxBurst", maxBurst)
	}

	// Room store config from env
	if capacity := env.GetInt("ROOM_STORE_CAPACITY", 0); capacity > 0 {
		k.Set("room_store.capacity", uint(capacity))
	}
	if idleExpiry := env.GetInt("ROOM_IDLE_EXPIRY_MINUTES", 0); idleExpiry > 0 {
		k.Set("room_store.idle_expiry", time.Duration(idleExpiry)*time.Minute)
	}
	if sweep := env.GetInt("ROOM_SWEEP_INTERVAL_SECONDS", 0); sweep > 0 {
		k.Set("room_store.sweep_interval", time.Duration(sweep)*time.Second)
	}

	// Ingest config from env
	if maxBytes := env.GetInt("MAX_AUDIO_BYTES", 0); maxBytes > 0 {
		k.Set("ingest.max_audio_bytes", int64(maxBytes))
	}

	// Transcriber config from env
	if endpoint := env.GetString("TRANSCRIBER_URL", ""); endpoint != "" {
		k.Set("transcriber.endpoint", endpoint)
	}
	if timeout := env.GetInt("TRANSCRIBER_TIMEOUT_SECONDS", 0); timeout > 0 {
		k.Set("transcriber.timeout", time.Duration(timeout)*time.Second)
	}

	// WebSocket config from env
	if buffer := env.GetInt("WS_SEND_BUFFER", 0); buffer > 0 {
		k.Set("ws.send_buffer", buffer)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value interface{}) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
