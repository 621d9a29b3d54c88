package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Explorer  ExplorerConfig  `mapstructure:"explorer"`
	POI       POIConfig       `mapstructure:"poi"`
	AMap      AMapConfig      `mapstructure:"amap"`
	LLM       LLMConfig       `mapstructure:"llm"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Audio     AudioConfig     `mapstructure:"audio"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// ExplorerConfig tunes the per-session explorer.
type ExplorerConfig struct {
	Debounce      time.Duration `mapstructure:"debounce"`
	DefaultLat    float64       `mapstructure:"default_lat"`
	DefaultLon    float64       `mapstructure:"default_lon"`
	DefaultZoom   float64       `mapstructure:"default_zoom"`
	CityZoom      float64       `mapstructure:"city_zoom"`
	MinRadius     float64       `mapstructure:"min_radius"`
	MaxRadius     float64       `mapstructure:"max_radius"`
	RadiusFactor  float64       `mapstructure:"radius_factor"`
	MaxPOIs       int           `mapstructure:"max_pois"`
	VoiceID       string        `mapstructure:"voice_id"`
	FallbackText  string        `mapstructure:"fallback_text"`
	OverlayPrompt string        `mapstructure:"overlay_prompt"`
}

// POIConfig selects where POIs and places come from.
type POIConfig struct {
	Source   string `mapstructure:"source"` // amap | postgis
	CacheTTL int    `mapstructure:"cache_ttl"`
}

type AMapConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Key      string        `mapstructure:"key"`
	POITypes string        `mapstructure:"poi_types"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LLMConfig selects and tunes the explanation generator.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // gemini | openai
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
	CacheTTL    int     `mapstructure:"cache_ttl"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	ChatModel  string `mapstructure:"chat_model"`
	TTSModel   string `mapstructure:"tts_model"`
	ImageModel string `mapstructure:"image_model"`
	ImageSize  string `mapstructure:"image_size"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// AudioConfig controls synthesized audio storage and segmentation.
type AudioConfig struct {
	PublicBaseURL   string `mapstructure:"public_base_url"`
	TTL             int    `mapstructure:"ttl"`
	SegmentMaxRunes int    `mapstructure:"segment_max_runes"`
}

// load reads configuration from file and environment variables.
func load(service string, validate func(*Config) error) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "poiguide")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "poiguide")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)

	v.SetDefault("explorer.debounce", 500*time.Millisecond)
	v.SetDefault("explorer.default_lat", 39.9042)
	v.SetDefault("explorer.default_lon", 116.4038)
	v.SetDefault("explorer.default_zoom", 15)
	v.SetDefault("explorer.city_zoom", 12)
	v.SetDefault("explorer.min_radius", 200)
	v.SetDefault("explorer.max_radius", 50000)
	v.SetDefault("explorer.radius_factor", 15000)
	v.SetDefault("explorer.max_pois", 25)
	v.SetDefault("explorer.voice_id", "alloy")
	v.SetDefault("explorer.fallback_text", "Sorry, no explanation is available for this place right now.")
	v.SetDefault("explorer.overlay_prompt", "hand-painted watercolor tourist map")

	v.SetDefault("poi.source", "amap")
	v.SetDefault("poi.cache_ttl", 300)
	v.SetDefault("amap.base_url", "https://restapi.amap.com")
	v.SetDefault("amap.poi_types", "110000")
	v.SetDefault("amap.timeout", 5*time.Second)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.cache_ttl", 86400)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.tts_model", "tts-1")
	v.SetDefault("openai.image_model", "dall-e-2")
	v.SetDefault("openai.image_size", "1024x1024")
	v.SetDefault("gemini.model", "gemini-2.0-flash")

	v.SetDefault("audio.public_base_url", "http://localhost:8080")
	v.SetDefault("audio.ttl", 3600)
	v.SetDefault("audio.segment_max_runes", 300)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: POIGUIDE_AMAP_KEY → amap.key
	v.SetEnvPrefix("POIGUIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only covers keys viper already knows about.
	for _, key := range []string{"amap.key", "openai.api_key", "gemini.api_key"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Load reads and fully validates the configuration of the API server.
func Load(service string) (*Config, error) {
	return load(service, (*Config).Validate)
}

// LoadStorage is Load for tools that only touch PostgreSQL and NATS
// (migrate, eventlog); model provider keys are not required.
func LoadStorage(service string) (*Config, error) {
	return load(service, (*Config).ValidateStorage)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	errs = append(errs, c.storageErrors(c.Database.Enabled || c.POI.Source == "postgis")...)

	if c.Explorer.Debounce <= 0 {
		errs = append(errs, "explorer.debounce must be positive")
	}
	if c.Explorer.MinRadius <= 0 || c.Explorer.MaxRadius < c.Explorer.MinRadius {
		errs = append(errs, fmt.Sprintf("explorer radius range invalid: min=%v max=%v", c.Explorer.MinRadius, c.Explorer.MaxRadius))
	}
	if c.Explorer.RadiusFactor <= 0 {
		errs = append(errs, "explorer.radius_factor must be positive")
	}
	if c.Explorer.MaxPOIs <= 0 {
		errs = append(errs, "explorer.max_pois must be positive")
	}
	if c.Explorer.DefaultZoom <= 0 || c.Explorer.CityZoom <= 0 {
		errs = append(errs, "explorer zoom levels must be positive")
	}

	switch c.POI.Source {
	case "amap":
		if c.AMap.Key == "" {
			errs = append(errs, "amap.key is required when poi.source=amap")
		}
	case "postgis":
	default:
		errs = append(errs, fmt.Sprintf("poi.source must be amap or postgis, got %q", c.POI.Source))
	}

	// Speech and overlay generation always go through OpenAI.
	if c.OpenAI.APIKey == "" {
		errs = append(errs, "openai.api_key is required")
	}
	switch c.LLM.Provider {
	case "openai":
	case "gemini":
		if c.Gemini.APIKey == "" {
			errs = append(errs, "gemini.api_key is required when llm.provider=gemini")
		}
	default:
		errs = append(errs, fmt.Sprintf("llm.provider must be openai or gemini, got %q", c.LLM.Provider))
	}

	if c.Audio.SegmentMaxRunes <= 0 {
		errs = append(errs, "audio.segment_max_runes must be positive")
	}
	if c.Audio.PublicBaseURL == "" {
		errs = append(errs, "audio.public_base_url is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateStorage checks only the database, NATS and Valkey settings.
func (c *Config) ValidateStorage() error {
	if errs := c.storageErrors(true); len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) storageErrors(withDB bool) []string {
	var errs []string
	if withDB {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	return errs
}
