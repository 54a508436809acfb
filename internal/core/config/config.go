package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "dreamaudio"
)

// Environment variables that override values from config.yml
const (
	EnvPort       = "PORT"
	EnvAPIKey     = "YOUTUBE_API_KEY"
	EnvBackendURL = "DREAMAUDIO_BACKEND_URL"
	EnvRedisAddr  = "REDIS_ADDR"
)

// placeholderAPIKey is the value shipped in example .env files
const placeholderAPIKey = "demo_key_replace_with_real_key"

// DefaultFallbackPool is the fixed set of alternative sources used when the
// extraction backend is unreachable.
var DefaultFallbackPool = []string{
	"https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3",
	"https://www.soundhelix.com/examples/mp3/SoundHelix-Song-2.mp3",
	"https://www.soundhelix.com/examples/mp3/SoundHelix-Song-3.mp3",
	"https://www.soundhelix.com/examples/mp3/SoundHelix-Song-4.mp3",
	"https://www.soundhelix.com/examples/mp3/SoundHelix-Song-5.mp3",
	"https://www.soundhelix.com/examples/mp3/SoundHelix-Song-6.mp3",
	"https://www.soundhelix.com/examples/mp3/SoundHelix-Song-7.mp3",
	"https://www.soundhelix.com/examples/mp3/SoundHelix-Song-8.mp3",
}

// ConfigDir returns the standard config directory for dreamaudio.
// Windows: %APPDATA%\dreamaudio\
// macOS/Linux: ~/.config/dreamaudio/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
// e.g., ~/.config/dreamaudio/config.yml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	// Server configuration for `dreamaudio serve`
	Server ServerConfig `yaml:"server,omitempty"`

	// Client configuration for `dreamaudio resolve` and friends
	Client ClientConfig `yaml:"client,omitempty"`
}

// ServerConfig holds settings for the extraction and stream proxy server
type ServerConfig struct {
	// Port is the HTTP listen port (default: 3001)
	Port int `yaml:"port,omitempty"`

	// YouTubeAPIKey enables the YouTube Data API routes (search, trending, details)
	YouTubeAPIKey string `yaml:"youtube_api_key,omitempty"`

	// YtDlpPath is the yt-dlp binary (default: "yt-dlp" from PATH)
	YtDlpPath string `yaml:"ytdlp_path,omitempty"`

	// ExtractTimeout bounds a single yt-dlp invocation (default: 45s)
	ExtractTimeout time.Duration `yaml:"extract_timeout,omitempty"`

	// UpstreamTimeout bounds connecting to the media host and receiving its
	// response headers. The body copy itself is bounded by the client connection.
	UpstreamTimeout time.Duration `yaml:"upstream_timeout,omitempty"`

	// RateLimit is requests per second across the API, 0 disables limiting
	RateLimit float64 `yaml:"rate_limit,omitempty"`

	// RateBurst is the limiter bucket size (default: 2x RateLimit)
	RateBurst int `yaml:"rate_burst,omitempty"`

	// RedisAddr enables a shared cache for video details (e.g., "localhost:6379")
	RedisAddr string `yaml:"redis_addr,omitempty"`

	// DetailsTTL is how long video details stay cached (default: 1h)
	DetailsTTL time.Duration `yaml:"details_ttl,omitempty"`
}

// ClientConfig holds settings for the client audio resolver
type ClientConfig struct {
	// BackendURL is the base URL of the extraction server
	BackendURL string `yaml:"backend_url,omitempty"`

	// HealthTTL is the minimum interval between liveness probes (default: 1m)
	HealthTTL time.Duration `yaml:"health_ttl,omitempty"`

	// HealthTimeout bounds the liveness probe (default: 5s)
	HealthTimeout time.Duration `yaml:"health_timeout,omitempty"`

	// ExtractTimeout bounds the audio extraction request (default: 15s)
	ExtractTimeout time.Duration `yaml:"extract_timeout,omitempty"`

	// DetailsTimeout bounds the video details request (default: 8s)
	DetailsTimeout time.Duration `yaml:"details_timeout,omitempty"`

	// SearchTimeout bounds search and trending requests (default: 10s)
	SearchTimeout time.Duration `yaml:"search_timeout,omitempty"`

	// FallbackPool overrides the alternative audio sources
	FallbackPool []string `yaml:"fallback_pool,omitempty"`
}

// APIKeyConfigured reports whether the Data API key looks usable
func (s ServerConfig) APIKeyConfigured() bool {
	key := s.YouTubeAPIKey
	return key != "" && key != placeholderAPIKey && len(key) > 10
}

// MaskedAPIKey returns the first 8 characters of the key for display
func (s ServerConfig) MaskedAPIKey() string {
	if s.YouTubeAPIKey == "" {
		return "not set"
	}
	if len(s.YouTubeAPIKey) <= 8 {
		return s.YouTubeAPIKey + "..."
	}
	return s.YouTubeAPIKey[:8] + "..."
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3001,
			YtDlpPath:       "yt-dlp",
			ExtractTimeout:  45 * time.Second,
			UpstreamTimeout: 30 * time.Second,
			DetailsTTL:      time.Hour,
		},
		Client: ClientConfig{
			BackendURL:     "http://localhost:3001",
			HealthTTL:      time.Minute,
			HealthTimeout:  5 * time.Second,
			ExtractTimeout: 15 * time.Second,
			DetailsTimeout: 8 * time.Second,
			SearchTimeout:  10 * time.Second,
		},
	}
}

// applyDefaults fills zero values left by a partial config file
func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.YtDlpPath == "" {
		cfg.Server.YtDlpPath = def.Server.YtDlpPath
	}
	if cfg.Server.ExtractTimeout <= 0 {
		cfg.Server.ExtractTimeout = def.Server.ExtractTimeout
	}
	if cfg.Server.UpstreamTimeout <= 0 {
		cfg.Server.UpstreamTimeout = def.Server.UpstreamTimeout
	}
	if cfg.Server.DetailsTTL <= 0 {
		cfg.Server.DetailsTTL = def.Server.DetailsTTL
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst <= 0 {
		cfg.Server.RateBurst = int(cfg.Server.RateLimit * 2)
		if cfg.Server.RateBurst < 1 {
			cfg.Server.RateBurst = 1
		}
	}

	if cfg.Client.BackendURL == "" {
		cfg.Client.BackendURL = def.Client.BackendURL
	}
	cfg.Client.BackendURL = strings.TrimRight(cfg.Client.BackendURL, "/")
	if cfg.Client.HealthTTL <= 0 {
		cfg.Client.HealthTTL = def.Client.HealthTTL
	}
	if cfg.Client.HealthTimeout <= 0 {
		cfg.Client.HealthTimeout = def.Client.HealthTimeout
	}
	if cfg.Client.ExtractTimeout <= 0 {
		cfg.Client.ExtractTimeout = def.Client.ExtractTimeout
	}
	if cfg.Client.DetailsTimeout <= 0 {
		cfg.Client.DetailsTimeout = def.Client.DetailsTimeout
	}
	if cfg.Client.SearchTimeout <= 0 {
		cfg.Client.SearchTimeout = def.Client.SearchTimeout
	}
}

// loadEnv applies environment overrides on top of the file values
func loadEnv(cfg *Config) {
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.Server.YouTubeAPIKey = v
	}
	if v := os.Getenv(EnvBackendURL); v != "" {
		cfg.Client.BackendURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Server.RedisAddr = v
	}
}

// Exists checks if config file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from ~/.config/dreamaudio/config.yml
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config from an explicit path
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.Server.YtDlpPath = expandPath(cfg.Server.YtDlpPath)

	loadEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// Both forward and backward slashes are accepted after the tilde.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				subPath := path[1:]
				if len(subPath) > 0 && (subPath[0] == '/' || subPath[0] == '\\') {
					subPath = subPath[1:]
				}
				return filepath.Join(home, subPath)
			}
		}
	}

	return path
}

// Save writes the config to ~/.config/dreamaudio/config.yml
func Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# dreamaudio configuration file\n# Run 'dreamaudio init' to regenerate with defaults\n\n"
	content := header + string(data)

	// The file may carry an API key
	return os.WriteFile(configPath, []byte(content), 0600)
}

// SavePath returns the path where config will be saved
func SavePath() string {
	if path, err := ConfigPath(); err == nil {
		return path
	}
	return ConfigFileName
}

// Init creates a new config.yml with default values
func Init() error {
	if Exists() {
		path, _ := ConfigPath()
		return fmt.Errorf("%s already exists", path)
	}
	return Save(DefaultConfig())
}

// LoadOrDefault loads config if it exists, otherwise returns defaults.
// Environment overrides apply in both cases.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
		loadEnv(cfg)
		applyDefaults(cfg)
	}
	return cfg
}
