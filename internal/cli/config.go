package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/project-dream/dreamaudio/internal/core/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage dreamaudio configuration",
	Long:  "View and modify server and client settings in config.yml",
}

// dreamaudio config show - show current config
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Println(bold.Sprint("Server:"))
		for _, key := range serverKeys {
			v, _ := getConfigValue(cfg, key)
			fmt.Printf("  %-24s %s\n", key, v)
		}
		fmt.Println(bold.Sprint("Client:"))
		for _, key := range clientKeys {
			v, _ := getConfigValue(cfg, key)
			fmt.Printf("  %-24s %s\n", key, v)
		}
		fmt.Printf("\nConfig: %s\n", config.SavePath())
		return nil
	},
}

// dreamaudio config path - show config file path
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.SavePath())
	},
}

// dreamaudio config set KEY VALUE - set a config value
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in config.yml.

Supported keys:
  server.port               Server listen port
  server.youtube_api_key    YouTube Data API key
  server.ytdlp_path         yt-dlp binary
  server.extract_timeout    yt-dlp timeout (e.g. 45s)
  server.upstream_timeout   Media host connect timeout (e.g. 30s)
  server.rate_limit         Requests per second, 0 disables
  server.rate_burst         Rate limiter burst
  server.redis_addr         Redis address for the details cache
  server.details_ttl        Details cache lifetime (e.g. 1h)
  client.backend_url        Extraction backend URL
  client.health_ttl         How long a healthy probe is trusted (e.g. 1m)
  client.health_timeout     Health probe timeout (e.g. 5s)
  client.extract_timeout    Extraction request timeout (e.g. 15s)
  client.details_timeout    Details request timeout (e.g. 8s)
  client.search_timeout     Search and trending timeout (e.g. 10s)
  client.fallback_pool      Comma separated fallback track URLs

Examples:
  dreamaudio config set server.port 8080
  dreamaudio config set client.backend_url https://audio.example.com`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		cfg := config.LoadOrDefault()
		if err := setConfigValue(cfg, key, value); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

// dreamaudio config get KEY - get a config value
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		value, err := getConfigValue(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

// dreamaudio config unset KEY - reset a value to its default
var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		cfg := config.LoadOrDefault()
		if err := setConfigValue(cfg, key, ""); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Printf("Unset %s\n", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}

var serverKeys = []string{
	"server.port",
	"server.youtube_api_key",
	"server.ytdlp_path",
	"server.extract_timeout",
	"server.upstream_timeout",
	"server.rate_limit",
	"server.rate_burst",
	"server.redis_addr",
	"server.details_ttl",
}

var clientKeys = []string{
	"client.backend_url",
	"client.health_ttl",
	"client.health_timeout",
	"client.extract_timeout",
	"client.details_timeout",
	"client.search_timeout",
	"client.fallback_pool",
}

// setConfigValue sets a config value by key. An empty value resets it;
// defaults are filled back in on the next load.
func setConfigValue(cfg *config.Config, key, value string) error {
	s, c := &cfg.Server, &cfg.Client

	switch key {
	case "server.port":
		return setInt(&s.Port, value)
	case "server.youtube_api_key":
		s.YouTubeAPIKey = value
	case "server.ytdlp_path":
		s.YtDlpPath = value
	case "server.extract_timeout":
		return setDuration(&s.ExtractTimeout, value)
	case "server.upstream_timeout":
		return setDuration(&s.UpstreamTimeout, value)
	case "server.rate_limit":
		if value == "" {
			s.RateLimit = 0
			return nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid rate: %s", value)
		}
		s.RateLimit = f
	case "server.rate_burst":
		return setInt(&s.RateBurst, value)
	case "server.redis_addr":
		s.RedisAddr = value
	case "server.details_ttl":
		return setDuration(&s.DetailsTTL, value)
	case "client.backend_url":
		c.BackendURL = strings.TrimRight(value, "/")
	case "client.health_ttl":
		return setDuration(&c.HealthTTL, value)
	case "client.health_timeout":
		return setDuration(&c.HealthTimeout, value)
	case "client.extract_timeout":
		return setDuration(&c.ExtractTimeout, value)
	case "client.details_timeout":
		return setDuration(&c.DetailsTimeout, value)
	case "client.search_timeout":
		return setDuration(&c.SearchTimeout, value)
	case "client.fallback_pool":
		c.FallbackPool = nil
		for _, u := range strings.Split(value, ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.FallbackPool = append(c.FallbackPool, u)
			}
		}
	default:
		return fmt.Errorf("unknown config key: %s\nRun 'dreamaudio config set --help' to see supported keys", key)
	}
	return nil
}

// getConfigValue gets a config value by key
func getConfigValue(cfg *config.Config, key string) (string, error) {
	s, c := cfg.Server, cfg.Client

	switch key {
	case "server.port":
		return strconv.Itoa(s.Port), nil
	case "server.youtube_api_key":
		return s.MaskedAPIKey(), nil
	case "server.ytdlp_path":
		return s.YtDlpPath, nil
	case "server.extract_timeout":
		return s.ExtractTimeout.String(), nil
	case "server.upstream_timeout":
		return s.UpstreamTimeout.String(), nil
	case "server.rate_limit":
		return strconv.FormatFloat(s.RateLimit, 'f', -1, 64), nil
	case "server.rate_burst":
		return strconv.Itoa(s.RateBurst), nil
	case "server.redis_addr":
		return s.RedisAddr, nil
	case "server.details_ttl":
		return s.DetailsTTL.String(), nil
	case "client.backend_url":
		return c.BackendURL, nil
	case "client.health_ttl":
		return c.HealthTTL.String(), nil
	case "client.health_timeout":
		return c.HealthTimeout.String(), nil
	case "client.extract_timeout":
		return c.ExtractTimeout.String(), nil
	case "client.details_timeout":
		return c.DetailsTimeout.String(), nil
	case "client.search_timeout":
		return c.SearchTimeout.String(), nil
	case "client.fallback_pool":
		return strings.Join(c.FallbackPool, ","), nil
	default:
		return "", fmt.Errorf("unknown config key: %s\nRun 'dreamaudio config set --help' to see supported keys", key)
	}
}

func setInt(dst *int, value string) error {
	if value == "" {
		*dst = 0
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid number: %s", value)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, value string) error {
	if value == "" {
		*dst = 0
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid duration %q (use e.g. 30s, 1m)", value)
	}
	*dst = d
	return nil
}
