package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/compiq-monitor/internal/models"
)

// Config represents the application configuration
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Anthropic     AnthropicConfig     `mapstructure:"anthropic"`
	Monitor       MonitorConfig       `mapstructure:"monitor"`
	News          NewsConfig          `mapstructure:"news"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Company       CompanyConfig       `mapstructure:"company"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite
	DSN    string `mapstructure:"dsn"`    // Connection string
}

// AnthropicConfig holds Claude API settings
type AnthropicConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// MonitorConfig holds page monitoring settings
type MonitorConfig struct {
	DefaultCheckInterval string `mapstructure:"default_check_interval"`
	FetchTimeout         string `mapstructure:"fetch_timeout"`
	UserAgent            string `mapstructure:"user_agent"`
	RespectRobotsTxt     bool   `mapstructure:"respect_robots_txt"`
}

// NewsConfig holds news collection settings
type NewsConfig struct {
	Enabled          bool       `mapstructure:"enabled"`
	Feeds            []NewsFeed `mapstructure:"feeds"`
	GoogleNews       bool       `mapstructure:"google_news"`
	LookbackDays     int        `mapstructure:"lookback_days"`
	FetchFullContent bool       `mapstructure:"fetch_full_content"`
}

// NewsFeed represents a single configured RSS/Atom feed
type NewsFeed struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// AnalysisConfig holds AI analysis settings
type AnalysisConfig struct {
	RelevanceThreshold int `mapstructure:"relevance_threshold"` // 0-100, news below this is irrelevant
	NewsBatchSize      int `mapstructure:"news_batch_size"`     // items analyzed per cycle
}

// NotificationsConfig holds outbound webhook settings
type NotificationsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
	TeamsWebhookURL string `mapstructure:"teams_webhook_url"`
	MinRiskLevel    string `mapstructure:"min_risk_level"` // low, medium, high, critical
}

// SchedulerConfig holds scheduler settings
type SchedulerConfig struct {
	MonitorCron string `mapstructure:"monitor_cron"`
	NewsCron    string `mapstructure:"news_cron"`
	DigestCron  string `mapstructure:"digest_cron"`
	RunOnStart  bool   `mapstructure:"run_on_start"`
	HealthAddr  string `mapstructure:"health_addr"`
}

// CompanyConfig describes the company on whose behalf competitors are
// monitored. It feeds the analysis prompts so relevance is judged
// against a real business, not in a vacuum.
type CompanyConfig struct {
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	Industry    string   `mapstructure:"industry"`
	Products    []string `mapstructure:"products"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".compiq"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("COMPIQ")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("anthropic.api_key", "COMPIQ_ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "COMPIQ_ANTHROPIC_MODEL")
	v.BindEnv("database.driver", "COMPIQ_DATABASE_DRIVER")
	v.BindEnv("database.dsn", "COMPIQ_DATABASE_DSN")
	v.BindEnv("monitor.default_check_interval", "COMPIQ_MONITOR_DEFAULT_CHECK_INTERVAL")
	v.BindEnv("monitor.respect_robots_txt", "COMPIQ_MONITOR_RESPECT_ROBOTS_TXT")
	v.BindEnv("news.enabled", "COMPIQ_NEWS_ENABLED")
	v.BindEnv("news.google_news", "COMPIQ_NEWS_GOOGLE_NEWS")
	v.BindEnv("analysis.relevance_threshold", "COMPIQ_ANALYSIS_RELEVANCE_THRESHOLD")
	v.BindEnv("notifications.enabled", "COMPIQ_NOTIFICATIONS_ENABLED")
	v.BindEnv("notifications.slack_webhook_url", "COMPIQ_NOTIFICATIONS_SLACK_WEBHOOK_URL")
	v.BindEnv("notifications.teams_webhook_url", "COMPIQ_NOTIFICATIONS_TEAMS_WEBHOOK_URL")
	v.BindEnv("notifications.min_risk_level", "COMPIQ_NOTIFICATIONS_MIN_RISK_LEVEL")
	v.BindEnv("company.name", "COMPIQ_COMPANY_NAME")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/compiq.db")

	// Anthropic defaults
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.3)

	// Monitor defaults
	v.SetDefault("monitor.default_check_interval", "24h")
	v.SetDefault("monitor.fetch_timeout", "30s")
	v.SetDefault("monitor.user_agent", "Mozilla/5.0 (compatible; CompIQMonitor/1.0)")
	v.SetDefault("monitor.respect_robots_txt", true)

	// News defaults
	v.SetDefault("news.enabled", true)
	v.SetDefault("news.google_news", true)
	v.SetDefault("news.lookback_days", 7)
	v.SetDefault("news.fetch_full_content", false)

	// Analysis defaults
	v.SetDefault("analysis.relevance_threshold", 40)
	v.SetDefault("analysis.news_batch_size", 25)

	// Notifications defaults
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.min_risk_level", "high")

	// Scheduler defaults
	v.SetDefault("scheduler.monitor_cron", "0 */6 * * *") // Every 6 hours
	v.SetDefault("scheduler.news_cron", "30 */4 * * *")   // Every 4 hours, offset from monitoring
	v.SetDefault("scheduler.digest_cron", "0 8 * * *")    // 8am daily summary
	v.SetDefault("scheduler.run_on_start", false)
	v.SetDefault("scheduler.health_addr", ":8090")

	// Company defaults
	v.SetDefault("company.name", "Our Company")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is required")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Notifications.MinRiskLevel != "" {
		if _, ok := models.LookupRiskLevel(c.Notifications.MinRiskLevel); !ok {
			return fmt.Errorf("notifications.min_risk_level %q is not a valid risk level", c.Notifications.MinRiskLevel)
		}
	}
	return nil
}
