package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/leanfinance/onboarding-service/internal/validator"
)

// Config holds all configuration for the service
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"logLevel"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	HubSpot     HubSpotConfig  `mapstructure:"hubspot"`
	Holded      HoldedConfig   `mapstructure:"holded"`
	Drive       DriveConfig    `mapstructure:"drive"`
	Sheets      SheetsConfig   `mapstructure:"sheets"`
	Slack       SlackConfig    `mapstructure:"slack"`
	SMTP        SMTPConfig     `mapstructure:"smtp"`
	Admin       AdminConfig    `mapstructure:"admin"`
	Polling     PollingConfig  `mapstructure:"polling"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds the healthcheck HTTP server settings.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig holds the PostgreSQL settings.
type DatabaseConfig struct {
	PostgresDSN         string `mapstructure:"postgresDSN" validate:"required"`
	PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
}

// HubSpotConfig holds the HubSpot CRM API settings.
type HubSpotConfig struct {
	BaseURL    string        `mapstructure:"baseURL"`
	Token      string        `mapstructure:"token" validate:"required"`
	PortalID   int64         `mapstructure:"portalID"`
	PipelineID string        `mapstructure:"pipelineID" validate:"required"`
	WonStageID string        `mapstructure:"wonStageID" validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// HoldedConfig holds the Holded invoicing API settings.
type HoldedConfig struct {
	BaseURL string        `mapstructure:"baseURL"`
	APIKey  string        `mapstructure:"apiKey" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DriveConfig holds the Google Drive API settings.
type DriveConfig struct {
	BaseURL        string        `mapstructure:"baseURL"`
	Token          string        `mapstructure:"token"`
	ParentFolderID string        `mapstructure:"parentFolderID" validate:"required"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// SheetsConfig holds the Google Sheets team-directory settings.
type SheetsConfig struct {
	BaseURL       string        `mapstructure:"baseURL"`
	Token         string        `mapstructure:"token"`
	SpreadsheetID string        `mapstructure:"spreadsheetID" validate:"required"`
	CacheTTL      time.Duration `mapstructure:"cacheTTL"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// SlackConfig holds the Slack Web API settings.
type SlackConfig struct {
	BaseURL  string        `mapstructure:"baseURL"`
	BotToken string        `mapstructure:"botToken" validate:"required"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SMTPConfig holds the outgoing mail settings.
type SMTPConfig struct {
	Host      string `mapstructure:"host" validate:"required"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	FromEmail string `mapstructure:"fromEmail" validate:"required,email"`
	FromName  string `mapstructure:"fromName"`
}

// AdminConfig identifies the administrator notified of failures.
type AdminConfig struct {
	Email string `mapstructure:"email" validate:"required,email"`
}

// PollingConfig holds the detection schedule settings.
type PollingConfig struct {
	LookbackDays int      `mapstructure:"lookbackDays"`
	Schedules    []string `mapstructure:"schedules"`
}

// MetricsConfig holds the Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	// Create new viper instance
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 2112)

	v.SetDefault("hubspot.baseURL", "https://api.hubapi.com")
	v.SetDefault("hubspot.timeout", 30*time.Second)
	v.SetDefault("holded.baseURL", "https://api.holded.com/api/invoicing/v1")
	v.SetDefault("holded.timeout", 30*time.Second)
	v.SetDefault("drive.baseURL", "https://www.googleapis.com/drive/v3")
	v.SetDefault("drive.timeout", 30*time.Second)
	v.SetDefault("sheets.baseURL", "https://sheets.googleapis.com/v4/spreadsheets")
	v.SetDefault("sheets.cacheTTL", time.Hour)
	v.SetDefault("sheets.timeout", 30*time.Second)
	v.SetDefault("slack.baseURL", "https://slack.com/api")
	v.SetDefault("slack.timeout", 30*time.Second)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.fromName", "LeanFinance Onboardings")

	// Twice daily: mid-morning and just before the afternoon handover
	v.SetDefault("polling.schedules", []string{"0 10 * * *", "50 13 * * *"})
	v.SetDefault("polling.lookbackDays", 7)

	// Config file settings
	v.SetConfigName("default") // name of config file (without extension)
	v.SetConfigType("yaml")    // REQUIRED if the config file does not have the extension in the name

	// Add lookup paths
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("$HOME/.onboarding-service")
	v.AddConfigPath("/etc/onboarding-service")

	// Try to read from config file
	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map environment variables to config fields
	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if token := os.Getenv("HUBSPOT_TOKEN"); token != "" {
		v.Set("hubspot.token", token)
	}
	if key := os.Getenv("HOLDED_API_KEY"); key != "" {
		v.Set("holded.apiKey", key)
	}
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		v.Set("slack.botToken", token)
	}
	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		v.Set("admin.email", email)
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validator.Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		// Get the field tag value (mapstructure)
		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		// Build the env var path
		path := append(parts, tag)
		key := strings.Join(path, ".")

		// If it's a struct, recursively bind its fields
		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		// Bind the env var
		_ = v.BindEnv(key)
	}
}
