package config

import (
	"fmt"
	"os"
	"strconv"

	"sewstat/analysis"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Databases
	DBPath    string // DuckDB log lake
	AppDBPath string // SQLite jobs/cache

	// API Server
	APIPort string
	APIHost string

	// Logging
	LogLevel string
	LogDir   string

	// Worker Pool
	WorkerPoolSize int

	// Cache
	CacheTTLHours int

	// Admin endpoints; empty disables them
	AdminJWTSecret string
	AdminUser      string

	// Upstream log source
	Source SourceConfig `mapstructure:"source" json:"source"`

	// Report conventions
	Report ReportConfig `mapstructure:"report" json:"report"`

	// Paging and streaming
	Analysis AnalysisConfig `mapstructure:"analysis" json:"analysis"`

	// Mock data settings
	MockData MockDataConfig `mapstructure:"mock_data" json:"mock_data"`

	// Scheduler
	Scheduler SchedulerConfig `mapstructure:"scheduler" json:"scheduler"`

	// Retention
	Retention RetentionConfig `mapstructure:"retention" json:"retention"`

	// Category label overrides per report kind
	Labels *LabelSetManager

	v *viper.Viper
}

// SourceConfig describes where raw log rows come from
type SourceConfig struct {
	Mode           string `mapstructure:"mode" json:"mode"` // api, lake or sql
	APIBaseURL     string `mapstructure:"api_base_url" json:"api_base_url"`
	APIPath        string `mapstructure:"api_path" json:"api_path"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	InsecureTLS    bool   `mapstructure:"insecure_tls" json:"insecure_tls"`
	SQLDriver      string `mapstructure:"sql_driver" json:"sql_driver"` // postgres or mysql
	SQLQuery       string `mapstructure:"sql_query" json:"sql_query"`

	// From environment or keyring only
	Token  string `mapstructure:"-"`
	SQLDSN string `mapstructure:"-"`
}

// ReportConfig holds per-view conventions
type ReportConfig struct {
	// TotalHoursModes maps a report kind (operators, machines, lines) to
	// fixed10 or sumCategories.
	TotalHoursModes  map[string]string `mapstructure:"total_hours_modes" json:"total_hours_modes"`
	ApplyShiftFilter bool              `mapstructure:"apply_shift_filter" json:"apply_shift_filter"`
	Shift            ShiftConfig       `mapstructure:"shift" json:"shift"`
	Timezone         string            `mapstructure:"timezone" json:"timezone"`
}

// ShiftConfig is the working window of one day, "15:04" formatted
type ShiftConfig struct {
	Start  string        `mapstructure:"start" json:"start"`
	End    string        `mapstructure:"end" json:"end"`
	Breaks []BreakConfig `mapstructure:"breaks" json:"breaks"`
}

// BreakConfig is a scheduled pause inside the shift
type BreakConfig struct {
	Start string `mapstructure:"start" json:"start"`
	End   string `mapstructure:"end" json:"end"`
}

// AnalysisConfig holds paging and fan-out limits
type AnalysisConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size" json:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size" json:"max_page_size"`
	StreamWorkers   int `mapstructure:"stream_workers" json:"stream_workers"`
}

// MockDataConfig holds mock data generation settings
type MockDataConfig struct {
	Enabled         bool     `mapstructure:"enabled" json:"enabled"`
	TimeRangeDays   int      `mapstructure:"time_range_days" json:"time_range_days"`
	RowsPerShift    int      `mapstructure:"rows_per_shift" json:"rows_per_shift"`
	Lines           []string `mapstructure:"lines" json:"lines"`
	MachinesPerLine int      `mapstructure:"machines_per_line" json:"machines_per_line"`
	Operators       []string `mapstructure:"operators" json:"operators"`
	Seed            int64    `mapstructure:"seed" json:"seed"`
}

// RetentionConfig holds data retention settings
type RetentionConfig struct {
	ReportDays  int    `mapstructure:"report_days" json:"report_days"`
	DataDays    int    `mapstructure:"data_days" json:"data_days"`
	CleanupTime string `mapstructure:"cleanup_time" json:"cleanup_time"` // Format: "15:04"
}

// LoadConfig loads configuration from .env and a config.yaml found in the
// working directory or one of its parents.
func LoadConfig() (*Config, error) {
	return Load("")
}

// Load reads configuration from path, or searches for config.yaml when
// path is empty.
func Load(path string) (*Config, error) {
	// .env file is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath("../..")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	config := &Config{
		DBPath:         getEnv("DB_PATH", "./data/lake.duckdb"),
		AppDBPath:      getEnv("APP_DB_PATH", "./data/app.db"),
		APIPort:        getEnv("API_PORT", "8080"),
		APIHost:        getEnv("API_HOST", "0.0.0.0"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogDir:         getEnv("LOG_DIR", "./data/logs"),
		WorkerPoolSize: getEnvAsInt("WORKER_POOL_SIZE", 4),
		CacheTTLHours:  getEnvAsInt("CACHE_TTL_HOURS", 24),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		AdminUser:      getEnv("ADMIN_USER", "admin"),
		v:              v,
	}

	// Unmarshal the whole tree so section defaults merge with partial
	// sections from the file.
	var sections struct {
		Source    SourceConfig    `mapstructure:"source"`
		Report    ReportConfig    `mapstructure:"report"`
		Analysis  AnalysisConfig  `mapstructure:"analysis"`
		MockData  MockDataConfig  `mapstructure:"mock_data"`
		Scheduler SchedulerConfig `mapstructure:"scheduler"`
		Retention RetentionConfig `mapstructure:"retention"`
	}
	if err := v.Unmarshal(&sections); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Source = sections.Source
	config.Report = sections.Report
	config.Analysis = sections.Analysis
	config.MockData = sections.MockData
	config.Scheduler = sections.Scheduler
	config.Retention = sections.Retention

	// Environment overrides for the upstream source
	config.Source.Mode = getEnv("SOURCE_MODE", config.Source.Mode)
	config.Source.APIBaseURL = getEnv("SOURCE_API_BASE_URL", config.Source.APIBaseURL)
	config.Source.SQLDSN = getEnv("SOURCE_SQL_DSN", "")
	config.Source.InsecureTLS = getEnvAsBool("SOURCE_INSECURE_TLS", config.Source.InsecureTLS)
	config.MockData.Enabled = getEnvAsBool("MOCK_DATA", config.MockData.Enabled)
	config.Source.Token = SourceToken()

	config.Labels = NewLabelSetManager(getEnv("LABELS_PATH", "config_labels.json"))
	if err := config.Labels.Load(); err != nil {
		fmt.Printf("Warning: Failed to load label config: %v\n", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.mode", "lake")
	v.SetDefault("source.api_path", "/api/user-machine-logs/")
	v.SetDefault("source.timeout_seconds", 30)
	v.SetDefault("source.sql_driver", "postgres")
	v.SetDefault("report.total_hours_modes", map[string]string{
		"operators": "sumCategories",
		"machines":  "fixed10",
		"lines":     "fixed10",
	})
	v.SetDefault("report.apply_shift_filter", true)
	v.SetDefault("report.shift.start", "08:25")
	v.SetDefault("report.shift.end", "19:35")
	v.SetDefault("report.shift.breaks", []map[string]string{
		{"start": "10:30", "end": "10:40"},
		{"start": "13:20", "end": "14:00"},
		{"start": "16:20", "end": "16:30"},
	})
	v.SetDefault("report.timezone", "Local")
	v.SetDefault("analysis.default_page_size", 100)
	v.SetDefault("analysis.max_page_size", 1000)
	v.SetDefault("analysis.stream_workers", 4)
	v.SetDefault("mock_data.time_range_days", 7)
	v.SetDefault("mock_data.rows_per_shift", 24)
	v.SetDefault("mock_data.machines_per_line", 4)
	v.SetDefault("scheduler.interval_minutes", 60)
	v.SetDefault("scheduler.lookback_days", 2)
	v.SetDefault("retention.report_days", 30)
	v.SetDefault("retention.data_days", 365)
	v.SetDefault("retention.cleanup_time", "06:00")
}

// Validate checks required fields and enumerations
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	switch c.Source.Mode {
	case "api":
		if c.Source.APIBaseURL == "" {
			return fmt.Errorf("source.api_base_url is required in api mode")
		}
	case "sql":
		if c.Source.SQLDSN == "" || c.Source.SQLQuery == "" {
			return fmt.Errorf("SOURCE_SQL_DSN and source.sql_query are required in sql mode")
		}
	case "lake":
	default:
		return fmt.Errorf("unknown source.mode %q", c.Source.Mode)
	}
	for kind, mode := range c.Report.TotalHoursModes {
		if _, err := analysis.ParseTotalHoursMode(mode); err != nil {
			return fmt.Errorf("report.total_hours_modes.%s: %w", kind, err)
		}
	}
	return nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool reads an environment variable as bool or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
