package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Dataset    DatasetConfig    `yaml:"dataset" mapstructure:"dataset"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// DatasetConfig configures where soil samples are loaded from.
type DatasetConfig struct {
	// Source is a file path (.csv, .tsv, .xlsx, .db/.sqlite), an http(s)
	// URL, a sqlite:// path or a postgres:// DSN.
	Source      string `yaml:"source" mapstructure:"source"`
	Delimiter   string `yaml:"delimiter" mapstructure:"delimiter"`
	SheetName   string `yaml:"sheet_name" mapstructure:"sheet_name"`
	Table       string `yaml:"table" mapstructure:"table"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// ScoringConfig holds the ICD thresholds and penalty weights.
type ScoringConfig struct {
	// Penalties (points deducted from 100).
	NullPHPenalty       float64 `yaml:"null_ph_penalty" mapstructure:"null_ph_penalty" json:"null_ph_penalty"`
	NullAlPenalty       float64 `yaml:"null_al_penalty" mapstructure:"null_al_penalty" json:"null_al_penalty"`
	IncoherentPHPenalty float64 `yaml:"incoherent_ph_penalty" mapstructure:"incoherent_ph_penalty" json:"incoherent_ph_penalty"`
	AnomalyPenalty      float64 `yaml:"anomaly_penalty" mapstructure:"anomaly_penalty" json:"anomaly_penalty"`
	LowPrecisionPenalty float64 `yaml:"low_precision_penalty" mapstructure:"low_precision_penalty" json:"low_precision_penalty"`
	StalenessPenalty    float64 `yaml:"staleness_penalty" mapstructure:"staleness_penalty" json:"staleness_penalty"`

	// Thresholds.
	PHMin           float64 `yaml:"ph_min" mapstructure:"ph_min" json:"ph_min"`
	PHMax           float64 `yaml:"ph_max" mapstructure:"ph_max" json:"ph_max"`
	AlToxic         float64 `yaml:"al_toxic" mapstructure:"al_toxic" json:"al_toxic"`
	OMLow           float64 `yaml:"om_low" mapstructure:"om_low" json:"om_low"`
	MaxOutlierRate  float64 `yaml:"max_outlier_rate" mapstructure:"max_outlier_rate" json:"max_outlier_rate"`
	StaleCutoffYear int     `yaml:"stale_cutoff_year" mapstructure:"stale_cutoff_year" json:"stale_cutoff_year"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	RateLimit          float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst          int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	SessionIdleMinutes int      `yaml:"session_idle_minutes" mapstructure:"session_idle_minutes"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy" mapstructure:"trust_proxy"`
}

// MonitoringConfig configures the background quality checks.
type MonitoringConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	Concurrency       int     `yaml:"concurrency" mapstructure:"concurrency"`
	MinAvgScore       float64 `yaml:"min_avg_score" mapstructure:"min_avg_score"`
	MaxLowTierShare   float64 `yaml:"max_low_tier_share" mapstructure:"max_low_tier_share"`
	WebhookURL        string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SOLVMETRIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset.source", "datos_limpios.csv")
	v.SetDefault("dataset.delimiter", "")
	v.SetDefault("dataset.sheet_name", "")
	v.SetDefault("dataset.table", "soil_samples")
	v.SetDefault("dataset.timeout_secs", 60)
	v.SetDefault("dataset.user_agent", "solvmetria/1.0")
	v.SetDefault("dataset.temp_dir", "")
	v.SetDefault("scoring.null_ph_penalty", 20)
	v.SetDefault("scoring.null_al_penalty", 20)
	v.SetDefault("scoring.incoherent_ph_penalty", 30)
	v.SetDefault("scoring.anomaly_penalty", 15)
	v.SetDefault("scoring.low_precision_penalty", 10)
	v.SetDefault("scoring.staleness_penalty", 20)
	v.SetDefault("scoring.ph_min", 3.0)
	v.SetDefault("scoring.ph_max", 10.0)
	v.SetDefault("scoring.al_toxic", 1.0)
	v.SetDefault("scoring.om_low", 2.0)
	v.SetDefault("scoring.max_outlier_rate", 0.10)
	v.SetDefault("scoring.stale_cutoff_year", 2018)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.session_idle_minutes", 120)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.concurrency", 8)
	v.SetDefault("monitoring.min_avg_score", 50.0)
	v.SetDefault("monitoring.max_low_tier_share", 0.25)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Validate checks the settings a command mode depends on. Modes: "serve",
// "dataset" (commands that only read samples) and "import".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
			errs = append(errs, "server.rate_burst must be > 0 when rate_limit is set")
		}
		if c.Server.SessionIdleMinutes < 0 {
			errs = append(errs, "server.session_idle_minutes must be >= 0")
		}
		if c.Monitoring.MaxLowTierShare < 0 || c.Monitoring.MaxLowTierShare > 1 {
			errs = append(errs, "monitoring.max_low_tier_share must be between 0 and 1")
		}
		errs = append(errs, c.validateDataset()...)
	case "dataset":
		errs = append(errs, c.validateDataset()...)
	case "import":
		errs = append(errs, c.validateDataset()...)
		if c.Dataset.Table == "" {
			errs = append(errs, "dataset.table is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateDataset() []string {
	var errs []string
	if strings.TrimSpace(c.Dataset.Source) == "" {
		errs = append(errs, "dataset.source is required")
	}
	if c.Dataset.TimeoutSecs < 0 {
		errs = append(errs, "dataset.timeout_secs must be >= 0")
	}
	if len([]rune(c.Dataset.Delimiter)) > 1 {
		errs = append(errs, "dataset.delimiter must be a single character")
	}
	return errs
}
