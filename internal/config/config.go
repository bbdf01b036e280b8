package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/retain-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Risk       RiskConfig       `yaml:"risk" mapstructure:"risk"`
	Thresholds ThresholdsConfig `yaml:"thresholds" mapstructure:"thresholds"`
	Rules      RulesConfig      `yaml:"rules" mapstructure:"rules"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Import     ImportConfig     `yaml:"import" mapstructure:"import"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// RiskConfig configures the risk aggregation blend.
type RiskConfig struct {
	MLWeight        float64 `yaml:"ml_weight" mapstructure:"ml_weight"`
	HeuristicWeight float64 `yaml:"heuristic_weight" mapstructure:"heuristic_weight"`
	StageWeight     float64 `yaml:"stage_weight" mapstructure:"stage_weight"`
	InterviewClamp  float64 `yaml:"interview_clamp" mapstructure:"interview_clamp"`
	CacheTTLMinutes int     `yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
}

// ThresholdsConfig configures per-dataset calibration.
type ThresholdsConfig struct {
	TTLMinutes       int     `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	HighPercentile   float64 `yaml:"high_percentile" mapstructure:"high_percentile"`
	MediumPercentile float64 `yaml:"medium_percentile" mapstructure:"medium_percentile"`
	OptimalMethod    string  `yaml:"optimal_method" mapstructure:"optimal_method"`
	CostRatio        float64 `yaml:"cost_ratio" mapstructure:"cost_ratio"`
}

// RulesConfig points at an optional heuristic rule file. When Path is
// empty the built-in rule set is used.
type RulesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// BatchConfig configures batch scoring.
type BatchConfig struct {
	MaxParallel   int     `yaml:"max_parallel" mapstructure:"max_parallel"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// ImportConfig configures spreadsheet ingestion.
type ImportConfig struct {
	DefaultDataset string `yaml:"default_dataset" mapstructure:"default_dataset"`
	SheetName      string `yaml:"sheet_name" mapstructure:"sheet_name"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures the background dataset health checker.
// An empty WebhookURL disables alert delivery; an empty Datasets list
// falls back to the default import dataset.
type MonitoringConfig struct {
	WebhookURL              string   `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs       int      `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	Datasets                []string `yaml:"datasets" mapstructure:"datasets"`
	HighRiskShareThreshold  float64  `yaml:"high_risk_share_threshold" mapstructure:"high_risk_share_threshold"`
	AttritionRateThreshold  float64  `yaml:"attrition_rate_threshold" mapstructure:"attrition_rate_threshold"`
	ThresholdsMaxAgeHours   int      `yaml:"thresholds_max_age_hours" mapstructure:"thresholds_max_age_hours"`
	BreakerFailureThreshold int      `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerResetSecs        int      `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the settings a given command mode depends on. Modes:
// "score" (single and batch scoring), "calibrate", "serve", "import".
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	switch mode {
	case "score":
		problems = append(problems, c.validateRisk()...)
	case "calibrate":
		if c.Thresholds.HighPercentile <= c.Thresholds.MediumPercentile {
			problems = append(problems, "thresholds.high_percentile must be above medium_percentile")
		}
		switch c.Thresholds.OptimalMethod {
		case "f1", "precision", "recall", "cost":
		default:
			problems = append(problems, "thresholds.optimal_method must be one of f1, precision, recall, cost")
		}
		if c.Thresholds.CostRatio <= 0 {
			problems = append(problems, "thresholds.cost_ratio must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		problems = append(problems, c.validateRisk()...)
	case "import":
		if c.Import.DefaultDataset == "" {
			problems = append(problems, "import.default_dataset is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateRisk() []string {
	var problems []string
	if c.Risk.MLWeight < 0 || c.Risk.HeuristicWeight < 0 || c.Risk.StageWeight < 0 {
		problems = append(problems, "risk weights must be >= 0")
	}
	if c.Risk.MLWeight+c.Risk.HeuristicWeight+c.Risk.StageWeight == 0 {
		problems = append(problems, "risk weights must not all be zero")
	}
	if c.Risk.InterviewClamp < 0 || c.Risk.InterviewClamp > 1 {
		problems = append(problems, "risk.interview_clamp must be between 0 and 1")
	}
	if c.Batch.MaxParallel < 1 || c.Batch.MaxParallel > 50 {
		problems = append(problems, "batch.max_parallel must be between 1 and 50")
	}
	return problems
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RETAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "retain.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("risk.ml_weight", 0.50)
	v.SetDefault("risk.heuristic_weight", 0.30)
	v.SetDefault("risk.stage_weight", 0.20)
	v.SetDefault("risk.interview_clamp", 0.3)
	v.SetDefault("risk.cache_ttl_minutes", 60)
	v.SetDefault("thresholds.ttl_minutes", 60)
	v.SetDefault("thresholds.high_percentile", 85)
	v.SetDefault("thresholds.medium_percentile", 60)
	v.SetDefault("thresholds.optimal_method", "f1")
	v.SetDefault("thresholds.cost_ratio", 5.0)
	v.SetDefault("batch.max_parallel", 6)
	v.SetDefault("batch.rate_per_second", 0)
	v.SetDefault("import.default_dataset", "default")
	v.SetDefault("import.sheet_name", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.high_risk_share_threshold", 0.25)
	v.SetDefault("monitoring.attrition_rate_threshold", 0)
	v.SetDefault("monitoring.thresholds_max_age_hours", 168)

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
