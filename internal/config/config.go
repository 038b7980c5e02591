package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	DataGov      DataGovConfig      `yaml:"datagov" mapstructure:"datagov"`
	TableBuilder TableBuilderConfig `yaml:"tablebuilder" mapstructure:"tablebuilder"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	IncomeGroups map[string]string  `yaml:"income_groups" mapstructure:"income_groups"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// HTTPConfig configures the shared HTTP fetcher.
type HTTPConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// DataGovConfig configures the data.gov.sg open-data client.
type DataGovConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	PollAttempts  int    `yaml:"poll_attempts" mapstructure:"poll_attempts"`
	PollDelaySecs int    `yaml:"poll_delay_secs" mapstructure:"poll_delay_secs"`
}

// TableBuilderConfig configures the SingStat Table Builder client.
type TableBuilderConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OutputConfig configures CSV artifact output.
type OutputConfig struct {
	Dir   string `yaml:"dir" mapstructure:"dir"`
	Merge bool   `yaml:"merge" mapstructure:"merge"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("http.user_agent", "Mozilla/5.0 (compatible; cpi-ingest/1.0)")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("datagov.base_url", "https://api-open.data.gov.sg")
	v.SetDefault("datagov.poll_attempts", 5)
	v.SetDefault("datagov.poll_delay_secs", 2)
	v.SetDefault("tablebuilder.base_url", "https://tablebuilder.singstat.gov.sg")
	v.SetDefault("output.dir", "cpi_data")
	v.SetDefault("output.merge", false)
	// Income-group assignments drift across portal revisions, so the lookup
	// table is plain configuration. Defaults match the current portal ids.
	v.SetDefault("income_groups", map[string]string{
		// data.gov.sg dataset ids
		"d_c5bde9ed17cef8c365629311f8550ce2": "Highest 20%",
		"d_8f3660871b62f38609915ee7ef45ee2c": "Middle 60%",
		"d_36c4af91ffd0a75f6b557960efcb476e": "Lowest 60%",
		// SingStat table ids
		"M213051": "Highest 20%",
		"M213041": "Middle 60%",
		"M213071": "Middle 60%",
		"M213031": "Lowest 60%",
	})

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
