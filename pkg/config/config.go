package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Features  FeaturesConfig
	Model     ModelConfig
	Notebooks NotebooksConfig
	Redis     RedisConfig
	SQLite    SQLiteConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
}

// FeaturesConfig switches the two dashboards on or off independently.
type FeaturesConfig struct {
	Inference bool
	Notebooks bool
}

type ModelConfig struct {
	Path string
}

type NotebookEntry struct {
	Label string
	Slug  string
	File  string
}

type NotebooksConfig struct {
	BaseDir string
	Entries []NotebookEntry
	// CodeStyle is a chroma style name used for code cells.
	CodeStyle string
}

type RedisConfig struct {
	Enabled          bool
	Host             string
	Port             int
	Password         string
	DB               int
	TTLSeconds       int
	ConnectAttempts  int
	FailureThreshold uint32
	OpenTimeoutSec   int
}

type SQLiteConfig struct {
	Enabled bool
	Path    string
}

type RateLimitConfig struct {
	MaxRequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/churn-dashboard")

	return load(v)
}

// LoadFile reads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("CHURN_DASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Features.Inference && c.Model.Path == "" {
		return fmt.Errorf("model.path is required when the inference dashboard is enabled")
	}

	seen := make(map[string]bool, len(c.Notebooks.Entries))
	for _, e := range c.Notebooks.Entries {
		if e.Slug == "" || e.File == "" {
			return fmt.Errorf("notebook entry %q needs both slug and file", e.Label)
		}
		if seen[e.Slug] {
			return fmt.Errorf("duplicate notebook slug %q", e.Slug)
		}
		seen[e.Slug] = true
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8501)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.allowedOrigins", []string{})
	v.SetDefault("server.development", false)

	v.SetDefault("features.inference", true)
	v.SetDefault("features.notebooks", true)

	v.SetDefault("model.path", "./models/attrition_model.json")

	v.SetDefault("notebooks.baseDir", "./notebooks")
	v.SetDefault("notebooks.codeStyle", "monokai")
	v.SetDefault("notebooks.entries", []map[string]string{
		{"label": "EDA", "slug": "eda", "file": "EDA.ipynb"},
		{"label": "Preprocessing", "slug": "preprocessing", "file": "preprocessing.ipynb"},
		{"label": "Feature Engineering", "slug": "feature-engineering", "file": "Feature Engineering & Selection.ipynb"},
		{"label": "Hyperparameter Tuning", "slug": "hyperparameter-tuning", "file": "Hyperparameter_Tuning.ipynb"},
		{"label": "Model Evaluation", "slug": "model-evaluation", "file": "Model Building and Evaluation.ipynb"},
	})

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlSeconds", 86400)
	v.SetDefault("redis.connectAttempts", 3)
	v.SetDefault("redis.failureThreshold", 5)
	v.SetDefault("redis.openTimeoutSec", 30)

	v.SetDefault("sqlite.enabled", true)
	v.SetDefault("sqlite.path", "./data/predictions.db")

	v.SetDefault("rateLimit.maxRequestsPerMinute", 120)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
