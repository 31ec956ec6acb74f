package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
	Identity    IdentityConfig    `mapstructure:"identity" yaml:"identity"`
	Recommender RecommenderConfig `mapstructure:"recommender" yaml:"recommender"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Graph       GraphConfig       `mapstructure:"graph" yaml:"graph"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

type StorageConfig struct {
	Type             string  `mapstructure:"type" yaml:"type"` // "sqlite", "postgres"
	LocalPath        string  `mapstructure:"local_path" yaml:"local_path"`
	PostgresHost     string  `mapstructure:"postgres_host" yaml:"postgres_host"`
	PostgresPort     int     `mapstructure:"postgres_port" yaml:"postgres_port"`
	PostgresDB       string  `mapstructure:"postgres_db" yaml:"postgres_db"`
	PostgresUser     string  `mapstructure:"postgres_user" yaml:"postgres_user"`
	PostgresPassword string  `mapstructure:"postgres_password" yaml:"postgres_password"`
	PostgresDriver   string  `mapstructure:"postgres_driver" yaml:"postgres_driver"` // "pgx", "postgres"
	PostgresSSLMode  string  `mapstructure:"postgres_sslmode" yaml:"postgres_sslmode"`
	UseKeychain      bool    `mapstructure:"use_keychain" yaml:"use_keychain"`
	BatchSize        int     `mapstructure:"batch_size" yaml:"batch_size"`
	WritesPerSecond  float64 `mapstructure:"writes_per_second" yaml:"writes_per_second"`
}

type IdentityConfig struct {
	AutoMediumThreshold float64 `mapstructure:"auto_medium_threshold" yaml:"auto_medium_threshold"`
	AutoHighThreshold   float64 `mapstructure:"auto_high_threshold" yaml:"auto_high_threshold"`
	RulesFile           string  `mapstructure:"rules_file" yaml:"rules_file"`
	DryRun              bool    `mapstructure:"dry_run" yaml:"dry_run"`
	JournalPath         string  `mapstructure:"journal_path" yaml:"journal_path"` // "" disables the merge journal
}

type RecommenderConfig struct {
	Strategy            string        `mapstructure:"strategy" yaml:"strategy"` // "chrev", "turnover"
	LookbackDays        int           `mapstructure:"lookback_days" yaml:"lookback_days"`
	WorkloadDays        int           `mapstructure:"workload_days" yaml:"workload_days"`
	TopN                int           `mapstructure:"top_n" yaml:"top_n"`
	ExcludeUnknownFiles bool          `mapstructure:"exclude_unknown_files" yaml:"exclude_unknown_files"`
	IncludeAuthor       bool          `mapstructure:"include_author" yaml:"include_author"`
	Weights             WeightsConfig `mapstructure:"weights" yaml:"weights"`
}

// WeightsConfig holds the turnover/retention composite weights
type WeightsConfig struct {
	C1Turnover  float64 `mapstructure:"c1_turnover" yaml:"c1_turnover"`
	C2Turnover  float64 `mapstructure:"c2_turnover" yaml:"c2_turnover"`
	C1Retention float64 `mapstructure:"c1_retention" yaml:"c1_retention"`
	C2Retention float64 `mapstructure:"c2_retention" yaml:"c2_retention"`
}

type CacheConfig struct {
	Type      string        `mapstructure:"type" yaml:"type"` // "none", "bolt", "redis"
	Path      string        `mapstructure:"path" yaml:"path"`
	RedisAddr string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPass string        `mapstructure:"redis_password" yaml:"redis_password"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type GraphConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	URI      string `mapstructure:"uri" yaml:"uri"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Storage: StorageConfig{
			Type:            "sqlite",
			LocalPath:       filepath.Join(homeDir, ".reviewscout", "local.db"),
			PostgresPort:    5432,
			PostgresDriver:  "pgx",
			PostgresSSLMode: "disable",
			BatchSize:       500,
		},
		Identity: IdentityConfig{
			AutoMediumThreshold: 0.80,
			AutoHighThreshold:   0.90,
			JournalPath:         filepath.Join(homeDir, ".reviewscout", "merges.jsonl"),
		},
		Recommender: RecommenderConfig{
			Strategy:     "chrev",
			LookbackDays: 365,
			WorkloadDays: 90,
			TopN:         5,
			Weights: WeightsConfig{
				C1Turnover:  1.0,
				C2Turnover:  1.0,
				C1Retention: 1.0,
				C2Retention: 1.0,
			},
		},
		Cache: CacheConfig{
			Type: "none",
			Path: filepath.Join(homeDir, ".reviewscout", "cache.db"),
			TTL:  15 * time.Minute,
		},
		Graph: GraphConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Database: "neo4j",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file, .env files and REVIEWSCOUT_* variables
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Unmarshal decodes onto the defaults, so absent keys keep them
	cfg := Default()

	v.SetEnvPrefix("REVIEWSCOUT")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".reviewscout")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".reviewscout"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".reviewscout", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies well-known environment variables
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REVIEWSCOUT_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("REVIEWSCOUT_DB_PATH"); v != "" {
		cfg.Storage.LocalPath = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Storage.PostgresHost = v
	}
	if v := os.Getenv("POSTGRES_PORT_EXTERNAL"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Storage.PostgresPort = port
		}
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Storage.PostgresDB = v
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Storage.PostgresUser = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Storage.PostgresPassword = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("NEO4J_URI"); v != "" {
		cfg.Graph.URI = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		cfg.Graph.Password = v
	}
}

// PostgresDSN builds a connection string, pulling the password from the OS
// keychain when none is configured and use_keychain is set.
func (c *Config) PostgresDSN() (string, error) {
	s := c.Storage
	password := s.PostgresPassword
	if password == "" && s.UseKeychain {
		km := NewKeyringManager()
		stored, err := km.GetPostgresPassword()
		if err != nil {
			return "", err
		}
		password = stored
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.PostgresUser, password),
		Host:     fmt.Sprintf("%s:%d", s.PostgresHost, s.PostgresPort),
		Path:     "/" + s.PostgresDB,
		RawQuery: "sslmode=" + s.PostgresSSLMode,
	}
	return u.String(), nil
}

// Lookback returns the project-wide window length
func (r RecommenderConfig) Lookback() time.Duration {
	return time.Duration(r.LookbackDays) * 24 * time.Hour
}

// WorkloadWindow returns the trailing window used for workload statistics
func (r RecommenderConfig) WorkloadWindow() time.Duration {
	return time.Duration(r.WorkloadDays) * 24 * time.Hour
}
