package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		MaxRetries int           `yaml:"max_retries"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	ML struct {
		ModelDir            string  `yaml:"model_dir"`
		SeqLength           int     `yaml:"seq_length"`
		ForecastHorizon     int     `yaml:"forecast_horizon"`
		RecurrentUnits      int     `yaml:"recurrent_units"`
		DenseUnits          int     `yaml:"dense_units"`
		Epochs              int     `yaml:"epochs"`
		AnomalySeqLength    int     `yaml:"anomaly_seq_length"`
		ThresholdPercentile float64 `yaml:"threshold_percentile"`
		Contamination       float64 `yaml:"contamination"`
		CacheTTL            struct {
			Forecast  time.Duration `yaml:"forecast"`
			Anomalies time.Duration `yaml:"anomalies"`
			Status    time.Duration `yaml:"status"`
		} `yaml:"cache_ttl"`
	} `yaml:"ml"`
	Security struct {
		EncryptionKey string `yaml:"encryption_key"`
		Salt          string `yaml:"salt"`
	} `yaml:"security"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		c.Security.EncryptionKey = v
	}
	if v := os.Getenv("ENCRYPTION_SALT"); v != "" {
		c.Security.Salt = v
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.ML.ModelDir = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ML.ModelDir == "" {
		return fmt.Errorf("ml.model_dir is required")
	}
	if c.ML.SeqLength <= 0 {
		c.ML.SeqLength = 30
	}
	if c.ML.ForecastHorizon <= 0 {
		c.ML.ForecastHorizon = 30
	}
	if c.ML.RecurrentUnits <= 0 {
		c.ML.RecurrentUnits = 64
	}
	if c.ML.DenseUnits <= 0 {
		c.ML.DenseUnits = 32
	}
	if c.ML.Epochs <= 0 {
		c.ML.Epochs = 50
	}
	if c.ML.AnomalySeqLength <= 0 {
		c.ML.AnomalySeqLength = 7
	}
	if c.ML.ThresholdPercentile <= 0 {
		c.ML.ThresholdPercentile = 95
	}
	if c.ML.Contamination <= 0 {
		c.ML.Contamination = 0.05
	}
	return nil
}
