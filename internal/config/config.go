package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql or postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Queue struct {
		MaxAttempts         int `yaml:"maxAttempts"`
		BackoffBaseSeconds  int `yaml:"backoffBaseSeconds"`
		BackoffCapSeconds   int `yaml:"backoffCapSeconds"`
		PollIntervalSeconds int `yaml:"pollIntervalSeconds"`
		LockTTLSeconds      int `yaml:"lockTTLSeconds"`
	} `yaml:"queue"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	Auth struct {
		// tenant -> API key; empty map disables auth
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`
}

// Load reads the config.yaml file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Helper to build the MySQL DSN
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper to build the PostgreSQL DSN
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}

// QueueBackoffBase returns the configured backoff base as a duration.
func (c *Config) QueueBackoffBase() time.Duration {
	return time.Duration(c.Queue.BackoffBaseSeconds) * time.Second
}

func (c *Config) QueueBackoffCap() time.Duration {
	return time.Duration(c.Queue.BackoffCapSeconds) * time.Second
}

func (c *Config) QueuePollInterval() time.Duration {
	return time.Duration(c.Queue.PollIntervalSeconds) * time.Second
}

func (c *Config) QueueLockTTL() time.Duration {
	return time.Duration(c.Queue.LockTTLSeconds) * time.Second
}
