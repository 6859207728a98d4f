package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Feed struct {
		URL           string `yaml:"url"`
		Stream        string `yaml:"stream"`
		Consumer      string `yaml:"consumer"`
		SubjectFilter string `yaml:"subject_filter"`
	} `yaml:"feed"`

	Snapshot struct {
		Backend   string `yaml:"backend"` // "memory" or "redis"
		RedisAddr string `yaml:"redis_addr"`
		RedisDB   int    `yaml:"redis_db"`
	} `yaml:"snapshot"`

	Tracker struct {
		TickIntervalMS int `yaml:"tick_interval_ms"`
	} `yaml:"tracker"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func defaultConfig() *Config {
	var config Config
	config.Snapshot.Backend = "memory"
	config.Tracker.TickIntervalMS = 1000
	return &config
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}
