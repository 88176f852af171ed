package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	ReconBox ReconBoxConfig `yaml:"reconbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	OrdersSyncedTopicName  string `yaml:"orders_synced_topic_name"`
	StatusChangedTopicName string `yaml:"status_changed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ReconBoxConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	CourierBaseURL        string   `yaml:"courier_base_url"`
	CourierAPIKey         string   `yaml:"courier_api_key"`
	CourierTimeoutSeconds int      `yaml:"courier_timeout_seconds"`
	CourierProviderTags   []string `yaml:"courier_provider_tags"`

	WorkerPassIntervalMinutes int `yaml:"worker_pass_interval_minutes"`
	WorkerBatchSize           int `yaml:"worker_batch_size"`
	WorkerItemDelayMillis     int `yaml:"worker_item_delay_millis"`
	WorkerBatchDelayMillis    int `yaml:"worker_batch_delay_millis"`
	WorkerRateLimitPerMinute  int `yaml:"worker_rate_limit_per_minute"`

	// Scheduled passes run only inside [start, end) local hours; overnight
	// polling just burns courier API quota.
	ActiveWindowStartHour int `yaml:"active_window_start_hour"`
	ActiveWindowEndHour   int `yaml:"active_window_end_hour"`

	LastRunTTLHours int `yaml:"last_run_ttl_hours"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
