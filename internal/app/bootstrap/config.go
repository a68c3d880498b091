package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string
	MaxDBConns   int32

	CarrierBaseURL    string
	CarrierAPIKey     string
	CarrierFromNumber string
	CarrierTimeout    time.Duration
	WebhookToken      string

	KafkaConsumerGroup            string
	KafkaTopicAssignmentCancelled string
	KafkaTopicCampaignEvents      string

	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	ConsumerPollInterval time.Duration
	SweepInterval        time.Duration

	CampaignTimeout     time.Duration
	MaxContacts         int
	FirstWaveSize       int
	FirstWaveMin        int
	SecondWaveThreshold int
	SecondWaveSize      int
	LockTTL             time.Duration
	UrgentWindow        time.Duration

	AllowUnlockedAssignment bool
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL                   string   `yaml:"postgres_url"`
		RedisURL                      string   `yaml:"redis_url"`
		KafkaBrokers                  []string `yaml:"kafka_brokers"`
		KafkaConsumerGroup            string   `yaml:"kafka_consumer_group"`
		KafkaTopicAssignmentCancelled string   `yaml:"kafka_topic_assignment_cancelled"`
		KafkaTopicCampaignEvents      string   `yaml:"kafka_topic_campaign_events"`
		CarrierBaseURL                string   `yaml:"carrier_base_url"`
		CarrierFromNumber             string   `yaml:"carrier_from_number"`
	} `yaml:"dependencies"`
	Dispatch struct {
		CampaignTimeoutMinutes int `yaml:"campaign_timeout_minutes"`
		MaxContacts            int `yaml:"max_contacts"`
		FirstWaveSize          int `yaml:"first_wave_size"`
		FirstWaveMin           int `yaml:"first_wave_min"`
		SecondWaveThreshold    int `yaml:"second_wave_threshold"`
		SecondWaveSize         int `yaml:"second_wave_size"`
		LockTTLSeconds         int `yaml:"lock_ttl_seconds"`
		UrgentWindowHours      int `yaml:"urgent_window_hours"`
	} `yaml:"dispatch"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                     "dispatch-service",
		HTTPPort:                      8080,
		GRPCPort:                      9090,
		MaxDBConns:                    20,
		CarrierTimeout:                10 * time.Second,
		KafkaConsumerGroup:            "dispatch-service",
		KafkaTopicAssignmentCancelled: "assignment.cancelled",
		KafkaTopicCampaignEvents:      "dispatch.campaign_events",
		OutboxPollInterval:            2 * time.Second,
		OutboxBatchSize:               100,
		ConsumerPollInterval:          2 * time.Second,
		SweepInterval:                 30 * time.Second,
		CampaignTimeout:               30 * time.Minute,
		MaxContacts:                   15,
		FirstWaveSize:                 10,
		FirstWaveMin:                  5,
		SecondWaveThreshold:           3,
		SecondWaveSize:                5,
		LockTTL:                       30 * time.Second,
		UrgentWindow:                  4 * time.Hour,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
		}
		if f.Dependencies.KafkaConsumerGroup != "" {
			cfg.KafkaConsumerGroup = f.Dependencies.KafkaConsumerGroup
		}
		if f.Dependencies.KafkaTopicAssignmentCancelled != "" {
			cfg.KafkaTopicAssignmentCancelled = f.Dependencies.KafkaTopicAssignmentCancelled
		}
		if f.Dependencies.KafkaTopicCampaignEvents != "" {
			cfg.KafkaTopicCampaignEvents = f.Dependencies.KafkaTopicCampaignEvents
		}
		cfg.CarrierBaseURL = f.Dependencies.CarrierBaseURL
		cfg.CarrierFromNumber = f.Dependencies.CarrierFromNumber
		if f.Dispatch.CampaignTimeoutMinutes > 0 {
			cfg.CampaignTimeout = time.Duration(f.Dispatch.CampaignTimeoutMinutes) * time.Minute
		}
		if f.Dispatch.MaxContacts > 0 {
			cfg.MaxContacts = f.Dispatch.MaxContacts
		}
		if f.Dispatch.FirstWaveSize > 0 {
			cfg.FirstWaveSize = f.Dispatch.FirstWaveSize
		}
		if f.Dispatch.FirstWaveMin > 0 {
			cfg.FirstWaveMin = f.Dispatch.FirstWaveMin
		}
		if f.Dispatch.SecondWaveThreshold > 0 {
			cfg.SecondWaveThreshold = f.Dispatch.SecondWaveThreshold
		}
		if f.Dispatch.SecondWaveSize > 0 {
			cfg.SecondWaveSize = f.Dispatch.SecondWaveSize
		}
		if f.Dispatch.LockTTLSeconds > 0 {
			cfg.LockTTL = time.Duration(f.Dispatch.LockTTLSeconds) * time.Second
		}
		if f.Dispatch.UrgentWindowHours > 0 {
			cfg.UrgentWindow = time.Duration(f.Dispatch.UrgentWindowHours) * time.Hour
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.KafkaTopicAssignmentCancelled = envOrDefault("KAFKA_TOPIC_ASSIGNMENT_CANCELLED", cfg.KafkaTopicAssignmentCancelled)
	cfg.KafkaTopicCampaignEvents = envOrDefault("KAFKA_TOPIC_CAMPAIGN_EVENTS", cfg.KafkaTopicCampaignEvents)
	cfg.CarrierBaseURL = envOrDefault("CARRIER_BASE_URL", cfg.CarrierBaseURL)
	cfg.CarrierAPIKey = envOrDefault("CARRIER_API_KEY", cfg.CarrierAPIKey)
	cfg.CarrierFromNumber = envOrDefault("CARRIER_FROM_NUMBER", cfg.CarrierFromNumber)
	cfg.WebhookToken = envOrDefault("WEBHOOK_TOKEN", cfg.WebhookToken)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.CarrierTimeout = time.Duration(envInt("CARRIER_TIMEOUT_SECONDS", int(cfg.CarrierTimeout.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.ConsumerPollInterval = time.Duration(envInt("CONSUMER_POLL_SECONDS", int(cfg.ConsumerPollInterval.Seconds()))) * time.Second
	cfg.SweepInterval = time.Duration(envInt("SWEEP_INTERVAL_SECONDS", int(cfg.SweepInterval.Seconds()))) * time.Second
	cfg.CampaignTimeout = time.Duration(envInt("CAMPAIGN_TIMEOUT_MINUTES", int(cfg.CampaignTimeout.Minutes()))) * time.Minute
	cfg.MaxContacts = envInt("MAX_CONTACTS", cfg.MaxContacts)
	cfg.FirstWaveSize = envInt("FIRST_WAVE_SIZE", cfg.FirstWaveSize)
	cfg.FirstWaveMin = envInt("FIRST_WAVE_MIN", cfg.FirstWaveMin)
	cfg.SecondWaveThreshold = envInt("SECOND_WAVE_THRESHOLD", cfg.SecondWaveThreshold)
	cfg.SecondWaveSize = envInt("SECOND_WAVE_SIZE", cfg.SecondWaveSize)
	cfg.LockTTL = time.Duration(envInt("LOCK_TTL_SECONDS", int(cfg.LockTTL.Seconds()))) * time.Second
	cfg.UrgentWindow = time.Duration(envInt("URGENT_WINDOW_HOURS", int(cfg.UrgentWindow.Hours()))) * time.Hour
	cfg.AllowUnlockedAssignment = envBool("ALLOW_UNLOCKED_ASSIGNMENT", cfg.AllowUnlockedAssignment)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	items := strings.Split(raw, ",")
	return trimNonEmpty(items)
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
