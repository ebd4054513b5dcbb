package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	LLM       LLMConfig
	WhatsApp  WhatsAppConfig
	Email     EmailConfig
	HITL      HITLConfig
	Training  TrainingConfig
	Delivery  DeliveryConfig
	Scheduler SchedulerConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	// TTL in minutes for cached insight snapshots.
	InsightTTL int
}

type LLMConfig struct {
	Enabled     bool
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type WhatsAppConfig struct {
	// Provider selects the outbound client: "meta" or "twilio".
	Provider string
	Meta     MetaConfig
	Twilio   TwilioConfig
}

type MetaConfig struct {
	Token       string
	PhoneID     string
	AppSecret   string
	VerifyToken string
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// DigestTo receives the post-run delivery summary.
	DigestTo string
}

type HITLConfig struct {
	// ReviewRequired gates generated drafts behind human approval.
	ReviewRequired bool
	// SendOnApprove delivers immediately when a reviewer approves.
	SendOnApprove bool
}

type TrainingConfig struct {
	// SnapshotRetentionDays bounds insight_cache growth; superseded snapshot
	// rows older than this are pruned after each training run.
	SnapshotRetentionDays int
}

type DeliveryConfig struct {
	// SendDelayMs throttles consecutive provider sends.
	SendDelayMs int
}

type SchedulerConfig struct {
	Enabled bool
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
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/liaxp")

	viper.SetEnvPrefix("LIAXP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/liaxp.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.insightTTL", 360)

	viper.SetDefault("llm.enabled", false)
	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.maxTokens", 500)
	viper.SetDefault("llm.timeoutSec", 30)

	viper.SetDefault("whatsapp.provider", "meta")
	viper.SetDefault("whatsapp.twilio.from", "whatsapp:+14155238886")

	viper.SetDefault("email.enabled", false)
	viper.SetDefault("email.port", 587)

	viper.SetDefault("hitl.reviewRequired", true)
	viper.SetDefault("hitl.sendOnApprove", true)

	viper.SetDefault("training.snapshotRetentionDays", 30)

	viper.SetDefault("delivery.sendDelayMs", 200)

	viper.SetDefault("scheduler.enabled", true)

	viper.SetDefault("ratelimit.maxRequestsPerMinute", 60)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
