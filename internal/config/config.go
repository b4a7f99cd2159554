// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// APIv3KeyLength is the size of the WeChat Pay API v3 key (AES-256).
const APIv3KeyLength = 32

// CommonConfig holds infrastructure details (database, brokers, cache).
type CommonConfig struct {
	//Database (PostgreSQL) config. DATABASE_URL wins over the split fields.
	DATABASE_URL string
	DB_USER      string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	//Redis is optional; replay cache falls back to memory without it
	REDIS_URL string
	//Kafka config
	KAFKA_TOPIC  string
	KAFKA_BROKER string
	//RabbitMQ config
	RABBITMQ_USER     string
	RABBITMQ_PASSWORD string
	RABBITMQ_HOST     string
	RABBITMQ_PORT     string
	RABBITMQ_QUEUE    string
}

// Config is everything the notify service needs. It is built once in main and
// passed into constructors, nothing reads the environment after that.
type Config struct {
	CommonConfig *CommonConfig

	Port string

	// APIv3Key is nil when missing or not exactly 32 bytes. Decryption then fails closed.
	APIv3Key []byte
	// PlatformPublicKeyPEM verifies Wechatpay-Signature. Empty disables verification.
	PlatformPublicKeyPEM []byte
	// PlatformPublicKeyID (PUB_KEY_ID_...) is required when the PEM is a bare public key.
	PlatformPublicKeyID string
	SkipSignatureVerify  bool
	SignatureMaxSkew     time.Duration

	SettlementTimeout time.Duration
	// EventsBackend is "kafka", "rabbitmq" or "none".
	EventsBackend string
}

// fileConfig mirrors the optional YAML file. Environment still overrides it.
type fileConfig struct {
	Port   string `yaml:"port"`
	Wechat struct {
		APIv3Key          string `yaml:"apiv3_key"`
		PlatformPublicKey string `yaml:"platform_public_key_path"`
		PublicKeyID       string `yaml:"platform_public_key_id"`
		SkipVerify        bool   `yaml:"skip_verify"`
		MaxSkew           string `yaml:"max_skew"`
	} `yaml:"wechatpay"`
	Settlement struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"settlement"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
		KafkaBroker string `yaml:"kafka_broker"`
		KafkaTopic  string `yaml:"kafka_topic"`
		RabbitQueue string `yaml:"rabbitmq_queue"`
	} `yaml:"dependencies"`
	EventsBackend string `yaml:"events_backend"`
}

// LoadCommonConfig returns the shared infrastructure config from the environment.
func LoadCommonConfig() *CommonConfig {
	return &CommonConfig{
		DATABASE_URL: os.Getenv("DATABASE_URL"),
		DB_USER:      os.Getenv("DB_USER"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_HOST:      os.Getenv("DB_HOST"),
		DB_PORT:      os.Getenv("DB_PORT"),
		DB_NAME:      os.Getenv("DB_NAME"),

		REDIS_URL: os.Getenv("REDIS_URL"),

		KAFKA_TOPIC:  os.Getenv("KAFKA_TOPIC"),
		KAFKA_BROKER: os.Getenv("KAFKA_BROKER"),

		RABBITMQ_USER:     os.Getenv("RABBITMQ_USER"),
		RABBITMQ_PASSWORD: os.Getenv("RABBITMQ_PASSWORD"),
		RABBITMQ_HOST:     os.Getenv("RABBITMQ_HOST"),
		RABBITMQ_PORT:     os.Getenv("RABBITMQ_PORT"),
		RABBITMQ_QUEUE:    os.Getenv("RABBITMQ_QUEUE"),
	}
}

// LoadConfig resolves configuration: defaults -> file (if path != "") -> env.
// A missing API key is not an error. The service still boots and acknowledges
// notifications, it just can't settle anything.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		CommonConfig:      LoadCommonConfig(),
		Port:              "80",
		SignatureMaxSkew:  5 * time.Minute,
		SettlementTimeout: 5 * time.Second,
		EventsBackend:     "none",
	}

	var rawKey, publicKeyPath string
	if path != "" {
		fc, err := readFile(path)
		if err != nil {
			return nil, err
		}
		applyFile(cfg, fc)
		rawKey = fc.Wechat.APIv3Key
		publicKeyPath = fc.Wechat.PlatformPublicKey
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("WECHATPAY_APIV3_KEY"); v != "" {
		rawKey = v
	}
	if v := os.Getenv("WECHATPAY_PLATFORM_CERT"); v != "" {
		publicKeyPath = v
	}
	if v := os.Getenv("WECHATPAY_PLATFORM_PUBLIC_KEY"); v != "" {
		publicKeyPath = v
	}
	if v := os.Getenv("WECHATPAY_PUBLIC_KEY_ID"); v != "" {
		cfg.PlatformPublicKeyID = v
	}
	if v := os.Getenv("WECHATPAY_SKIP_VERIFY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("WECHATPAY_SKIP_VERIFY: %w", err)
		}
		cfg.SkipSignatureVerify = b
	}
	if v := os.Getenv("WECHATPAY_MAX_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("WECHATPAY_MAX_SKEW: %w", err)
		}
		cfg.SignatureMaxSkew = d
	}
	if v := os.Getenv("SETTLEMENT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SETTLEMENT_TIMEOUT: %w", err)
		}
		cfg.SettlementTimeout = d
	}
	if v := os.Getenv("EVENTS_BACKEND"); v != "" {
		cfg.EventsBackend = v
	}
	cfg.EventsBackend = strings.ToLower(strings.TrimSpace(cfg.EventsBackend))
	switch cfg.EventsBackend {
	case "none", "kafka", "rabbitmq":
	default:
		return nil, fmt.Errorf("EVENTS_BACKEND must be kafka, rabbitmq or none (got %q)", cfg.EventsBackend)
	}

	cfg.APIv3Key = parseAPIv3Key(rawKey)

	if publicKeyPath != "" {
		pem, err := os.ReadFile(publicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read platform public key: %w", err)
		}
		cfg.PlatformPublicKeyPEM = pem
	}

	return cfg, nil
}

// parseAPIv3Key keeps the key only if it has the exact AES-256 length.
func parseAPIv3Key(raw string) []byte {
	if raw == "" {
		log.Println("[WARN] WECHATPAY_APIV3_KEY is not set, notifications will not be decrypted")
		return nil
	}
	if len(raw) != APIv3KeyLength {
		log.Printf("[WARN] WECHATPAY_APIV3_KEY must be %d bytes (got %d), notifications will not be decrypted", APIv3KeyLength, len(raw))
		return nil
	}
	return []byte(raw)
}

func readFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &fc, nil
}

func applyFile(cfg *Config, fc *fileConfig) {
	if fc.Port != "" {
		cfg.Port = fc.Port
	}
	cfg.SkipSignatureVerify = fc.Wechat.SkipVerify
	cfg.PlatformPublicKeyID = fc.Wechat.PublicKeyID
	if d, err := time.ParseDuration(fc.Wechat.MaxSkew); err == nil && d > 0 {
		cfg.SignatureMaxSkew = d
	}
	if d, err := time.ParseDuration(fc.Settlement.Timeout); err == nil && d > 0 {
		cfg.SettlementTimeout = d
	}
	if fc.EventsBackend != "" {
		cfg.EventsBackend = fc.EventsBackend
	}
	// file values only fill what the environment left empty
	c := cfg.CommonConfig
	if c.DATABASE_URL == "" {
		c.DATABASE_URL = fc.Dependencies.PostgresURL
	}
	if c.REDIS_URL == "" {
		c.REDIS_URL = fc.Dependencies.RedisURL
	}
	if c.KAFKA_BROKER == "" {
		c.KAFKA_BROKER = fc.Dependencies.KafkaBroker
	}
	if c.KAFKA_TOPIC == "" {
		c.KAFKA_TOPIC = fc.Dependencies.KafkaTopic
	}
	if c.RABBITMQ_QUEUE == "" {
		c.RABBITMQ_QUEUE = fc.Dependencies.RabbitQueue
	}
}

// HasDatabase reports whether any postgres settings were provided.
func (c *CommonConfig) HasDatabase() bool {
	return c.DATABASE_URL != "" || c.DB_HOST != ""
}

// GetDBURL formats the config into a PostgreSQL connection string
func (c *CommonConfig) GetDBURL() string {
	if c.DATABASE_URL != "" {
		return c.DATABASE_URL
	}
	port := c.DB_PORT
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.DB_USER, c.DB_PASSWORD, c.DB_HOST, port, c.DB_NAME)
}

// GetRabbitMQURL formats the config into a RabbitMQ connection string
func (c *CommonConfig) GetRabbitMQURL() string {
	//default standard ports if missing
	host := c.RABBITMQ_HOST
	if host == "" {
		host = "localhost"
	}
	port := c.RABBITMQ_PORT
	if port == "" {
		port = "5672"
	}

	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.RABBITMQ_USER, c.RABBITMQ_PASSWORD, host, port)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// VerifySignatures reports whether inbound notifications must carry a valid platform signature.
func (c *Config) VerifySignatures() bool {
	return !c.SkipSignatureVerify && len(c.PlatformPublicKeyPEM) > 0
}
