package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	MySQL     MySQLConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Engine    EngineConfig
	Validator ValidatorConfig
}

type ServerConfig struct {
	AppEnv   string
	HTTPAddr string
	// UserID scopes persisted state (cart rows, validation stamp) when the
	// engine runs for a single account, e.g. in a device companion process.
	UserID string
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MySQLConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// EngineConfig tunes the write coalescer and the validation triggers.
type EngineConfig struct {
	DebounceDelay    time.Duration
	ForegroundSettle time.Duration
	FocusSettle      time.Duration
	StockReaction    time.Duration
	PeriodicInterval time.Duration
	StaleAfter       time.Duration
}

type ValidatorConfig struct {
	SoftCooldown time.Duration
	HardCooldown time.Duration
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "dev"),
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
			UserID:   getEnv("CART_USER_ID", "default"),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOGGER_LEVEL", "debug"),
			Encoding: getEnv("LOGGER_ENCODING", "console"),
		},
		MySQL: MySQLConfig{
			DSN:          getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/cartsync?parseTime=true"),
			MaxOpenConns: getEnvInt("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("MYSQL_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC_STOCK", "stock.deltas"),
			GroupID: getEnv("KAFKA_GROUP_CART", "cart-sync"),
		},
		Engine: EngineConfig{
			DebounceDelay:    getEnvDuration("DEBOUNCE_DELAY", 800*time.Millisecond),
			ForegroundSettle: getEnvDuration("FOREGROUND_SETTLE", 1500*time.Millisecond),
			FocusSettle:      getEnvDuration("FOCUS_SETTLE", 500*time.Millisecond),
			StockReaction:    getEnvDuration("STOCK_REACTION_DELAY", 2*time.Second),
			PeriodicInterval: getEnvDuration("PERIODIC_INTERVAL", time.Minute),
			StaleAfter:       getEnvDuration("STALE_AFTER", 5*time.Minute),
		},
		Validator: ValidatorConfig{
			SoftCooldown: getEnvDuration("VALIDATION_SOFT_COOLDOWN", 30*time.Second),
			HardCooldown: getEnvDuration("VALIDATION_HARD_COOLDOWN", 5*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}
