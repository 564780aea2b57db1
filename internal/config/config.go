package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Service holds process settings read from the environment (prefix CHECKOUT_).
type Service struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPPort        string        `envconfig:"HTTP_PORT" default:"8080"`
	GRPCPort        string        `envconfig:"GRPC_PORT" default:"50060"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	PaymentTimeout  time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"10s"`
	AdminToken      string        `envconfig:"ADMIN_TOKEN" default:"change-me"`

	BreakerFailures uint32        `envconfig:"BREAKER_FAILURES" default:"5"`
	BreakerCooldown time.Duration `envconfig:"BREAKER_COOLDOWN" default:"30s"`

	PricingFile string `envconfig:"PRICING_FILE"`

	DBHost                string `envconfig:"DB_HOST" default:"localhost"`
	DBPort                int    `envconfig:"DB_PORT" default:"5432"`
	DBUser                string `envconfig:"DB_USER" default:"postgres"`
	DBPassword            string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName                string `envconfig:"DB_NAME" default:"checkout"`
	OrderMigrationsPath   string `envconfig:"ORDER_MIGRATIONS_PATH" default:"./internal/repository/migrations/postgres"`
	CatalogPath           string `envconfig:"CATALOG_DB_PATH" default:"./catalog.db"`
	CatalogMigrationsPath string `envconfig:"CATALOG_MIGRATIONS_PATH" default:"./internal/catalog/migrations"`

	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"checkout"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"2h"`

	KafkaBrokers       []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	OrderEventsTopic   string   `envconfig:"ORDER_EVENTS_TOPIC" default:"order-events"`
	PaymentEventsTopic string   `envconfig:"PAYMENT_EVENTS_TOPIC" default:"payment-events"`
	ConsumerGroup      string   `envconfig:"CONSUMER_GROUP" default:"checkout-service"`
}

func LoadService() (Service, error) {
	var cfg Service
	if err := envconfig.Process("checkout", &cfg); err != nil {
		return Service{}, fmt.Errorf("load service config: %w", err)
	}
	return cfg, nil
}
