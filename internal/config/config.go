package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Server holds the storefront service configuration, read from the
// environment.
type Server struct {
	DatabaseURL  string        `envconfig:"DATABASE_URL" required:"true"`
	Port         string        `envconfig:"PORT" default:"8080"`
	KafkaBrokers []string      `envconfig:"KAFKA_BROKERS"`
	OrderTopic   string        `envconfig:"ORDER_TOPIC" default:"order.created"`
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`
}

// Worker holds the fulfillment worker configuration.
type Worker struct {
	DatabaseURL  string   `envconfig:"DATABASE_URL" required:"true"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	OrderTopic   string   `envconfig:"ORDER_TOPIC" default:"order.created"`
	GroupID      string   `envconfig:"CONSUMER_GROUP" default:"fulfillment-worker"`
}

func LoadServer() (Server, error) {
	var c Server
	err := envconfig.Process("", &c)
	return c, err
}

func LoadWorker() (Worker, error) {
	var c Worker
	err := envconfig.Process("", &c)
	return c, err
}
