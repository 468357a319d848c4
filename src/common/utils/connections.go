package utils

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

func NewRabbitConnection() (*amqp.Connection, *amqp.Channel, error) {
	connection, err := NewRabbitConnectionOnly()
	if err != nil {
		return nil, nil, err
	}
	channel, err := connection.Channel()
	if err != nil {
		connection.Close()
		return nil, nil, err
	}

	return connection, channel, nil
}

func NewRabbitConnectionOnly() (*amqp.Connection, error) {
	mqUser := os.Getenv("MQ_USER")
	mqPassword := os.Getenv("MQ_PASSWORD")
	mqHost := os.Getenv("MQ_HOST")
	mqPort := os.Getenv("MQ_PORT")
	if mqHost == "" {
		return nil, fmt.Errorf("MQ_HOST is not set")
	}
	if mqPort == "" {
		mqPort = "5672"
	}

	config := amqp.Config{
		Heartbeat: 60 * time.Second,
		Locale:    "en_US",
	}

	return amqp.DialConfig(fmt.Sprintf("amqp://%s:%s@%s:%s/", mqUser, mqPassword, mqHost, mqPort), config)
}

func NewRedisClient() *redis.Client {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		// default to the redis service in the cluster
		redisAddr = "redis:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	return rdb
}

// PostgresConnectionString prefers DATABASE_URL and falls back to the
// POSTGRES_* parts.
func PostgresConnectionString() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	sslmode := os.Getenv("POSTGRES_SSLMODE")
	if sslmode == "" {
		sslmode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		os.Getenv("POSTGRES_HOST"),
		os.Getenv("POSTGRES_PORT"),
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("POSTGRES_DB"),
		sslmode,
	)
}

func NewPostgresConnection(ctx context.Context) (*pgxpool.Pool, error) {
	connection, err := pgxpool.New(ctx, PostgresConnectionString())
	if err != nil {
		return nil, err
	}

	if err := connection.Ping(ctx); err != nil {
		connection.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return connection, nil
}
