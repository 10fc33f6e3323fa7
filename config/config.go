package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Status     StatusConfig
	Database   DatabaseConfig
	MinIO      MinIOConfig
	RabbitMQ   RabbitMQConfig
	Classifier ClassifierConfig
	Worker     WorkerConfig
	Sink       SinkConfig
	Producer   ProducerConfig
	Tracing    TracingConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
	Mode string
}

// StatusConfig configures the worker's health and metrics listener
type StatusConfig struct {
	Enabled bool
	Port    int
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConnections int
	MinConnections int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	SSL       bool
	Location  string
}

type RabbitMQConfig struct {
	Host                 string
	Port                 int
	User                 string
	Password             string
	Queue                string
	Exchange             string
	ExchangeType         string
	RoutingKey           string
	ConsumerTag          string
	Prefetch             int
	ConnectAttempts      int
	ReconnectMaxInterval time.Duration
}

type ClassifierConfig struct {
	Samples int
	Seed    int64
	K       int
}

type WorkerConfig struct {
	Count           int
	ProcessingDelay time.Duration
	MessageTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type SinkConfig struct {
	Enabled         bool
	ResultsDir      string
	MinIOEnabled    bool
	DatabaseEnabled bool
}

// ProducerConfig drives the development publisher. Limit 0 publishes until stopped.
type ProducerConfig struct {
	Interval time.Duration
	Limit    int
}

// Validate checks the settings only the producer uses
func (c *ProducerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("producer.interval must be positive, got %s", c.Interval)
	}
	if c.Limit < 0 {
		return fmt.Errorf("producer.limit must not be negative, got %d", c.Limit)
	}
	return nil
}

type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	SampleRatio    float64
}

type LogConfig struct {
	Level string
}

// ConnectionString generates the connection string for the PostgreSQL database
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// RabbitMQURL generates the connection string for RabbitMQ
func (c *RabbitMQConfig) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.User, c.Password, c.Host, c.Port)
}

// Validate rejects settings that would leave the worker unable to classify or consume
func (c *Config) Validate() error {
	if c.Classifier.Samples <= 0 {
		return fmt.Errorf("classifier.samples must be positive, got %d", c.Classifier.Samples)
	}
	if c.Classifier.K <= 0 || c.Classifier.K > c.Classifier.Samples {
		return fmt.Errorf("classifier.k must be in [1, %d], got %d", c.Classifier.Samples, c.Classifier.K)
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker.count must be at least 1, got %d", c.Worker.Count)
	}
	if c.Worker.ProcessingDelay < 0 {
		return fmt.Errorf("worker.processing.delay must not be negative")
	}
	if c.RabbitMQ.Queue == "" || c.RabbitMQ.Exchange == "" {
		return errors.New("rabbitmq.queue and rabbitmq.exchange are required")
	}
	return nil
}

// Load returns the application configuration from environment variables
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()
	bindAliases()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *fs.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := unmarshalConfig(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	// Worker status listener
	viper.SetDefault("status.enabled", true)
	viper.SetDefault("status.port", 9090)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "team_classifier")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max.connections", 10)
	viper.SetDefault("database.min.connections", 2)

	// MinIO defaults
	viper.SetDefault("minio.endpoint", "localhost:9000")
	viper.SetDefault("minio.access.key", "minioadmin")
	viper.SetDefault("minio.secret.key", "minioadmin")
	viper.SetDefault("minio.bucket", "results")
	viper.SetDefault("minio.ssl", false)
	viper.SetDefault("minio.location", "us-east-1")

	// RabbitMQ defaults
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.queue", "queue_team")
	viper.SetDefault("rabbitmq.exchange", "images")
	// Kept flat: any rabbitmq.exchange.* key would shadow rabbitmq.exchange
	viper.SetDefault("rabbitmq.exchange_type", "topic")
	viper.SetDefault("rabbitmq.routing.key", "team")
	viper.SetDefault("rabbitmq.consumer.tag", "team_worker")
	viper.SetDefault("rabbitmq.prefetch", 0)
	viper.SetDefault("rabbitmq.connect.attempts", 5)
	viper.SetDefault("rabbitmq.reconnect.max.interval", 30*time.Second)

	// Classifier defaults
	viper.SetDefault("classifier.samples", 450)
	viper.SetDefault("classifier.seed", 123)
	viper.SetDefault("classifier.k", 3)

	// Worker defaults
	viper.SetDefault("worker.count", 1)
	viper.SetDefault("worker.processing.delay", 1200*time.Millisecond)
	viper.SetDefault("worker.message.timeout", 30*time.Second)
	viper.SetDefault("worker.shutdown.timeout", 15*time.Second)

	// Sink defaults
	viper.SetDefault("sink.enabled", false)
	viper.SetDefault("sink.results.dir", "/results/teams")
	viper.SetDefault("sink.minio.enabled", false)
	viper.SetDefault("sink.database.enabled", false)

	// Producer defaults
	viper.SetDefault("producer.interval", 2*time.Second)
	viper.SetDefault("producer.limit", 0)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.service.name", "team-classifier")
	viper.SetDefault("tracing.service.version", "1.0.0")
	viper.SetDefault("tracing.environment", "development")
	viper.SetDefault("tracing.otlp.endpoint", "localhost:4317")
	viper.SetDefault("tracing.sample.ratio", 0.5)

	// Log defaults
	viper.SetDefault("log.level", "info")
}

// bindAliases maps the broker's short environment names onto the rabbitmq keys
func bindAliases() {
	_ = viper.BindEnv("rabbitmq.host", "RABBITMQ_HOST", "BROKER_HOST")
	_ = viper.BindEnv("rabbitmq.user", "RABBITMQ_USER", "BROKER_USER")
	_ = viper.BindEnv("rabbitmq.password", "RABBITMQ_PASSWORD", "RABBITMQ_PASS", "BROKER_PASS")
}

func unmarshalConfig(config *Config) error {
	// Server config
	config.Server.Host = viper.GetString("server.host")
	config.Server.Port = viper.GetInt("server.port")
	config.Server.Mode = viper.GetString("server.mode")

	// Status config
	config.Status.Enabled = viper.GetBool("status.enabled")
	config.Status.Port = viper.GetInt("status.port")

	// Database config
	config.Database.Host = viper.GetString("database.host")
	config.Database.Port = viper.GetInt("database.port")
	config.Database.User = viper.GetString("database.user")
	config.Database.Password = viper.GetString("database.password")
	config.Database.DBName = viper.GetString("database.dbname")
	config.Database.SSLMode = viper.GetString("database.sslmode")
	config.Database.MaxConnections = viper.GetInt("database.max.connections")
	config.Database.MinConnections = viper.GetInt("database.min.connections")

	// MinIO config
	config.MinIO.Endpoint = viper.GetString("minio.endpoint")
	config.MinIO.AccessKey = viper.GetString("minio.access.key")
	config.MinIO.SecretKey = viper.GetString("minio.secret.key")
	config.MinIO.Bucket = viper.GetString("minio.bucket")
	config.MinIO.SSL = viper.GetBool("minio.ssl")
	config.MinIO.Location = viper.GetString("minio.location")

	// RabbitMQ config
	config.RabbitMQ.Host = viper.GetString("rabbitmq.host")
	config.RabbitMQ.Port = viper.GetInt("rabbitmq.port")
	config.RabbitMQ.User = viper.GetString("rabbitmq.user")
	config.RabbitMQ.Password = viper.GetString("rabbitmq.password")
	config.RabbitMQ.Queue = viper.GetString("rabbitmq.queue")
	config.RabbitMQ.Exchange = viper.GetString("rabbitmq.exchange")
	config.RabbitMQ.ExchangeType = viper.GetString("rabbitmq.exchange_type")
	config.RabbitMQ.RoutingKey = viper.GetString("rabbitmq.routing.key")
	config.RabbitMQ.ConsumerTag = viper.GetString("rabbitmq.consumer.tag")
	config.RabbitMQ.Prefetch = viper.GetInt("rabbitmq.prefetch")
	config.RabbitMQ.ConnectAttempts = viper.GetInt("rabbitmq.connect.attempts")
	config.RabbitMQ.ReconnectMaxInterval = viper.GetDuration("rabbitmq.reconnect.max.interval")

	// Classifier config
	config.Classifier.Samples = viper.GetInt("classifier.samples")
	config.Classifier.Seed = viper.GetInt64("classifier.seed")
	config.Classifier.K = viper.GetInt("classifier.k")

	// Worker config
	config.Worker.Count = viper.GetInt("worker.count")
	config.Worker.ProcessingDelay = viper.GetDuration("worker.processing.delay")
	config.Worker.MessageTimeout = viper.GetDuration("worker.message.timeout")
	config.Worker.ShutdownTimeout = viper.GetDuration("worker.shutdown.timeout")

	// The broker should never hand a worker more unacked deliveries than it has goroutines
	if config.RabbitMQ.Prefetch <= 0 {
		config.RabbitMQ.Prefetch = config.Worker.Count
	}

	// Sink config
	config.Sink.Enabled = viper.GetBool("sink.enabled")
	config.Sink.ResultsDir = viper.GetString("sink.results.dir")
	config.Sink.MinIOEnabled = viper.GetBool("sink.minio.enabled")
	config.Sink.DatabaseEnabled = viper.GetBool("sink.database.enabled")

	// Producer config
	config.Producer.Interval = viper.GetDuration("producer.interval")
	config.Producer.Limit = viper.GetInt("producer.limit")

	// Tracing config
	config.Tracing.Enabled = viper.GetBool("tracing.enabled")
	config.Tracing.ServiceName = viper.GetString("tracing.service.name")
	config.Tracing.ServiceVersion = viper.GetString("tracing.service.version")
	config.Tracing.Environment = viper.GetString("tracing.environment")
	config.Tracing.OTLPEndpoint = viper.GetString("tracing.otlp.endpoint")
	config.Tracing.SampleRatio = viper.GetFloat64("tracing.sample.ratio")

	// Log config
	config.Log.Level = viper.GetString("log.level")

	return nil
}
