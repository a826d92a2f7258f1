package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"fern-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL
	DatabaseDriver              string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                string        `env:"DB_HOST" env-default:""`
	DatabasePort                string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword            string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                string        `env:"DB_NAME" env-default:"fern"`
	DatabaseSSLMode             string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`

	// Kafka Producer settings
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"true"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"linkage-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Embedding provider
	EmbeddingBaseURL        string `env:"EMBEDDING_BASE_URL" env-default:"https://api.openai.com/v1"`
	EmbeddingAPIKey         string `env:"EMBEDDING_API_KEY" env-default:""`
	EmbeddingModel          string `env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	EmbeddingBatchSize      int    `env:"EMBEDDING_BATCH_SIZE" env-default:"512"`
	EmbeddingMaxInFlight    int    `env:"EMBEDDING_MAX_IN_FLIGHT" env-default:"20"`
	EmbeddingTimeoutSeconds int    `env:"EMBEDDING_TIMEOUT_SECONDS" env-default:"60"`

	// Match oracle
	OracleBaseURL        string `env:"ORACLE_BASE_URL" env-default:"https://api.openai.com/v1"`
	OracleAPIKey         string `env:"ORACLE_API_KEY" env-default:""`
	OracleModel          string `env:"ORACLE_MODEL" env-default:"gpt-4o-mini"`
	OracleMaxInFlight    int    `env:"ORACLE_MAX_IN_FLIGHT" env-default:"20"`
	OracleTimeoutSeconds int    `env:"ORACLE_TIMEOUT_SECONDS" env-default:"60"`

	// Linkage loops
	BootstrapBudget int     `env:"LINKAGE_BOOTSTRAP_BUDGET" env-default:"500"`
	BatchSize       int     `env:"LINKAGE_BATCH_SIZE" env-default:"100"`
	GradientWindow  int     `env:"LINKAGE_GRADIENT_WINDOW" env-default:"5"`
	SamplingSigma   float64 `env:"LINKAGE_SAMPLING_SIGMA" env-default:"0.2"`
	LabelCap        int     `env:"LINKAGE_LABEL_CAP" env-default:"10000"`
	SamplingSeed    int64   `env:"LINKAGE_SAMPLING_SEED" env-default:"0"`

	// Job runner
	JobWorkerCount         int `env:"JOB_WORKER_COUNT" env-default:"2"`
	JobPollIntervalSeconds int `env:"JOB_POLL_INTERVAL_SECONDS" env-default:"5"`
}
