package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	devAccessSecret  = "dev-access-secret-change-in-production"
	devRefreshSecret = "dev-refresh-secret-change-in-production"
)

var (
	ErrDefaultSecret = errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set in production")
	ErrSameSecrets   = errors.New("access and refresh token secrets must differ")
	ErrStorageDriver = errors.New("STORAGE_DRIVER must be one of: minio, s3")
)

type Config struct {
	Port string
	Env  string

	MongoURI      string
	MongoDatabase string

	AccessSecret    string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	CORSOrigins []string

	RedisAddr string
	ServerID  string

	KafkaBrokers []string
	KafkaTopic   string

	Storage StorageConfig

	AuthRateRPS   float64
	AuthRateBurst int

	MaxPostImages int

	OTELEndpoint    string
	OTELServiceName string
}

type StorageConfig struct {
	Driver    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PublicURL string
}

// Load reads the process environment. Call godotenv.Load before it if a .env file should apply.
func Load() (Config, error) {
	cfg := Config{
		Port:            getEnv("PORT", "5000"),
		Env:             getEnv("ENV", "development"),
		MongoURI:        getEnv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase:   getEnv("MONGODB_DATABASE", "social-application"),
		AccessSecret:    getEnv("JWT_ACCESS_SECRET", devAccessSecret),
		RefreshSecret:   getEnv("JWT_REFRESH_SECRET", devRefreshSecret),
		AccessTokenTTL:  getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		CORSOrigins:     getList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:5000"}),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		ServerID:        getEnv("SERVER_ID", "server-1"),
		KafkaBrokers:    getList("KAFKA_BROKERS", nil),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "social.activity"),
		Storage: StorageConfig{
			Driver:    getEnv("STORAGE_DRIVER", "minio"),
			Endpoint:  getEnv("S3_ENDPOINT", "127.0.0.1:9000"),
			AccessKey: getEnv("S3_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("S3_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("S3_BUCKET", "social-application"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			UseSSL:    getBool("S3_USE_SSL", false),
			PublicURL: getEnv("S3_PUBLIC_URL", ""),
		},
		AuthRateRPS:     getFloat("AUTH_RATE_RPS", 5),
		AuthRateBurst:   getInt("AUTH_RATE_BURST", 10),
		MaxPostImages:   getInt("MAX_POST_IMAGES", 4),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELServiceName: getEnv("OTEL_SERVICE_NAME", "socialnet"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.IsProduction() && (c.AccessSecret == devAccessSecret || c.RefreshSecret == devRefreshSecret) {
		return ErrDefaultSecret
	}
	if c.AccessSecret == c.RefreshSecret {
		return ErrSameSecrets
	}
	switch c.Storage.Driver {
	case "minio", "s3":
	default:
		return ErrStorageDriver
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
