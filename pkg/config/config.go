package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret string
}

// KafkaConfig holds broker addresses and the consumer group prefix.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// Load creates a Viper instance bound to environment variables. An optional
// .env file for the service is read if present; env vars always win.
func Load(service string) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetConfigName(".env." + service)
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// GetServicePort returns the listen address from the given key, defaulting to :8080.
func GetServicePort(v *viper.Viper, key string) string {
	port := v.GetString(key)
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

// GetAppEnv returns the application environment, defaulting to development.
func GetAppEnv(v *viper.Viper) string {
	env := v.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}
	return env
}

// LoadDatabaseConfig extracts PostgreSQL settings from Viper.
func LoadDatabaseConfig(v *viper.Viper, dbNameKey string) DatabaseConfig {
	cfg := DatabaseConfig{
		Host:     v.GetString("DB_HOST"),
		Port:     v.GetString("DB_PORT"),
		User:     v.GetString("DB_USER"),
		Password: v.GetString("DB_PASSWORD"),
		DBName:   v.GetString(dbNameKey),
		SSLMode:  v.GetString("DB_SSLMODE"),
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == "" {
		cfg.Port = "5432"
	}
	if cfg.User == "" {
		cfg.User = "postgres"
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	return cfg
}

// DSN returns the GORM/pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// DatabaseURL returns the URL form used by golang-migrate.
func (c DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// LoadJWTConfig extracts JWT settings from Viper.
func LoadJWTConfig(v *viper.Viper) JWTConfig {
	secret := v.GetString("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}
	return JWTConfig{Secret: secret}
}

// LoadKafkaConfig extracts Kafka settings from Viper.
func LoadKafkaConfig(v *viper.Viper) KafkaConfig {
	brokers := v.GetString("KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}
	prefix := v.GetString("KAFKA_GROUP_PREFIX")
	if prefix == "" {
		prefix = "flashmart-"
	}
	return KafkaConfig{
		Brokers:     strings.Split(brokers, ","),
		GroupPrefix: prefix,
	}
}
