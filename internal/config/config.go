package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/flashmart/service-flashsale/pkg/config"
)

// SchedulerConfig holds the intervals for the background loops.
type SchedulerConfig struct {
	ActivationInterval time.Duration
	SweepInterval      time.Duration
}

// ServiceConfig holds all configuration for the flash-sale service.
type ServiceConfig struct {
	Port            string
	AppEnv          string
	DBConfig        config.DatabaseConfig
	JWTConfig       config.JWTConfig
	KafkaConfig     config.KafkaConfig
	SchedulerConfig SchedulerConfig
	ReservationTTL  time.Duration
}

// Load reads configuration from environment variables and returns a ServiceConfig.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("flashsale")
	if err != nil {
		return nil, err
	}

	ttl := v.GetDuration("RESERVATION_TTL")
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &ServiceConfig{
		Port:            config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:          config.GetAppEnv(v),
		DBConfig:        config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:       config.LoadJWTConfig(v),
		KafkaConfig:     config.LoadKafkaConfig(v),
		SchedulerConfig: loadSchedulerConfig(v),
		ReservationTTL:  ttl,
	}, nil
}

// loadSchedulerConfig extracts the background loop intervals from Viper.
func loadSchedulerConfig(v *viper.Viper) SchedulerConfig {
	activation := v.GetDuration("ACTIVATION_INTERVAL")
	if activation <= 0 {
		activation = time.Minute
	}
	sweep := v.GetDuration("SWEEP_INTERVAL")
	if sweep <= 0 {
		sweep = time.Minute
	}
	return SchedulerConfig{
		ActivationInterval: activation,
		SweepInterval:      sweep,
	}
}
