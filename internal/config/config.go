package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	WalletEvents string `mapstructure:"wallet_events"`
}

// BusinessConfig carries the money-movement knobs. All amounts are minor
// units (cents); fee percentage is basis points to keep the math integral.
type BusinessConfig struct {
	DepositMin int64 `mapstructure:"deposit_min"`
	DepositMax int64 `mapstructure:"deposit_max"`

	WithdrawMin int64 `mapstructure:"withdraw_min"`
	WithdrawMax int64 `mapstructure:"withdraw_max"`

	FeeBasisPoints int64 `mapstructure:"fee_basis_points"` // 290 = 2.9%
	FeeFixed       int64 `mapstructure:"fee_fixed"`        // 30 = $0.30

	// Withdrawals above this need a verified KYC status.
	KYCWithdrawalThreshold int64 `mapstructure:"kyc_withdrawal_threshold"`

	// How long a withdrawal sits PENDING before the settler job pushes it
	// through the payment authorizer.
	WithdrawalSettleDelayMinutes int `mapstructure:"withdrawal_settle_delay_minutes"`

	DefaultFreezeHours     int `mapstructure:"default_freeze_hours"`
	DisputeDeadlineDays    int `mapstructure:"dispute_deadline_days"`
	ChargebackDeadlineDays int `mapstructure:"chargeback_deadline_days"`

	MaxRetryCount   int `mapstructure:"max_retry_count"`   // outbox sender
	BalanceRetryMax int `mapstructure:"balance_retry_max"` // optimistic-lock retries on wallet updates
}

var GlobalConfig *Config

// LoadConfig reads the YAML config file and fills in business defaults.
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("read config file: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("parse config file: %v", err)
	}

	ApplyBusinessDefaults(&config.Business)

	GlobalConfig = config
	return config
}

// ApplyBusinessDefaults fills zero-valued business knobs with the product
// defaults. Exposed so tests can build a config without a YAML file.
func ApplyBusinessDefaults(b *BusinessConfig) {
	if b.DepositMin == 0 {
		b.DepositMin = 100 // $1.00
	}
	if b.DepositMax == 0 {
		b.DepositMax = 5_000_000 // $50,000
	}
	if b.WithdrawMin == 0 {
		b.WithdrawMin = 1_000 // $10
	}
	if b.WithdrawMax == 0 {
		b.WithdrawMax = 1_000_000 // $10,000
	}
	if b.FeeBasisPoints == 0 {
		b.FeeBasisPoints = 290
	}
	if b.FeeFixed == 0 {
		b.FeeFixed = 30
	}
	if b.KYCWithdrawalThreshold == 0 {
		b.KYCWithdrawalThreshold = 100_000 // $1,000
	}
	if b.WithdrawalSettleDelayMinutes == 0 {
		b.WithdrawalSettleDelayMinutes = 5
	}
	if b.DefaultFreezeHours == 0 {
		b.DefaultFreezeHours = 72
	}
	if b.DisputeDeadlineDays == 0 {
		b.DisputeDeadlineDays = 45
	}
	if b.ChargebackDeadlineDays == 0 {
		b.ChargebackDeadlineDays = 10
	}
	if b.MaxRetryCount == 0 {
		b.MaxRetryCount = 5
	}
	if b.BalanceRetryMax == 0 {
		b.BalanceRetryMax = 3
	}
}
