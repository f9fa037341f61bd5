package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Custody    CustodyConfig    `mapstructure:"custody"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	Conversion ConversionConfig `mapstructure:"conversion"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	AES        AESConfig        `mapstructure:"aes"`
	Operators  []OperatorConfig `mapstructure:"operators"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Mode          string `mapstructure:"mode"`            // debug, release, test
	PublicBaseURL string `mapstructure:"public_base_url"` // used for provider redirect URLs
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, mongo, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type MongoConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type ChainConfig struct {
	Driver              string        `mapstructure:"driver"` // ethereum, fake
	RPCURLs             []string      `mapstructure:"rpc_urls"`
	ChainID             int64         `mapstructure:"chain_id"`
	ContractAddress     string        `mapstructure:"contract_address"`
	OperatorAddress     string        `mapstructure:"operator_address"` // when set, signs mints; burns are signed by the holder
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	MaxFailures         int           `mapstructure:"max_failures"`
	Cooldown            time.Duration `mapstructure:"cooldown"`
	ProbeInterval       time.Duration `mapstructure:"probe_interval"`
}

type CustodyConfig struct {
	Mode       string   `mapstructure:"mode"` // sealed, hd
	Keys       []string `mapstructure:"keys"` // address:aes-gcm-ciphertext
	Mnemonic   string   `mapstructure:"mnemonic"`
	Passphrase string   `mapstructure:"passphrase"`
	ScanLimit  uint32   `mapstructure:"scan_limit"`
}

type PaymentConfig struct {
	Driver        string `mapstructure:"driver"` // stripe, fake
	APIKey        string `mapstructure:"api_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	Currency      string `mapstructure:"currency"`
	Country       string `mapstructure:"country"`
}

type ConversionConfig struct {
	FiatDecimals  int32  `mapstructure:"fiat_decimals"`
	TokenDecimals int32  `mapstructure:"token_decimals"`
	TokenSymbol   string `mapstructure:"token_symbol"`
}

type SettlementConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	ReconcileMinAge   time.Duration `mapstructure:"reconcile_min_age"`
	ReconcileBatch    int           `mapstructure:"reconcile_batch"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	OutcomeCacheTTL   time.Duration `mapstructure:"outcome_cache_ttl"`
}

type AlertsConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Secret     string `mapstructure:"secret"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

// OperatorConfig is a back-office login. PasswordHash is argon2id encoded.
type OperatorConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: FTB_ (fiat token bridge).
// Nested keys use underscore: FTB_CHAIN_RPC_URLS, FTB_PAYMENT_WEBHOOK_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.public_base_url", "http://localhost:8080")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "token_bridge")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "token_bridge")
	v.SetDefault("mongo.timeout", "10s")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("chain.driver", "ethereum")
	v.SetDefault("chain.rpc_urls", []string{"http://localhost:8545"})
	v.SetDefault("chain.chain_id", 31337)
	v.SetDefault("chain.contract_address", "")
	v.SetDefault("chain.operator_address", "")
	v.SetDefault("chain.confirmation_timeout", "60s")
	v.SetDefault("chain.poll_interval", "2s")
	v.SetDefault("chain.max_failures", 3)
	v.SetDefault("chain.cooldown", "30s")
	v.SetDefault("chain.probe_interval", "15s")
	v.SetDefault("custody.mode", "sealed")
	v.SetDefault("custody.keys", []string{})
	v.SetDefault("custody.mnemonic", "")
	v.SetDefault("custody.passphrase", "")
	v.SetDefault("custody.scan_limit", 1000)
	v.SetDefault("payment.driver", "stripe")
	v.SetDefault("payment.api_key", "")
	v.SetDefault("payment.webhook_secret", "")
	v.SetDefault("payment.currency", "gbp")
	v.SetDefault("payment.country", "GB")
	v.SetDefault("conversion.fiat_decimals", 2)
	v.SetDefault("conversion.token_decimals", 2)
	v.SetDefault("conversion.token_symbol", "TGBP")
	v.SetDefault("settlement.reconcile_interval", "1m")
	v.SetDefault("settlement.reconcile_min_age", "2m")
	v.SetDefault("settlement.reconcile_batch", 50)
	v.SetDefault("settlement.max_attempts", 10)
	v.SetDefault("settlement.outcome_cache_ttl", "24h")
	v.SetDefault("alerts.webhook_url", "")
	v.SetDefault("alerts.secret", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "8h")
	v.SetDefault("jwt.issuer", "fiat-token-bridge")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// FTB_CHAIN_RPC_URLS -> chain.rpc_urls (comma separated)
	v.SetEnvPrefix("FTB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional: env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings the selected drivers depend on.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "postgres", "mongo", "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of postgres, mongo, memory", c.Storage.Driver))
	}

	switch c.Chain.Driver {
	case "ethereum":
		if len(c.Chain.RPCURLs) == 0 {
			errs = append(errs, errors.New("chain.rpc_urls needs at least one endpoint"))
		}
		if c.Chain.ContractAddress == "" {
			errs = append(errs, errors.New("chain.contract_address is required"))
		}
		if c.Chain.ChainID <= 0 {
			errs = append(errs, errors.New("chain.chain_id must be positive"))
		}
	case "fake":
	default:
		errs = append(errs, fmt.Errorf("chain.driver %q is not one of ethereum, fake", c.Chain.Driver))
	}
	if c.Chain.ConfirmationTimeout <= 0 {
		errs = append(errs, errors.New("chain.confirmation_timeout must be positive"))
	}

	switch c.Custody.Mode {
	case "sealed":
		if c.AES.Key == "" && len(c.Custody.Keys) > 0 {
			errs = append(errs, errors.New("aes.key is required to unseal custody.keys"))
		}
	case "hd":
		if c.Custody.Mnemonic == "" {
			errs = append(errs, errors.New("custody.mnemonic is required in hd mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("custody.mode %q is not one of sealed, hd", c.Custody.Mode))
	}

	switch c.Payment.Driver {
	case "stripe":
		if c.Payment.APIKey == "" {
			errs = append(errs, errors.New("payment.api_key is required"))
		}
	case "fake":
	default:
		errs = append(errs, fmt.Errorf("payment.driver %q is not one of stripe, fake", c.Payment.Driver))
	}
	if c.Payment.WebhookSecret == "" {
		errs = append(errs, errors.New("payment.webhook_secret is required"))
	}

	if c.Conversion.FiatDecimals < 0 || c.Conversion.TokenDecimals < 0 || c.Conversion.TokenDecimals > 36 {
		errs = append(errs, errors.New("conversion decimals out of range"))
	}
	if c.Settlement.ReconcileInterval <= 0 {
		errs = append(errs, errors.New("settlement.reconcile_interval must be positive"))
	}
	// A younger record may still have a webhook waiting on its receipt.
	if c.Settlement.ReconcileMinAge <= c.Chain.ConfirmationTimeout {
		errs = append(errs, fmt.Errorf("settlement.reconcile_min_age (%s) must exceed chain.confirmation_timeout (%s)",
			c.Settlement.ReconcileMinAge, c.Chain.ConfirmationTimeout))
	}
	if len(c.Operators) > 0 && c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required when operators are configured"))
	}

	return errors.Join(errs...)
}
