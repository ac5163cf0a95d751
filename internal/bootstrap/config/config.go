package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"mindvault/internal/bootstrap/logging"
	"mindvault/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Queue    QueueConfig    `mapstructure:"queue"`
	AI       AIConfig       `mapstructure:"ai"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Rewards  RewardsConfig  `mapstructure:"rewards"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type QueueConfig struct {
	Driver      string        `mapstructure:"driver"`
	NATSURL     string        `mapstructure:"nats_url"`
	Attempts    int           `mapstructure:"attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	Concurrency int           `mapstructure:"concurrency"`
}

type AIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LedgerConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	SignerKey       string        `mapstructure:"signer_key"`
	TokenAddress    string        `mapstructure:"token_address"`
	TreasuryAddress string        `mapstructure:"treasury_address"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Decimals        int           `mapstructure:"decimals"`
}

type RewardsConfig struct {
	BaseAmount int64 `mapstructure:"base_amount"`
	MinAmount  int64 `mapstructure:"min_amount"`
	MaxAmount  int64 `mapstructure:"max_amount"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("queue_driver", cfg.Queue.Driver),
	)

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if cfg.Queue.Attempts < 1 {
		return errors.New("queue.attempts must be at least 1")
	}
	if cfg.Queue.BaseBackoff <= 0 {
		return errors.New("queue.base_backoff must be positive")
	}
	if cfg.Queue.Driver == "nats" && cfg.Queue.NATSURL == "" {
		return errors.New("queue.nats_url is required for the nats driver")
	}
	if cfg.Rewards.MinAmount > cfg.Rewards.MaxAmount {
		return errors.New("rewards.min_amount exceeds rewards.max_amount")
	}
	if cfg.Ledger.Decimals < 0 || cfg.Ledger.Decimals > 9 {
		// Amounts are int64 base units; past 9 decimals the clamp ceiling overflows.
		return errors.New("ledger.decimals must be within [0,9]")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mindvault")
	v.SetDefault("app.env", "local")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".mindvault/state/engine.sqlite")

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.attempts", 3)
	v.SetDefault("queue.base_backoff", 2*time.Second)
	v.SetDefault("queue.concurrency", 3)

	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.model", "gpt-4o")
	v.SetDefault("ai.timeout", 60*time.Second)

	v.SetDefault("ledger.rpc_url", "")
	v.SetDefault("ledger.timeout", 30*time.Second)
	v.SetDefault("ledger.decimals", 8)

	v.SetDefault("rewards.base_amount", 100)
	v.SetDefault("rewards.min_amount", 50)
	v.SetDefault("rewards.max_amount", 200)
}
