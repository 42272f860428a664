package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Game      GameConfig      `mapstructure:"game"`
	Rate      RateConfig      `mapstructure:"rate"`
	WordStore WordStoreConfig `mapstructure:"word_store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress    string   `mapstructure:"http_address"`
	RPCAddress     string   `mapstructure:"rpc_address"`
	PublicURL      string   `mapstructure:"public_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AdminSecret    string   `mapstructure:"admin_secret"`
	TokenSecret    string   `mapstructure:"token_secret"`
}

// GameConfig 游戏节奏相关的参数
type GameConfig struct {
	ReconnectGrace        time.Duration `mapstructure:"reconnect_grace"`
	ResultDelay           time.Duration `mapstructure:"result_delay"`
	SettleDelay           time.Duration `mapstructure:"settle_delay"`
	TimeUnit              time.Duration `mapstructure:"time_unit"`
	IdleTimeout           time.Duration `mapstructure:"idle_timeout"`
	CleanupSpec           string        `mapstructure:"cleanup_interval"`
	MaxSpectatorSeats     int           `mapstructure:"max_spectator_seats"`
	DefaultSpectatorSeats int           `mapstructure:"default_spectator_seats"`
}

type RateConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type WordStoreConfig struct {
	Driver string `mapstructure:"driver"`
	Seed   bool   `mapstructure:"seed"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the configuration used when no file or env override is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddress:    ":8080",
			PublicURL:      "http://localhost:8080",
			AllowedOrigins: []string{"*"},
		},
		Game: GameConfig{
			ReconnectGrace:    30 * time.Second,
			ResultDelay:       3 * time.Second,
			SettleDelay:       500 * time.Millisecond,
			TimeUnit:          time.Second,
			IdleTimeout:       2 * time.Hour,
			CleanupSpec:       "@every 30m",
			MaxSpectatorSeats: 8,
		},
		Rate:      RateConfig{PerSecond: 20, Burst: 40},
		WordStore: WordStoreConfig{Driver: "memory", Seed: true},
		Database: DatabaseConfig{Postgres: PostgresConfig{
			Host:   "localhost",
			Port:   5432,
			User:   "postgres",
			DBName: "spy",
		}},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Log:   LogConfig{Level: "info"},
	}
}

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// LoadConfig 读取 path 下的 config.yaml, 文件缺失时只使用默认值和环境变量
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.Game.TimeUnit <= 0 {
		cfg.Game.TimeUnit = time.Second
	}
	return cfg, nil
}

// AutomaticEnv only resolves keys viper already knows about, so every key gets a default.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.http_address", d.Server.HTTPAddress)
	v.SetDefault("server.rpc_address", d.Server.RPCAddress)
	v.SetDefault("server.public_url", d.Server.PublicURL)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.admin_secret", d.Server.AdminSecret)
	v.SetDefault("server.token_secret", d.Server.TokenSecret)

	v.SetDefault("game.reconnect_grace", d.Game.ReconnectGrace)
	v.SetDefault("game.result_delay", d.Game.ResultDelay)
	v.SetDefault("game.settle_delay", d.Game.SettleDelay)
	v.SetDefault("game.time_unit", d.Game.TimeUnit)
	v.SetDefault("game.idle_timeout", d.Game.IdleTimeout)
	v.SetDefault("game.cleanup_interval", d.Game.CleanupSpec)
	v.SetDefault("game.max_spectator_seats", d.Game.MaxSpectatorSeats)
	v.SetDefault("game.default_spectator_seats", d.Game.DefaultSpectatorSeats)

	v.SetDefault("rate.per_second", d.Rate.PerSecond)
	v.SetDefault("rate.burst", d.Rate.Burst)

	v.SetDefault("word_store.driver", d.WordStore.Driver)
	v.SetDefault("word_store.seed", d.WordStore.Seed)

	v.SetDefault("database.postgres.host", d.Database.Postgres.Host)
	v.SetDefault("database.postgres.port", d.Database.Postgres.Port)
	v.SetDefault("database.postgres.user", d.Database.Postgres.User)
	v.SetDefault("database.postgres.password", d.Database.Postgres.Password)
	v.SetDefault("database.postgres.dbname", d.Database.Postgres.DBName)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)

	v.SetDefault("log.level", d.Log.Level)
}
