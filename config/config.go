package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wfunc/bopserver/game"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
}

type ServerConfig struct {
	HTTPAddress     string        `mapstructure:"http_address"`
	RPCAddress      string        `mapstructure:"rpc_address"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type GameConfig struct {
	MaxPlayersVoice   int           `mapstructure:"max_players_voice"`
	MaxPlayersNoVoice int           `mapstructure:"max_players_no_voice"`
	HostGrace         time.Duration `mapstructure:"host_grace"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	CodeAttempts      int           `mapstructure:"code_attempts"`
	RateLimit         float64       `mapstructure:"rate_limit"`
	RateBurst         int           `mapstructure:"rate_burst"`
	Defaults          game.Settings `mapstructure:"defaults"`
}

type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the key/value connection string understood by both lib/pq and pgx.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

func setDefaults(v *viper.Viper, packs []string) {
	v.SetDefault("server.http_address", ":22222")
	v.SetDefault("server.rpc_address", "")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")

	v.SetDefault("game.max_players_voice", 8)
	v.SetDefault("game.max_players_no_voice", 12)
	v.SetDefault("game.host_grace", 30*time.Second)
	v.SetDefault("game.idle_timeout", 5*time.Minute)
	v.SetDefault("game.sweep_interval", time.Minute)
	v.SetDefault("game.code_attempts", 100)
	v.SetDefault("game.rate_limit", 20.0)
	v.SetDefault("game.rate_burst", 40)

	v.SetDefault("game.defaults.timer_sec", 90)
	v.SetDefault("game.defaults.rounds", 3)
	v.SetDefault("game.defaults.points_easy", 1)
	v.SetDefault("game.defaults.points_hard", 3)
	v.SetDefault("game.defaults.bop_penalty", 1)
	v.SetDefault("game.defaults.bopper_count", 1)
	v.SetDefault("game.defaults.bopper_assignment", string(game.AssignRotate))
	v.SetDefault("game.defaults.enabled_packs", packs)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "gorm")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "bop")
	v.SetDefault("database.postgres.sslmode", "disable")
}

// LoadConfig reads config.yaml from path if present, then environment overrides
// such as GAME_HOST_GRACE or DATABASE_ENABLED. packs is the default enabled-pack list.
func LoadConfig(path string, packs []string) (*Config, error) {
	v := viper.New()
	setDefaults(v, packs)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	g := c.Game
	switch {
	case g.MaxPlayersVoice < 1 || g.MaxPlayersNoVoice < 1:
		return errors.New("config: room capacities must be positive")
	case g.CodeAttempts < 1:
		return errors.New("config: game.code_attempts must be positive")
	case g.SweepInterval <= 0 || g.IdleTimeout <= 0:
		return errors.New("config: sweep interval and idle timeout must be positive")
	case g.RateLimit <= 0 || g.RateBurst < 1:
		return errors.New("config: rate limit must be positive")
	}
	switch c.Database.Driver {
	case "gorm", "pq":
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	return nil
}
