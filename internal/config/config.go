package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Network    NetworkConfig    `toml:"network"`
	Management ManagementConfig `toml:"management"`
	Simulation SimulationConfig `toml:"simulation"`
	Scripting  ScriptingConfig  `toml:"scripting"`
	Data       DataConfig       `toml:"data"`
	Auth       AuthConfig       `toml:"auth"`
	Logging    LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	ID        int    `toml:"id"`
	StartTime int64  // set at boot, not from config
}

// DatabaseConfig points at the player database. An empty DSN keeps players
// in memory for the lifetime of the process.
type DatabaseConfig struct {
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type NetworkConfig struct {
	BindAddress      string        `toml:"bind_address"`
	InQueueSize      int           `toml:"in_queue_size"`
	OutQueueSize     int           `toml:"out_queue_size"`
	WriteTimeout     time.Duration `toml:"write_timeout"`
	ReadTimeout      time.Duration `toml:"read_timeout"`
	Charset          string        `toml:"charset"` // wire string encoding, e.g. "utf-8", "big5"
	PacketsPerSecond int           `toml:"packets_per_second"`
}

type ManagementConfig struct {
	BindAddress    string        `toml:"bind_address"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

type SimulationConfig struct {
	TickRate              time.Duration `toml:"tick_rate"`
	QueueSize             int           `toml:"queue_size"`
	MaxPlayersPerInstance int           `toml:"max_players_per_instance"`
	AutosaveTicks         int           `toml:"autosave_ticks"`
	AttackCooldownTicks   uint32        `toml:"attack_cooldown_ticks"`
}

type ScriptingConfig struct {
	Dir string `toml:"dir"`
}

type DataConfig struct {
	MapList     string `toml:"map_list"`
	MonsterList string `toml:"monster_list"`
}

type AuthConfig struct {
	BcryptCost int           `toml:"bcrypt_cost"`
	TokenTTL   time.Duration `toml:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Default returns the built-in configuration, used when no file is given.
func Default() *Config {
	cfg := defaults()
	cfg.Server.StartTime = time.Now().Unix()
	return cfg
}

func (c *Config) validate() error {
	if c.Simulation.TickRate <= 0 {
		return fmt.Errorf("simulation.tick_rate must be positive")
	}
	if c.Simulation.QueueSize <= 0 {
		return fmt.Errorf("simulation.queue_size must be positive")
	}
	if c.Simulation.MaxPlayersPerInstance <= 0 {
		return fmt.Errorf("simulation.max_players_per_instance must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "simcore",
			ID:   1,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Network: NetworkConfig{
			BindAddress:      "0.0.0.0:7777",
			InQueueSize:      128,
			OutQueueSize:     256,
			WriteTimeout:     10 * time.Second,
			ReadTimeout:      60 * time.Second,
			Charset:          "utf-8",
			PacketsPerSecond: 60,
		},
		Management: ManagementConfig{
			BindAddress:    "127.0.0.1:8001",
			RequestTimeout: 5 * time.Second,
		},
		Simulation: SimulationConfig{
			TickRate:              50 * time.Millisecond,
			QueueSize:             1024,
			MaxPlayersPerInstance: 64,
			AutosaveTicks:         1200,
			AttackCooldownTicks:   5,
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Data: DataConfig{
			MapList:     "data/yaml/map_list.yaml",
			MonsterList: "data/yaml/monster_list.yaml",
		},
		Auth: AuthConfig{
			BcryptCost: 10,
			TokenTTL:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
