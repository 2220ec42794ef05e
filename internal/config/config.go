package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"auction-marketplace/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MySQL         MySQLConfig         `mapstructure:"mysql"`
	NATS          NATSConfig          `mapstructure:"nats"`
	Leader        LeaderConfig        `mapstructure:"leader"`
	Instance      InstanceConfig      `mapstructure:"instance"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Bidding       BiddingConfig       `mapstructure:"bidding"`
	Closer        CloserConfig        `mapstructure:"closer"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Log           LogConfig           `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
	Stream  string `mapstructure:"stream"`
}

type LeaderConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type StorageConfig struct {
	// Driver is "mysql" or "memory".
	Driver string `mapstructure:"driver"`
}

type BiddingConfig struct {
	MinIncrement    string        `mapstructure:"min_increment"`
	ExtensionWindow time.Duration `mapstructure:"extension_window"`
}

type CloserConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	Concurrency    int           `mapstructure:"concurrency"`
	AuctionTimeout time.Duration `mapstructure:"auction_timeout"`
}

type NotificationsConfig struct {
	AdminIDs  []string `mapstructure:"admin_ids"`
	QueueSize int      `mapstructure:"queue_size"`
	Workers   int      `mapstructure:"workers"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "notifications")
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true&loc=UTC&multiStatements=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.migrate", true)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.stream", "SETTLEMENTS")
	v.SetDefault("leader.enabled", true)
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("instance.id", "auction-service-1")
	v.SetDefault("storage.driver", "mysql")
	v.SetDefault("bidding.min_increment", "1.00")
	v.SetDefault("bidding.extension_window", 15*time.Second)
	v.SetDefault("closer.interval", 60*time.Second)
	v.SetDefault("closer.concurrency", 4)
	v.SetDefault("closer.auction_timeout", 10*time.Second)
	v.SetDefault("notifications.admin_ids", []string{})
	v.SetDefault("notifications.queue_size", 1024)
	v.SetDefault("notifications.workers", 4)
	v.SetDefault("log.level", "info")
}

func bindEnv(v *viper.Viper) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Environment variable mappings
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("mysql.dsn", "MYSQL_DSN")
	v.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	v.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	v.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	v.BindEnv("nats.url", "NATS_URL")
	v.BindEnv("nats.enabled", "NATS_ENABLED")
	v.BindEnv("leader.enabled", "LEADER_ENABLED")
	v.BindEnv("leader.ttl", "LEADER_TTL")
	v.BindEnv("instance.id", "INSTANCE_ID")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("bidding.min_increment", "BIDDING_MIN_INCREMENT")
	v.BindEnv("bidding.extension_window", "BIDDING_EXTENSION_WINDOW")
	v.BindEnv("closer.interval", "CLOSER_INTERVAL")
	v.BindEnv("log.level", "LOG_LEVEL")
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/auction-marketplace/")

	bindEnv(v)

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// MinIncrement returns the parsed minimum bid increment.
func (c *Config) MinIncrement() decimal.Decimal {
	d, err := decimal.NewFromString(c.Bidding.MinIncrement)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (c *Config) Validate() error {
	inc, err := decimal.NewFromString(c.Bidding.MinIncrement)
	if err != nil {
		return fmt.Errorf("bidding.min_increment: %w", err)
	}
	if !inc.IsPositive() {
		return errors.New("bidding.min_increment must be positive")
	}
	if !domain.IsWholeCents(inc) {
		return errors.New("bidding.min_increment must not have fractions of a cent")
	}
	if c.Bidding.ExtensionWindow <= 0 {
		return errors.New("bidding.extension_window must be positive")
	}
	if c.Closer.Interval <= 0 {
		return errors.New("closer.interval must be positive")
	}
	if c.Closer.Concurrency <= 0 {
		return errors.New("closer.concurrency must be positive")
	}
	switch c.Storage.Driver {
	case "mysql", "memory":
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Redis: %s, Storage: %s, Instance: %s, Increment: %s, Window: %s, Sweep: %s",
		c.Server.Host,
		c.Server.Port,
		c.Redis.Address,
		c.Storage.Driver,
		c.Instance.ID,
		c.Bidding.MinIncrement,
		c.Bidding.ExtensionWindow,
		c.Closer.Interval,
	)
}
