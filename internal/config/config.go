package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Hub        HubConfig        `mapstructure:"hub"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type HubConfig struct {
	HistoryCap         int           `mapstructure:"history_cap"`
	RecentCap          int           `mapstructure:"recent_cap"`
	AlertCap           int           `mapstructure:"alert_cap"`
	SocketHistorySlice int           `mapstructure:"socket_history_slice"`
	KeepaliveInterval  time.Duration `mapstructure:"keepalive_interval"`
	SubscriberBuffer   int           `mapstructure:"subscriber_buffer"`
	ReadLimit          int64         `mapstructure:"read_limit"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	Commands           []string      `mapstructure:"commands"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         int    `mapstructure:"qos"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
	Buffer   int    `mapstructure:"buffer"`
}

type MonitoringConfig struct {
	LogEvents bool `mapstructure:"log_events"`
}

// legacyMillis maps environment variables of older deployments, given in
// milliseconds, to their config keys.
var legacyMillis = map[string]string{
	"SSE_PING_INTERVAL":   "hub.keepalive_interval",
	"WS_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",
}

// legacyPlain maps environment variables of older deployments to config keys
// with the same unit.
var legacyPlain = map[string]string{
	"PORT":        "server.port",
	"MAX_HISTORY": "hub.history_cap",
	"MAX_ALERTS":  "hub.alert_cap",
}

// Load initializes configuration from a .env file, environment variables and
// config file
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New(), "./config")
}

func load(v *viper.Viper, configPath string) (*Config, error) {
	v.SetEnvPrefix("PCD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := applyLegacyEnv(v); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func applyLegacyEnv(v *viper.Viper) error {
	for env, key := range legacyPlain {
		legacyKey := "legacy." + strings.ToLower(env)
		if err := v.BindEnv(legacyKey, env); err != nil {
			return fmt.Errorf("error binding %s: %w", env, err)
		}
		if v.IsSet(legacyKey) {
			v.Set(key, v.Get(legacyKey))
		}
	}
	for env, key := range legacyMillis {
		legacyKey := "legacy." + strings.ToLower(env)
		if err := v.BindEnv(legacyKey, env); err != nil {
			return fmt.Errorf("error binding %s: %w", env, err)
		}
		if v.IsSet(legacyKey) {
			v.Set(key, time.Duration(v.GetInt64(legacyKey))*time.Millisecond)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults. Streams stay open indefinitely, so no write timeout.
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Hub defaults
	v.SetDefault("hub.history_cap", 100)
	v.SetDefault("hub.recent_cap", 5)
	v.SetDefault("hub.alert_cap", 50)
	v.SetDefault("hub.socket_history_slice", 10)
	v.SetDefault("hub.keepalive_interval", "30s")
	v.SetDefault("hub.subscriber_buffer", 64)
	v.SetDefault("hub.read_limit", 64*1024)
	v.SetDefault("hub.write_timeout", "10s")
	v.SetDefault("hub.commands", []string{"test_motor", "get_status", "calibrate_sensor", "reboot", "set_vibration"})

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "telemetry-hub")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "pcd")
	v.SetDefault("mqtt.qos", 1)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "pcd:events")
	v.SetDefault("redis.buffer", 256)

	// Monitoring defaults
	v.SetDefault("monitoring.log_events", false)
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", config.Server.Port)
	}
	if config.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive")
	}
	h := config.Hub
	if h.HistoryCap <= 0 || h.RecentCap <= 0 || h.AlertCap <= 0 {
		return fmt.Errorf("hub caps must be positive")
	}
	if h.SocketHistorySlice <= 0 {
		return fmt.Errorf("hub socket history slice must be positive")
	}
	if h.KeepaliveInterval <= 0 {
		return fmt.Errorf("hub keepalive interval must be positive")
	}
	if h.SubscriberBuffer < 4 {
		return fmt.Errorf("hub subscriber buffer must be at least 4")
	}
	if len(h.Commands) == 0 {
		return fmt.Errorf("at least one device command is required")
	}
	if config.MQTT.Enabled && config.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker is required when mqtt is enabled")
	}
	if config.MQTT.QoS < 0 || config.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	if config.Redis.Enabled && config.Redis.Host == "" {
		return fmt.Errorf("redis host is required when redis is enabled")
	}
	return nil
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
