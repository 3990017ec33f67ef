package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Social   SocialConfig   `mapstructure:"social"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // memory | sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	LocalGC       time.Duration `mapstructure:"local_gc_interval"`
	PubSubBuf     int           `mapstructure:"pubsub_buf"`
}

type SocialConfig struct {
	MaxPartySize        int           `mapstructure:"max_party_size"`
	InviteTTL           time.Duration `mapstructure:"invite_ttl"`
	FriendRequestTTL    time.Duration `mapstructure:"friend_request_ttl"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	PresenceSweep       time.Duration `mapstructure:"presence_sweep_interval"`
	PresenceIdle        time.Duration `mapstructure:"presence_idle_threshold"`
	PresenceGCThreshold time.Duration `mapstructure:"presence_gc_threshold"`
	PartySaveQueue      int           `mapstructure:"party_save_queue"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTL         time.Duration `mapstructure:"jwt_ttl"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the WebSocket/SSE origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/socialcore.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.pubsub_buf", 256)
	v.SetDefault("social.max_party_size", 4)
	v.SetDefault("social.invite_ttl", "300s")
	v.SetDefault("social.friend_request_ttl", "720h")
	v.SetDefault("social.sweep_interval", "30s")
	v.SetDefault("social.presence_sweep_interval", "30m")
	v.SetDefault("social.presence_idle_threshold", "30m")
	v.SetDefault("social.presence_gc_threshold", "24h")
	v.SetDefault("social.party_save_queue", 1024)
	v.SetDefault("security.jwt_ttl", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
