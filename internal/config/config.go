package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	API       APIConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Session   SessionConfig
	Roles     RolesConfig
	Dashboard DashboardConfig
	Map       MapConfig
	MinIO     MinIOConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// APIConfig points at the external complaint REST API.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type SessionConfig struct {
	// TTL is measured from the moment of login, not from the token's exp claim.
	TTL        time.Duration
	CookieName string
	Prefix     string
	Secure     bool
}

type RolesConfig struct {
	Admin      string
	Department string
	Citizen    string
}

type DashboardConfig struct {
	PollInterval time.Duration
}

type MapConfig struct {
	TileURL      string
	CenterLon    float64
	CenterLat    float64
	Zoom         float64
	HitTolerance float64
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	PublicURL string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// DevAPIConfig configures the local stand-in for the complaint REST API.
type DevAPIConfig struct {
	Port          string
	JWTSecret     string
	TokenTTL      time.Duration
	AdminEmail    string
	AdminPassword string
	MongoDB       MongoDBConfig
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%s", s.Host, s.Port) }

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

// LoadConfig loads configuration from environment variables and an optional .env file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(envFile())

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5050")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("API_TIMEOUT", "10s")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("MONGODB_DATABASE", "sikayet")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TTL_MS", 3600000)
	v.SetDefault("SESSION_COOKIE", "sid")
	v.SetDefault("SESSION_PREFIX", "session:")
	v.SetDefault("ROLE_ADMIN", "Admin")
	v.SetDefault("ROLE_DEPARTMENT", "DepartmentAdmin")
	v.SetDefault("ROLE_CITIZEN", "User")
	v.SetDefault("DEPARTMENT_POLL_INTERVAL", "30s")
	v.SetDefault("MAP_TILE_URL", "https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("MAP_CENTER_LON", 32.8597)
	v.SetDefault("MAP_CENTER_LAT", 39.9334)
	v.SetDefault("MAP_ZOOM", 12)
	v.SetDefault("MAP_HIT_TOLERANCE_PX", 12)
	v.SetDefault("MINIO_BUCKET", "complaint-photos")
	v.SetDefault("RATE_LIMIT_RPS", 1)
	v.SetDefault("RATE_LIMIT_BURST", 5)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
			Timeout: v.GetDuration("API_TIMEOUT"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Session: SessionConfig{
			TTL:        time.Duration(v.GetInt64("SESSION_TTL_MS")) * time.Millisecond,
			CookieName: v.GetString("SESSION_COOKIE"),
			Prefix:     v.GetString("SESSION_PREFIX"),
			Secure:     v.GetBool("SESSION_COOKIE_SECURE"),
		},
		Roles: RolesConfig{
			Admin:      v.GetString("ROLE_ADMIN"),
			Department: v.GetString("ROLE_DEPARTMENT"),
			Citizen:    v.GetString("ROLE_CITIZEN"),
		},
		Dashboard: DashboardConfig{
			PollInterval: v.GetDuration("DEPARTMENT_POLL_INTERVAL"),
		},
		Map: MapConfig{
			TileURL:      v.GetString("MAP_TILE_URL"),
			CenterLon:    v.GetFloat64("MAP_CENTER_LON"),
			CenterLat:    v.GetFloat64("MAP_CENTER_LAT"),
			Zoom:         v.GetFloat64("MAP_ZOOM"),
			HitTolerance: v.GetFloat64("MAP_HIT_TOLERANCE_PX"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			PublicURL: strings.TrimRight(v.GetString("MINIO_PUBLIC_URL"), "/"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL_MS must be positive, got %s", c.Session.TTL)
	}
	if c.Dashboard.PollInterval < time.Second {
		return fmt.Errorf("DEPARTMENT_POLL_INTERVAL must be at least 1s, got %s", c.Dashboard.PollInterval)
	}
	return nil
}

// LoadDevAPIConfig loads the devapi settings. It does not require API_BASE_URL.
func LoadDevAPIConfig() (*DevAPIConfig, error) {
	_ = godotenv.Load(envFile())

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DEVAPI_PORT", "5010")
	v.SetDefault("DEVAPI_TOKEN_TTL", "2h")
	v.SetDefault("DEVAPI_ADMIN_EMAIL", "admin@kent.local")
	v.SetDefault("DEVAPI_ADMIN_PASSWORD", "admin123")
	v.SetDefault("MONGODB_DATABASE", "sikayet")
	v.SetDefault("MONGODB_TIMEOUT", 10)

	cfg := &DevAPIConfig{
		Port:          v.GetString("DEVAPI_PORT"),
		JWTSecret:     os.Getenv("DEVAPI_JWT_SECRET"),
		TokenTTL:      v.GetDuration("DEVAPI_TOKEN_TTL"),
		AdminEmail:    v.GetString("DEVAPI_ADMIN_EMAIL"),
		AdminPassword: v.GetString("DEVAPI_ADMIN_PASSWORD"),
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "devapi-insecure-secret-change-me-0000"
	}
	return cfg, nil
}

func envFile() string {
	if p := os.Getenv("ENV_FILE"); p != "" {
		return p
	}
	return ".env"
}
