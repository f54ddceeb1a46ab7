package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the classroom service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	AllowOrigins           string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	NotificationChannel    string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	NotificationWorkers    int
	NotificationBuffer     int
	NotificationRetries    int
	StreamKeepAlive        time.Duration
	UploadMaxMB            int
	SweepTimezone          *time.Location
	WriteRateLimit         int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CLASSROOM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Classroom API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.allow_origins", "*")
	v.SetDefault("notifications.channel", "classroom")
	v.SetDefault("notifications.workers", 4)
	v.SetDefault("notifications.buffer", 256)
	v.SetDefault("notifications.retries", 3)
	v.SetDefault("notifications.keepalive", "30s")
	v.SetDefault("cloudinary.folder", "classroom/attachments")
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("sweep.timezone", "UTC")
	v.SetDefault("ratelimit.writes_per_minute", 60)

	keepAlive, err := time.ParseDuration(v.GetString("notifications.keepalive"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid notifications keepalive: %w", err)
	}

	location, err := time.LoadLocation(v.GetString("sweep.timezone"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid sweep timezone: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		AllowOrigins:           v.GetString("app.allow_origins"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		NotificationChannel:    v.GetString("notifications.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		NotificationWorkers:    v.GetInt("notifications.workers"),
		NotificationBuffer:     v.GetInt("notifications.buffer"),
		NotificationRetries:    v.GetInt("notifications.retries"),
		StreamKeepAlive:        keepAlive,
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		SweepTimezone:          location,
		WriteRateLimit:         v.GetInt("ratelimit.writes_per_minute"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.NotificationWorkers <= 0 {
		cfg.NotificationWorkers = 4
	}
	if cfg.NotificationBuffer <= 0 {
		cfg.NotificationBuffer = 256
	}
	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 10
	}

	return cfg, nil
}
