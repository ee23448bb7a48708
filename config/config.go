package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains application configuration.
type Config struct {
	Port          string
	MongoURI      string
	MongoDB       string
	UploadDir     string
	PublicBaseURL string

	JWTSecret         string
	AdminPasswordHash string

	SessionTTL time.Duration
	GPSTimeout time.Duration
	Timezone   *time.Location

	CameraWidth  int
	CameraHeight int
	JPEGQuality  int

	Debug bool
}

// Load reads configuration from environment variables and .env.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from getenv, applying defaults for unset keys.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:              valueOr(getenv("PORT"), "8080"),
		MongoURI:          valueOr(getenv("MONGO_URI"), "mongodb://localhost:27017"),
		MongoDB:           valueOr(getenv("MONGO_DB"), "fmr_portal"),
		UploadDir:         valueOr(getenv("UPLOAD_DIR"), "./.uploads"),
		JWTSecret:         getenv("JWT_SECRET"),
		AdminPasswordHash: getenv("ADMIN_PASSWORD_HASH"),
	}
	cfg.PublicBaseURL = valueOr(getenv("PUBLIC_BASE_URL"), "http://localhost:"+cfg.Port)

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	var err error
	if cfg.SessionTTL, err = duration(getenv, "SESSION_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.GPSTimeout, err = duration(getenv, "GPS_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CameraWidth, err = integer(getenv, "CAMERA_WIDTH", 1280); err != nil {
		return Config{}, err
	}
	if cfg.CameraHeight, err = integer(getenv, "CAMERA_HEIGHT", 720); err != nil {
		return Config{}, err
	}
	if cfg.JPEGQuality, err = integer(getenv, "JPEG_QUALITY", 85); err != nil {
		return Config{}, err
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return Config{}, fmt.Errorf("JPEG_QUALITY must be between 1 and 100, got %d", cfg.JPEGQuality)
	}
	if v := getenv("DEBUG"); v != "" {
		if cfg.Debug, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("DEBUG: %w", err)
		}
	}
	cfg.Timezone = timezone(valueOr(getenv("REPORT_TIMEZONE"), "Asia/Manila"))

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func integer(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// timezone falls back to a fixed UTC+8 zone when the tz database is unavailable.
func timezone(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("PHT", 8*60*60)
}
