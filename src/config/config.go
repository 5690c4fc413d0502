package config

import (
	"log"
	"os"

	"github.com/lumehq/lumebot/src/data"
	"gorm.io/gorm"
)

// Config holds process-wide configuration shared by every module.
type Config struct {
	Token       string
	RedisURL    string
	WebAddr     string
	JWTSecret   string
	AdminSecret string
}

// Load reads configuration from the settings table with env fallbacks.
// The MySQL DSN itself always comes from the environment since it is
// needed before the database can be opened.
func Load(db *gorm.DB) Config {
	if err := data.LoadSettings(db); err != nil {
		// Env fallbacks still work for a fresh database.
		log.Printf("config: load settings: %v", err)
	}

	return Config{
		Token:       GetSetting("discord_token", "DISCORD_TOKEN", ""),
		RedisURL:    GetSetting("redis_url", "REDIS_URL", "redis://127.0.0.1:6379/0"),
		WebAddr:     GetSetting("webadmin_addr", "WEBADMIN_ADDR", ":8090"),
		JWTSecret:   GetSetting("jwt_secret", "JWT_SECRET", ""),
		AdminSecret: GetSetting("webadmin_secret", "WEBADMIN_SECRET", ""),
	}
}

// GetSetting retrieves a setting with env and default fallbacks.
func GetSetting(name, envKey, defaultValue string) string {
	val := data.GetSetting(name)
	if val == "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = defaultValue
	}
	return val
}
