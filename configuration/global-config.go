package configuration

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"TajiSignBot/logger"
)

type Config struct {
	// Environment
	Environment string
	LogDir      string

	// Database Settings
	Database struct {
		Driver   string // "mysql" or "sqlite"
		User     string
		Password string
		Name     string
		Host     string
		Port     string
		Var      string
		Path     string // sqlite database file
	}

	// Discord Settings
	Discord struct {
		Token       string
		DeveloperID string
	}

	// Tajiduo API Settings
	Taygedo struct {
		ProxyURL string
		Timeout  time.Duration
	}

	// Sign-in orchestration
	Sign struct {
		SchedEnabled  bool // run the daily scheduled sign-in
		SignEveryone  bool // sign every stored account, not just opted-in ones
		Hour          int
		Minute        int
		MaxConcurrent int // concurrent account groups, hard cap 10
		GroupTimeout  time.Duration
		DirectReport  bool
		GroupReport   bool
	}

	// Login web front-end
	Web struct {
		Host      string
		Port      string
		PublicURL string // external base URL for login links, defaults to host:port
	}
}

// MaxConcurrentCap bounds the batch concurrency regardless of configuration;
// the remote API penalizes bursty traffic.
const MaxConcurrentCap = 10

var AppConfig Config

func Load() error {
	logger.Log.Info("Loading configuration...")

	AppConfig.Environment = getEnvWithDefault("ENVIRONMENT", "development")
	AppConfig.LogDir = getEnvWithDefault("LOG_DIR", "logs")

	AppConfig.Database.Driver = getEnvWithDefault("DB_DRIVER", "sqlite")
	AppConfig.Database.User = os.Getenv("DB_USER")
	AppConfig.Database.Password = os.Getenv("DB_PASSWORD")
	AppConfig.Database.Name = os.Getenv("DB_NAME")
	AppConfig.Database.Host = os.Getenv("DB_HOST")
	AppConfig.Database.Port = os.Getenv("DB_PORT")
	AppConfig.Database.Var = os.Getenv("DB_VAR")
	AppConfig.Database.Path = getEnvWithDefault("DB_PATH", "tajisign.db")

	AppConfig.Discord.Token = os.Getenv("DISCORD_TOKEN")
	AppConfig.Discord.DeveloperID = os.Getenv("DEVELOPER_ID")

	AppConfig.Taygedo.ProxyURL = os.Getenv("TAYGEDO_PROXY_URL")
	AppConfig.Taygedo.Timeout = time.Duration(getEnvAsInt("TAYGEDO_TIMEOUT", 200)) * time.Second

	AppConfig.Sign.SchedEnabled = os.Getenv("SCHED_SIGN_ENABLED") == "true"
	AppConfig.Sign.SignEveryone = os.Getenv("SIGN_EVERYONE") == "true"
	AppConfig.Sign.Hour = getEnvAsInt("SIGN_HOUR", 8)
	AppConfig.Sign.Minute = getEnvAsInt("SIGN_MINUTE", 30)
	AppConfig.Sign.MaxConcurrent = getEnvAsInt("SIGN_MAX_CONCURRENT", 1)
	AppConfig.Sign.GroupTimeout = time.Duration(getEnvAsInt("SIGN_GROUP_TIMEOUT", 300)) * time.Second
	AppConfig.Sign.DirectReport = os.Getenv("DIRECT_SIGN_REPORT") == "true"
	AppConfig.Sign.GroupReport = os.Getenv("GROUP_SIGN_REPORT") == "true"

	AppConfig.Web.Host = getEnvWithDefault("WEB_HOST", "0.0.0.0")
	AppConfig.Web.Port = getEnvWithDefault("WEB_PORT", "8175")
	AppConfig.Web.PublicURL = os.Getenv("LOGIN_PUBLIC_URL")

	if AppConfig.Sign.MaxConcurrent > MaxConcurrentCap {
		logger.Log.Warnf("SIGN_MAX_CONCURRENT=%d exceeds the cap, clamping to %d",
			AppConfig.Sign.MaxConcurrent, MaxConcurrentCap)
		AppConfig.Sign.MaxConcurrent = MaxConcurrentCap
	}
	if AppConfig.Sign.MaxConcurrent < 1 {
		AppConfig.Sign.MaxConcurrent = 1
	}

	if err := validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logConfigurationValues()

	return nil
}

func validate() error {
	var missingVars []string

	requiredVars := map[string]string{
		"DISCORD_TOKEN": AppConfig.Discord.Token,
		"DEVELOPER_ID":  AppConfig.Discord.DeveloperID,
	}

	if AppConfig.Database.Driver == "mysql" {
		requiredVars["DB_USER"] = AppConfig.Database.User
		requiredVars["DB_PASSWORD"] = AppConfig.Database.Password
		requiredVars["DB_NAME"] = AppConfig.Database.Name
		requiredVars["DB_HOST"] = AppConfig.Database.Host
		requiredVars["DB_PORT"] = AppConfig.Database.Port
	}

	for key, value := range requiredVars {
		if value == "" {
			missingVars = append(missingVars, key)
		}
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	if AppConfig.Database.Driver != "mysql" && AppConfig.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported DB_DRIVER %q, expected mysql or sqlite", AppConfig.Database.Driver)
	}

	if AppConfig.Sign.Hour < 0 || AppConfig.Sign.Hour > 23 || AppConfig.Sign.Minute < 0 || AppConfig.Sign.Minute > 59 {
		return fmt.Errorf("invalid sign time %02d:%02d", AppConfig.Sign.Hour, AppConfig.Sign.Minute)
	}

	return nil
}

func logConfigurationValues() {
	logger.Log.Infof("Loaded sign-in config: SCHED_SIGN_ENABLED=%v, SIGN_EVERYONE=%v, "+
		"SIGN_TIME=%02d:%02d, SIGN_MAX_CONCURRENT=%d, DIRECT_SIGN_REPORT=%v, GROUP_SIGN_REPORT=%v",
		AppConfig.Sign.SchedEnabled,
		AppConfig.Sign.SignEveryone,
		AppConfig.Sign.Hour,
		AppConfig.Sign.Minute,
		AppConfig.Sign.MaxConcurrent,
		AppConfig.Sign.DirectReport,
		AppConfig.Sign.GroupReport)

	logger.Log.Infof("Database driver: %s", AppConfig.Database.Driver)
	if AppConfig.Taygedo.ProxyURL != "" {
		logger.Log.Info("Tajiduo API requests will use the configured proxy")
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logger.Log.WithField("key", key).WithField("default", defaultValue).
			Error("Failed to parse integer from environment variable")
	}
	return defaultValue
}

func Get() *Config {
	return &AppConfig
}
