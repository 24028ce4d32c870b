package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type BotConfig struct {
	TelegramToken   string
	BaseAdminChatID int64
	BotDebug        bool

	DatabaseDriver string
	DatabaseURL    string

	GraceMinutes   int
	Timezone       *time.Location
	RequestTimeout time.Duration
	HistoryLimit   int

	// Необязательный JSON с локациями для первого запуска
	LocationsFile string

	LogLevel logrus.Level
}

var instance *BotConfig
var once sync.Once

func GetBotConfig() *BotConfig {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			logrus.Warnf("no .env file loaded: %s", err.Error())
		}

		cfg, err := Load()
		if err != nil {
			logrus.Fatal(err)
		}
		instance = cfg
	})

	return instance
}

// Load читает конфигурацию из переменных окружения
func Load() (*BotConfig, error) {
	cfg := &BotConfig{}

	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	if cfg.TelegramToken == "" {
		return nil, errMissing("TELEGRAM_BOT_TOKEN")
	}

	cfg.BaseAdminChatID = getEnvAsInt("BASE_ADMIN_CHAT_ID", 0)
	cfg.BotDebug = getEnvAsBool("BOT_DEBUG", false)

	cfg.DatabaseDriver = getEnv("DATABASE_DRIVER", DriverSQLite)
	if cfg.DatabaseDriver != DriverSQLite && cfg.DatabaseDriver != DriverPostgres {
		return nil, &configError{key: "DATABASE_DRIVER", msg: "must be sqlite or postgres"}
	}

	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	if cfg.DatabaseURL == "" {
		return nil, errMissing("DATABASE_URL")
	}

	cfg.GraceMinutes = int(getEnvAsInt("SHIFT_GRACE_MINUTES", 15))
	if cfg.GraceMinutes < 0 {
		return nil, &configError{key: "SHIFT_GRACE_MINUTES", msg: "must not be negative"}
	}

	tz, err := time.LoadLocation(getEnv("TIMEZONE", "Local"))
	if err != nil {
		return nil, &configError{key: "TIMEZONE", msg: err.Error()}
	}
	cfg.Timezone = tz

	cfg.RequestTimeout = time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second
	if cfg.RequestTimeout <= 0 {
		return nil, &configError{key: "REQUEST_TIMEOUT_SECONDS", msg: "must be positive"}
	}

	cfg.HistoryLimit = int(getEnvAsInt("HISTORY_LIMIT", 10))
	cfg.LocationsFile = getEnv("LOCATIONS_FILE", "")

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, &configError{key: "LOG_LEVEL", msg: err.Error()}
	}
	cfg.LogLevel = level

	return cfg, nil
}

type configError struct {
	key string
	msg string
}

func (e *configError) Error() string {
	return "config " + e.key + ": " + e.msg
}

func errMissing(key string) error {
	return &configError{key: key, msg: "is required"}
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}

	return defaultVal
}

func getEnvAsInt(name string, defaultVal int64) int64 {
	valStr := getEnv(name, "")
	if val, err := strconv.Atoi(valStr); err == nil {
		return int64(val)
	}

	return defaultVal
}
