package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret string

	RoomCapacity         int
	CodeAttempts         int
	HeartbeatIntervalSec int
	HeartbeatMissLimit   int
	ReconnectGraceSec    int
	RoomIdleTimeoutMin   int
}

func Load() *Config {
	// Best effort; env vars win over .env.
	godotenv.Load()

	return &Config{
		ServerPort:           getEnv("SERVER_PORT", "8080"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "5432"),
		DBUser:               getEnv("DB_USER", "postgres"),
		DBPassword:           getEnv("DB_PASSWORD", "postgres"),
		DBName:               getEnv("DB_NAME", "synctunes"),
		JWTSecret:            getEnv("JWT_SECRET", "super-secret-key-change-me"),
		RoomCapacity:         getEnvInt("ROOM_CAPACITY", 10),
		CodeAttempts:         getEnvInt("CODE_ATTEMPTS", 25),
		HeartbeatIntervalSec: getEnvInt("HEARTBEAT_INTERVAL_SEC", 5),
		HeartbeatMissLimit:   getEnvInt("HEARTBEAT_MISS_LIMIT", 3),
		ReconnectGraceSec:    getEnvInt("RECONNECT_GRACE_SEC", 30),
		RoomIdleTimeoutMin:   getEnvInt("ROOM_IDLE_TIMEOUT_MIN", 30),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
