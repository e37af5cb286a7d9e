package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	AuthSecret            string
	AccessTokenTTLMinutes int
	AdminPassword         string

	// RemoteBackend selects the backup target: gcs, redis, postgres or none.
	RemoteBackend      string
	BackupObjectName   string
	GCSBucket          string
	GCSCredentialsJSON string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	DatabaseURL        string

	SeedDemoData bool
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] no .env file found, using environment")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		AdminPassword:         strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
		RemoteBackend:         strings.ToLower(getEnv("REMOTE_BACKEND", "none")),
		BackupObjectName:      getEnv("BACKUP_OBJECT_NAME", "gestor_pro_backup.json"),
		GCSBucket:             os.Getenv("GCS_BUCKET"),
		GCSCredentialsJSON:    os.Getenv("GCS_CREDENTIALS_JSON"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		SeedDemoData:          getEnv("SEED_DEMO_DATA", "1") == "1",
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
