package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ntalakanov/taskboard/internal/models"
)

type Config struct {
	DB_HOST          string
	DB_PORT          string
	DB_USER          string
	DB_PASSWORD      string
	DB_NAME          string
	ES_URL           string
	ES_USER          string
	ES_PASSWORD      string
	JWT_SECRET       string
	REFRESH_SECRET   string
	TOKEN_ISSUER     string
	TOKEN_AUDIENCE   string
	ACCESS_TTL_MIN   int
	REFRESH_TTL_DAYS int
	KAFKA_ADDRESS    string
	LOG_LEVEL        string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:          os.Getenv("DB_HOST"),
		DB_PORT:          os.Getenv("DB_PORT"),
		DB_USER:          os.Getenv("DB_USER"),
		DB_PASSWORD:      os.Getenv("DB_PASSWORD"),
		DB_NAME:          os.Getenv("DB_NAME"),
		ES_URL:           os.Getenv("ES_URL"),
		ES_USER:          os.Getenv("ES_USER"),
		ES_PASSWORD:      os.Getenv("ES_PASSWORD"),
		JWT_SECRET:       os.Getenv("JWT_SECRET"),
		REFRESH_SECRET:   os.Getenv("REFRESH_SECRET"),
		TOKEN_ISSUER:     getEnv("TOKEN_ISSUER", "taskboard"),
		TOKEN_AUDIENCE:   getEnv("TOKEN_AUDIENCE", "taskboard-api"),
		ACCESS_TTL_MIN:   getEnvInt("ACCESS_TTL_MIN", 15),
		REFRESH_TTL_DAYS: getEnvInt("REFRESH_TTL_DAYS", 7),
		KAFKA_ADDRESS:    os.Getenv("KAFKA_ADDRESS"),
		LOG_LEVEL:        getEnv("LOG_LEVEL", "info"),
	}

	return config, nil
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.ACCESS_TTL_MIN) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.REFRESH_TTL_DAYS) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Notice: %s=%q is not a number, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := db.AutoMigrate(
		&models.Account{},
		&models.Project{},
		&models.Board{},
		&models.Task{},
		&models.RoleGrant{},
		&models.RefreshToken{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
