package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadENV loads variables from .env unless GO_ENV says we are deployed.
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL string
	// Enrollment policy
	MAX_ACTIVE_REGISTRATIONS    int  // per-user cap on concurrent registrations
	ALLOW_ADMIN_OVERBOOK        bool // admins may assign past session capacity
	CHANGE_EVENT_RETENTION_DAYS int
	// HTTP
	ALLOWED_ORIGINS string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	maxRegs, err := strconv.Atoi(os.Getenv("MAX_ACTIVE_REGISTRATIONS"))
	if err != nil || maxRegs < 1 {
		maxRegs = 3
	}

	retentionDays, err := strconv.Atoi(os.Getenv("CHANGE_EVENT_RETENTION_DAYS"))
	if err != nil || retentionDays < 1 {
		retentionDays = 30
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: os.Getenv("JWT_ISSUER"),
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// Enrollment policy
		MAX_ACTIVE_REGISTRATIONS:    maxRegs,
		ALLOW_ADMIN_OVERBOOK:        os.Getenv("ALLOW_ADMIN_OVERBOOK") == "true",
		CHANGE_EVENT_RETENTION_DAYS: retentionDays,
		// HTTP
		ALLOWED_ORIGINS: os.Getenv("ALLOWED_ORIGINS"),
	}

	return envVariables, nil
}
