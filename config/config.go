package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the document verification service
type Config struct {
	// Database configuration
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBConnectAttempts int

	// Server configuration
	Port string

	// Analysis engine configuration
	EnginePython  string
	EngineScript  string
	EngineWorkDir string
	EngineTimeout time.Duration

	// Transient upload storage
	TmpDir string

	// LLM field extraction configuration
	LLMProvider  string
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	// RabbitMQ configuration (optional)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	config := &Config{
		// Database defaults
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "3306"),
		DBUser:            getEnv("DB_USER", "server"),
		DBPassword:        getEnv("DB_PASSWORD", "secret_app"),
		DBName:            getEnv("DB_NAME", "docverify"),
		DBConnectAttempts: getIntEnv("DB_CONNECT_ATTEMPTS", 6),

		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Engine defaults
		EnginePython:  getEnv("ENGINE_PYTHON", "python3"),
		EngineScript:  getEnv("ENGINE_SCRIPT", "./ml_model/app.py"),
		EngineWorkDir: getEnv("ENGINE_WORK_DIR", "./ml_model"),
		EngineTimeout: getDurationEnv("ENGINE_TIMEOUT", 2*time.Minute),

		// Transient uploads
		TmpDir: getEnv("TMP_DIR", os.TempDir()),

		// LLM defaults; empty provider disables field extraction
		LLMProvider:  getEnv("LLM_PROVIDER", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),

		// RabbitMQ defaults; empty URL disables publishing
		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "docverify"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "verification.completed"),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return config
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
