package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	KafkaBrokers    string
	AdmissionsTopic string
	EventsTopic     string
	ConsumerGroup   string
	DBPath          string
	LogToConsole    bool
	MQTTBroker      string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string

	AssignIntervalSeconds int
	MaxAssignPerTick      int
}

func LoadConfig() *Config {
	err := godotenv.Load() // Looks for ".env" in the current directory
	if err != nil {
		log.Println("No .env file found, using environment variables or default values")
	}

	return &Config{
		KafkaBrokers:    getEnv("KAFKA_BROKERS", "localhost:9092"),
		AdmissionsTopic: getEnv("ADMISSIONS_TOPIC", "bed-admissions-topic"),
		EventsTopic:     getEnv("EVENTS_TOPIC", "bed-events-topic"),
		ConsumerGroup:   getEnv("CONSUMER_GROUP", "bed_manager"),
		DBPath:          getEnv("DB_PATH", "bedmanager.db"),
		LogToConsole:    strings.EqualFold(getEnv("LOG_TO_CONSOLE", "false"), "true"),
		MQTTBroker:      getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "BedManagerService_local"),
		MQTTUsername:    getEnv("MQTT_USERNAME", ""),
		MQTTPassword:    getEnv("MQTT_PASSWORD", ""),

		AssignIntervalSeconds: getEnvInt("ASSIGN_INTERVAL_SECONDS", 5),
		MaxAssignPerTick:      getEnvInt("MAX_ASSIGN_PER_TICK", 5),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using %d", key, value, fallback)
		return fallback
	}
	return n
}
