package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server" validate:"required"`
	Database  DatabaseConfig  `yaml:"database" validate:"required"`
	AWS       AWSConfig       `yaml:"aws"`
	SMS       SMSConfig       `yaml:"sms"`
	APNs      APNsConfig      `yaml:"apns"`
	Geocoding GeocodingConfig `yaml:"geocoding"`
	JWT       JWTConfig       `yaml:"jwt" validate:"required"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port        int    `yaml:"port" validate:"gt=0,lt=65536"`
	Host        string `yaml:"host"`
	FrontendURL string `yaml:"frontend_url" validate:"omitempty,url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"gt=0"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname" validate:"required"`
	SSLMode  string `yaml:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

// AWSConfig holds AWS configuration shared by the S3 and SNS clients
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint" validate:"omitempty,url"`
}

// SMSConfig holds outbound SMS configuration
type SMSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	SenderID string `yaml:"sender_id" validate:"omitempty,max=11"`
}

// APNsConfig holds push notification configuration for guide devices
type APNsConfig struct {
	KeyPath    string `yaml:"key_path"`
	KeyID      string `yaml:"key_id" validate:"required_with=KeyPath"`
	TeamID     string `yaml:"team_id" validate:"required_with=KeyPath"`
	Topic      string `yaml:"topic" validate:"required_with=KeyPath"`
	Production bool   `yaml:"production"`
}

// GeocodingConfig holds the address lookup service configuration
type GeocodingConfig struct {
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
	UserAgent string `yaml:"user_agent"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret       string `yaml:"secret" validate:"required,min=16"`
	ExpiresHours int    `yaml:"expires_hours" validate:"gte=0"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	File  string `yaml:"file"`
}

// Load reads configuration from a YAML file, applies environment overrides
// (a .env file is honoured when present) and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Database.Host, "DB_HOST")
	overrideInt(&c.Database.Port, "DB_PORT")
	overrideString(&c.Database.User, "DB_USER")
	overrideString(&c.Database.Password, "DB_PASSWORD")
	overrideString(&c.Database.DBName, "DB_NAME")
	overrideString(&c.JWT.Secret, "JWT_SECRET")
	overrideString(&c.AWS.AccessKey, "AWS_ACCESS_KEY_ID")
	overrideString(&c.AWS.SecretKey, "AWS_SECRET_ACCESS_KEY")
	overrideString(&c.Server.FrontendURL, "FRONTEND_URL")
	overrideInt(&c.Server.Port, "PORT")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3001
	}
	if c.Server.FrontendURL == "" {
		c.Server.FrontendURL = "http://localhost:5173"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.JWT.ExpiresHours == 0 {
		c.JWT.ExpiresHours = 7 * 24
	}
	if c.Geocoding.BaseURL == "" {
		c.Geocoding.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if c.Geocoding.UserAgent == "" {
		c.Geocoding.UserAgent = "SantaTracker/1.0"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
