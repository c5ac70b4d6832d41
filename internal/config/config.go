// Package config handles external configuration loading from JSON and environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
)

// Enum policies for unrecognised status / rate type values
const (
	EnumPolicyCoerce = "coerce"
	EnumPolicyReject = "reject"
)

// Config holds all application configuration
type Config struct {
	Debug       bool     `json:"debug"`
	LogLevel    string   `json:"logLevel"`
	EnumPolicy  string   `json:"enumPolicy"`
	PartsPolicy string   `json:"partsPolicy"`
	Server      Server   `json:"server"`
	Database    Database `json:"database"`
	Business    Business `json:"business"`
	JWT         JWT      `json:"jwt"`
	Storage     Storage  `json:"storage"`
	Realtime    Realtime `json:"realtime"`
	Email       Email    `json:"email"`
	Health      Health   `json:"health"`
}

// Server holds HTTP server configuration
type Server struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	ReadTimeout     int    `json:"readTimeout"`
	ShutdownTimeout int    `json:"shutdownTimeout"` // seconds to drain requests on stop
	PublicBaseURL   string `json:"publicBaseURL"`
}

// Database holds database configuration
type Database struct {
	Path string `json:"path"`
}

// Business holds shop identity used in emails and labels
type Business struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contactEmail"`
	ContactPhone string `json:"contactPhone"`
}

// JWT holds JWT configuration
type JWT struct {
	Secret          string `json:"secret"`
	ExpirationHours int    `json:"expirationHours"`
}

// Storage holds attachment storage configuration
type Storage struct {
	Dir          string `json:"dir"`
	PublicPrefix string `json:"publicPrefix"`
}

// Realtime holds the optional MQTT bridge configuration
type Realtime struct {
	MQTTBroker      string `json:"mqttBroker"`
	MQTTClientID    string `json:"mqttClientID"`
	MQTTTopicPrefix string `json:"mqttTopicPrefix"`
}

// Email holds outbound email configuration
type Email struct {
	Provider     string `json:"provider"` // log, smtp
	From         string `json:"from"`
	SMTPHost     string `json:"smtpHost"`
	SMTPPort     int    `json:"smtpPort"`
	SMTPUsername string `json:"smtpUsername"`
	SMTPPassword string `json:"smtpPassword"`
}

// Health holds health monitor configuration
type Health struct {
	IntervalSeconds int `json:"intervalSeconds"`
}

// Load reads configuration from the specified JSON file and overrides with environment variables
func Load(configPath string) (*Config, error) {
	var cfg Config

	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to load .env file")
	}

	cleanPath := filepath.Clean(configPath)

	data, err := os.ReadFile(cleanPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	// If file doesn't exist, we continue with empty config and rely on Env Vars

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides overrides config values with environment variables if set
func (c *Config) applyEnvOverrides() {
	if debug := os.Getenv("DEBUG"); debug != "" {
		c.Debug = debug == "true" || debug == "1"
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if policy := os.Getenv("ENUM_POLICY"); policy != "" {
		c.EnumPolicy = policy
	}
	if policy := os.Getenv("PARTS_POLICY"); policy != "" {
		c.PartsPolicy = policy
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}
	if base := os.Getenv("PUBLIC_BASE_URL"); base != "" {
		c.Server.PublicBaseURL = base
	}

	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}

	// JWT secret (critical for production)
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}

	if dir := os.Getenv("STORAGE_DIR"); dir != "" {
		c.Storage.Dir = dir
	}

	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		c.Realtime.MQTTBroker = broker
	}

	if provider := os.Getenv("EMAIL_PROVIDER"); provider != "" {
		c.Email.Provider = provider
	}
	if from := os.Getenv("EMAIL_FROM"); from != "" {
		c.Email.From = from
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		c.Email.SMTPHost = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Email.SMTPPort = p
		}
	}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		c.Email.SMTPUsername = user
	}
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		c.Email.SMTPPassword = pass
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30
	}
	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/shopflow.db"
	}
	if c.Business.Name == "" {
		c.Business.Name = "Shopflow"
	}
	if c.JWT.ExpirationHours == 0 {
		c.JWT.ExpirationHours = 24
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data/uploads"
	}
	if c.Storage.PublicPrefix == "" {
		c.Storage.PublicPrefix = "/files"
	}
	if c.Realtime.MQTTClientID == "" {
		c.Realtime.MQTTClientID = "shopflow"
	}
	if c.Realtime.MQTTTopicPrefix == "" {
		c.Realtime.MQTTTopicPrefix = "shopflow"
	}
	if c.Email.Provider == "" {
		c.Email.Provider = "log"
	}
	if c.Email.From == "" {
		c.Email.From = "no-reply@shopflow.local"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Health.IntervalSeconds == 0 {
		c.Health.IntervalSeconds = 30
	}
	if c.EnumPolicy == "" {
		c.EnumPolicy = EnumPolicyCoerce
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// validate checks that all required configuration values are present
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Validate database path for security
	cleanDBPath := filepath.Clean(c.Database.Path)
	if !filepath.IsLocal(cleanDBPath) && !filepath.IsAbs(cleanDBPath) {
		return fmt.Errorf("invalid database path: potential path traversal detected")
	}

	if c.JWT.Secret == "" || c.JWT.Secret == "CHANGE_THIS_SECRET_IN_PRODUCTION" {
		if !c.Debug {
			return fmt.Errorf("JWT secret must be changed for production")
		}
		if c.JWT.Secret == "" {
			c.JWT.Secret = "debug-only-secret"
		}
	}
	if c.JWT.ExpirationHours <= 0 {
		return fmt.Errorf("invalid jwt expiration: %d", c.JWT.ExpirationHours)
	}

	switch c.EnumPolicy {
	case EnumPolicyCoerce, EnumPolicyReject:
	default:
		return fmt.Errorf("invalid enumPolicy %q: want %s or %s", c.EnumPolicy, EnumPolicyCoerce, EnumPolicyReject)
	}
	if _, err := domain.ParsePartsPolicy(c.PartsPolicy); err != nil {
		return fmt.Errorf("invalid partsPolicy: %w", err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid logLevel: %w", err)
	}

	switch strings.ToLower(c.Email.Provider) {
	case "log":
	case "smtp":
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("smtp provider requires smtpHost")
		}
	default:
		return fmt.Errorf("invalid email provider %q", c.Email.Provider)
	}

	if !strings.HasPrefix(c.Storage.PublicPrefix, "/") {
		return fmt.Errorf("storage publicPrefix must start with /")
	}
	return nil
}

// Address returns the full server address (host:port)
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetDatabasePath returns the cleaned and validated database path
func (c *Config) GetDatabasePath() string {
	return filepath.Clean(c.Database.Path)
}

// Parts returns the job line deletion policy for linked parts
func (c *Config) Parts() domain.PartsPolicy {
	p, _ := domain.ParsePartsPolicy(c.PartsPolicy)
	return p
}

// RejectUnknownEnums reports whether unrecognised enum values are errors
func (c *Config) RejectUnknownEnums() bool {
	return c.EnumPolicy == EnumPolicyReject
}

// ConfigureLogging applies level and formatter to the standard logrus logger
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	if c.Debug && level < log.DebugLevel {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	if c.Debug {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
}
