package models

import "time"

// Config represents the application configuration
type Config struct {
	Database       DatabaseConfig
	Proximity      ProximityConfig
	Location       LocationConfig
	Server         ServerConfig
	Auth           AuthConfig
	Storage        StorageConfig
	Formance       FormanceConfig
	CategoriesFile string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	TxMaxAttempts   int
	TxRetryDelay    time.Duration
	CreateDemoData  bool
}

// ProximityConfig holds nearby-problem checker settings
type ProximityConfig struct {
	PollingInterval time.Duration
	Cooldown        time.Duration
	CleanupInterval time.Duration
	RadiusMeters    float64
}

// LocationConfig holds location persistence settings
type LocationConfig struct {
	MinPersistInterval time.Duration
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds token settings
type AuthConfig struct {
	JwtSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

// StorageConfig holds object storage settings
type StorageConfig struct {
	Backend   string
	LocalDir  string
	PublicUrl string
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// FormanceConfig holds Formance Stack connection settings. An empty StackURL
// disables the points journal.
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// Enabled reports whether a Formance stack is configured
func (c FormanceConfig) Enabled() bool {
	return c.StackURL != ""
}
