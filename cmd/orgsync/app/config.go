package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
)

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Storage
	DatabasePath string
	CacheURL     string

	// Apiary
	ApiaryServer string
	ApiaryToken  string

	// Keycloak
	KeycloakServer       string
	KeycloakRealm        string
	KeycloakClientID     string
	KeycloakClientSecret string

	// Ramp
	RampServer       string
	RampClientID     string
	RampClientSecret string

	// Google Workspace. Credentials is either a path to a service account
	// key file or the key itself.
	GoogleCredentials string
	GoogleSubject     string
	GoogleCustomer    string

	// HubSpot
	HubSpotServer      string
	HubSpotAccessToken string

	// Worker
	WorkerInterval time.Duration
	MetricsAddr    string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// envKeys are bound explicitly so they resolve even without a config file entry.
var envKeys = []string{
	"DATABASE_PATH",
	"CACHE_URL",
	"APIARY_SERVER",
	"APIARY_TOKEN",
	"KEYCLOAK_SERVER",
	"KEYCLOAK_REALM",
	"KEYCLOAK_ADMIN_CLIENT_ID",
	"KEYCLOAK_ADMIN_CLIENT_SECRET",
	"RAMP_SERVER",
	"RAMP_CLIENT_ID",
	"RAMP_CLIENT_SECRET",
	"GOOGLE_SERVICE_ACCOUNT_CREDENTIALS",
	"GOOGLE_SUBJECT",
	"GOOGLE_CUSTOMER",
	"HUBSPOT_SERVER",
	"HUBSPOT_ACCESS_TOKEN",
	"WORKER_INTERVAL",
	"METRICS_ADDR",
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables
// 3. .env files
// 4. Config file (~/.orgsync.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	return loadConfig("")
}

func loadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(strings.ToLower(key), key); err != nil {
			return nil, errors.NewConfigError("env", "failed to bind "+key, err)
		}
	}

	v.SetDefault("database_path", constants.DefaultDatabasePath)
	v.SetDefault("keycloak_realm", constants.DefaultKeycloakRealm)
	v.SetDefault("ramp_server", constants.DefaultRampServer)
	v.SetDefault("hubspot_server", constants.DefaultHubSpotServer)
	v.SetDefault("google_customer", constants.DefaultWorkspaceCustomer)
	v.SetDefault("worker_interval", constants.WorkerPollInterval)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".orgsync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicitly named file must exist; the default one is optional.
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "failed to read "+configFile, err)
		}
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no-color"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		DatabasePath: expandHome(v.GetString("database_path")),
		CacheURL:     v.GetString("cache_url"),

		ApiaryServer: v.GetString("apiary_server"),
		ApiaryToken:  v.GetString("apiary_token"),

		KeycloakServer:       v.GetString("keycloak_server"),
		KeycloakRealm:        v.GetString("keycloak_realm"),
		KeycloakClientID:     v.GetString("keycloak_admin_client_id"),
		KeycloakClientSecret: v.GetString("keycloak_admin_client_secret"),

		RampServer:       v.GetString("ramp_server"),
		RampClientID:     v.GetString("ramp_client_id"),
		RampClientSecret: v.GetString("ramp_client_secret"),

		GoogleCredentials: v.GetString("google_service_account_credentials"),
		GoogleSubject:     v.GetString("google_subject"),
		GoogleCustomer:    v.GetString("google_customer"),

		HubSpotServer:      v.GetString("hubspot_server"),
		HubSpotAccessToken: v.GetString("hubspot_access_token"),

		WorkerInterval: v.GetDuration("worker_interval"),
		MetricsAddr:    v.GetString("metrics_addr"),

		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	return config, nil
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// WorkspaceCredentials returns the service account key, reading it from
// disk unless the setting already holds JSON.
func (c *Config) WorkspaceCredentials() ([]byte, error) {
	creds := strings.TrimSpace(c.GoogleCredentials)
	if strings.HasPrefix(creds, "{") {
		return []byte(creds), nil
	}
	data, err := os.ReadFile(expandHome(creds))
	if err != nil {
		return nil, errors.WrapIO("read", creds, err)
	}
	return data, nil
}

// loadEnvFiles loads environment variables from .env files. godotenv never
// overrides a variable that is already set, so .env.local is loaded first.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

// expandHome resolves a leading ~ against the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
