// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"crmsync/internal/domain"
)

// Remote backend names accepted in REMOTE_BACKEND.
const (
	BackendMemory = "memory"
	BackendDrive  = "drive"
	BackendS3     = "s3"
	BackendAzure  = "azure"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DriveConfig holds Google Drive backend configuration.
type DriveConfig struct {
	CredentialsFile string // service-account JSON key file
	FolderID        string // Drive folder holding the table files
}

// S3Config holds S3-compatible object storage configuration.
type S3Config struct {
	KeyID    string
	Secret   string
	Endpoint string
	Region   string
	Bucket   string
	Prefix   string
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName string
	AccountKey  string
	Container   string
}

// Config holds the configuration for the sync service.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // debug, info, warn, error (default "info")
	Env        string // "development" (default) or "production"

	// Source-of-record database.
	SourceDriver string // database/sql driver name (default "sqlite3")
	SourceDSN    string
	SourceSchema string // optional schema/database qualifier

	// Remote store backend selection and per-backend settings.
	RemoteBackend string // memory | drive | s3 | azure (default "memory")
	Drive         DriveConfig
	S3            S3Config
	Azure         AzureConfig

	// TablesFile points at the YAML table descriptor list. Empty means the
	// built-in CRM table set.
	TablesFile string

	// SyncSchedule is an optional five-field cron expression for unattended
	// refresh passes. Empty disables the scheduler.
	SyncSchedule string

	// SyncParallelism bounds concurrent tables per refresh pass.
	SyncParallelism int

	// CacheTTL expires cached snapshots even without an invalidation.
	// Zero means entries live until invalidated.
	CacheTTL time.Duration

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables and validates
// the selected remote backend.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:    os.Getenv("LISTEN_ADDR"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		Env:           os.Getenv("ENV"),
		SourceDriver:  os.Getenv("SOURCE_DRIVER"),
		SourceDSN:     os.Getenv("SOURCE_DSN"),
		SourceSchema:  os.Getenv("SOURCE_SCHEMA"),
		RemoteBackend: strings.ToLower(os.Getenv("REMOTE_BACKEND")),
		TablesFile:    os.Getenv("TABLES_FILE"),
		SyncSchedule:  os.Getenv("SYNC_SCHEDULE"),
		Drive: DriveConfig{
			CredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
			FolderID:        os.Getenv("DRIVE_FOLDER_ID"),
		},
		S3: S3Config{
			KeyID:    os.Getenv("KEY_ID"),
			Secret:   os.Getenv("SECRET"),
			Endpoint: os.Getenv("ENDPOINT"),
			Region:   os.Getenv("REGION"),
			Bucket:   os.Getenv("BUCKET"),
			Prefix:   os.Getenv("S3_PREFIX"),
		},
		Azure: AzureConfig{
			AccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
			AccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
			Container:   os.Getenv("AZURE_CONTAINER"),
		},
	}

	if v := os.Getenv("SYNC_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SyncParallelism = n
		}
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse CACHE_TTL %q: %w", v, err)
		}
		cfg.CacheTTL = d
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SourceDriver == "" {
		cfg.SourceDriver = "sqlite3"
	}
	if cfg.SourceDSN == "" {
		cfg.SourceDSN = "crm_source.sqlite"
		cfg.Warnings = append(cfg.Warnings, "SOURCE_DSN not set, using local crm_source.sqlite")
	}
	if cfg.RemoteBackend == "" {
		cfg.RemoteBackend = BackendMemory
		cfg.Warnings = append(cfg.Warnings, "REMOTE_BACKEND not set, using in-memory store, remote copies will not persist")
	}
	if cfg.SyncParallelism <= 0 {
		cfg.SyncParallelism = 4
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SourceSchema != "" && !identPattern.MatchString(c.SourceSchema) {
		return fmt.Errorf("SOURCE_SCHEMA %q is not a valid identifier", c.SourceSchema)
	}

	switch c.RemoteBackend {
	case BackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("REMOTE_BACKEND=memory is not allowed in production (ENV=production)")
		}
	case BackendDrive:
		if c.Drive.FolderID == "" {
			return fmt.Errorf("DRIVE_FOLDER_ID is required when REMOTE_BACKEND=drive")
		}
		if c.Drive.CredentialsFile == "" {
			return fmt.Errorf("GOOGLE_CREDENTIALS_FILE is required when REMOTE_BACKEND=drive")
		}
	case BackendS3:
		if c.S3.KeyID == "" || c.S3.Secret == "" || c.S3.Endpoint == "" || c.S3.Region == "" || c.S3.Bucket == "" {
			return fmt.Errorf("KEY_ID, SECRET, ENDPOINT, REGION and BUCKET are required when REMOTE_BACKEND=s3")
		}
	case BackendAzure:
		if c.Azure.AccountName == "" || c.Azure.AccountKey == "" || c.Azure.Container == "" {
			return fmt.Errorf("AZURE_ACCOUNT_NAME, AZURE_ACCOUNT_KEY and AZURE_CONTAINER are required when REMOTE_BACKEND=azure")
		}
	default:
		return fmt.Errorf("unknown REMOTE_BACKEND %q (expected memory, drive, s3 or azure)", c.RemoteBackend)
	}
	return nil
}

// tablesFile is the YAML shape of the table descriptor list.
type tablesFile struct {
	Tables []domain.TableDescriptor `yaml:"tables"`
}

// LoadDescriptors reads the table descriptor list. An empty path returns the
// built-in CRM table set.
func (c *Config) LoadDescriptors() ([]domain.TableDescriptor, error) {
	if c.TablesFile == "" {
		return DefaultDescriptors(), nil
	}

	data, err := os.ReadFile(c.TablesFile)
	if err != nil {
		return nil, fmt.Errorf("read tables file %s: %w", c.TablesFile, err)
	}
	var parsed tablesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse tables file %s: %w", c.TablesFile, err)
	}
	if len(parsed.Tables) == 0 {
		return nil, fmt.Errorf("tables file %s declares no tables", c.TablesFile)
	}

	seen := make(map[string]struct{}, len(parsed.Tables))
	for i := range parsed.Tables {
		d := &parsed.Tables[i]
		if !identPattern.MatchString(d.Name) {
			return nil, fmt.Errorf("tables file %s: invalid table name %q", c.TablesFile, d.Name)
		}
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("tables file %s: duplicate table %q", c.TablesFile, d.Name)
		}
		seen[d.Name] = struct{}{}
		if d.PrimaryKey == "" {
			d.PrimaryKey = "id"
		}
	}
	return parsed.Tables, nil
}

// DefaultDescriptors returns the CRM table set the export has always
// mirrored. All tables key on "id".
func DefaultDescriptors() []domain.TableDescriptor {
	names := []string{
		"call_categories", "call_types", "cities", "companies",
		"customer_phones", "customers", "governorates", "product_info",
		"request_reasons", "customercall", "ticket_categories",
		"ticket_item_change_another", "ticket_item_change_same",
		"ticket_item_maintenance", "ticket_items", "ticketcall",
		"tickets", "users",
	}
	descriptors := make([]domain.TableDescriptor, 0, len(names))
	for _, name := range names {
		descriptors = append(descriptors, domain.TableDescriptor{
			Name:       name,
			PrimaryKey: "id",
		})
	}
	return descriptors
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. Lines must be in KEY=VALUE format. Comments (#) and blank
// lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
