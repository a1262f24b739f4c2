// Package config loads the service configuration once at startup.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file named by SIGNING_CONFIG, then environment variables. The result is
// validated and passed by pointer into constructors.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Lllllllleong/contractsigning/internal/stamper"
	"github.com/spf13/viper"
)

type Assets struct {
	TemplatePath      string `mapstructure:"template_path"`
	AutoSignaturePath string `mapstructure:"auto_signature_path"`
	SigningPagePath   string `mapstructure:"signing_page_path"`
}

type Intake struct {
	URL            string `mapstructure:"url"`
	BusinessUnitID string `mapstructure:"business_unit_id"`
	ItemServiceID  string `mapstructure:"item_service_id"`
}

type Convert struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	SyncBaseURL string        `mapstructure:"sync_base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type Messaging struct {
	URL           string `mapstructure:"url"`
	Instance      string `mapstructure:"instance"`
	APIKey        string `mapstructure:"api_key"`
	CountryPrefix string `mapstructure:"country_prefix"`
	DelayMillis   int    `mapstructure:"delay_ms"`
}

type Email struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type Storage struct {
	Backend      string        `mapstructure:"backend"`
	LocalDir     string        `mapstructure:"local_dir"`
	Bucket       string        `mapstructure:"bucket"`
	SignedURLTTL time.Duration `mapstructure:"signed_url_ttl"`
}

type Metadata struct {
	Backend    string `mapstructure:"backend"`
	DatabaseID string `mapstructure:"database_id"`
	Collection string `mapstructure:"collection"`
}

type Lock struct {
	Backend   string        `mapstructure:"backend"`
	RedisAddr string        `mapstructure:"redis_addr"`
	Password  string        `mapstructure:"redis_password"`
	DB        int           `mapstructure:"redis_db"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type Delivery struct {
	Backend          string `mapstructure:"backend"`
	WorkflowLocation string `mapstructure:"workflow_location"`
	WorkflowID       string `mapstructure:"workflow_id"`
}

type Cleanup struct {
	Retention time.Duration `mapstructure:"retention"`
	Interval  time.Duration `mapstructure:"interval"`
}

// Config is the complete service configuration.
type Config struct {
	ProjectID       string        `mapstructure:"project_id"`
	Port            string        `mapstructure:"port"`
	PublicBaseURL   string        `mapstructure:"public_base_url"`
	SigningBaseURL  string        `mapstructure:"signing_base_url"`
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
	CronSecret      string        `mapstructure:"cron_secret"`
	TimeZone        string        `mapstructure:"time_zone"`
	OutboundTimeout time.Duration `mapstructure:"outbound_timeout"`

	Assets    Assets         `mapstructure:"assets"`
	Intake    Intake         `mapstructure:"intake"`
	Convert   Convert        `mapstructure:"convert"`
	Messaging Messaging      `mapstructure:"messaging"`
	Email     Email          `mapstructure:"email"`
	Storage   Storage        `mapstructure:"storage"`
	Metadata  Metadata       `mapstructure:"metadata"`
	Lock      Lock           `mapstructure:"lock"`
	Delivery  Delivery       `mapstructure:"delivery"`
	Cleanup   Cleanup        `mapstructure:"cleanup"`
	Stamp     stamper.Layout `mapstructure:"stamp"`
}

// DefaultConfig returns a configuration that runs locally with no cloud services.
func DefaultConfig() *Config {
	return &Config{
		Port:            "8080",
		PublicBaseURL:   "http://localhost:8080",
		SigningBaseURL:  "http://localhost:8080",
		TimeZone:        "America/Mexico_City",
		OutboundTimeout: 30 * time.Second,
		Assets: Assets{
			TemplatePath:      "resources/contrato_template.docx",
			AutoSignaturePath: "resources/firma_institucional.png",
			SigningPagePath:   "web/signing.html",
		},
		Intake: Intake{BusinessUnitID: "1", ItemServiceID: "897"},
		Convert: Convert{
			BaseURL:     "https://api.cloudconvert.com/v2",
			SyncBaseURL: "https://sync.api.cloudconvert.com/v2",
			Timeout:     2 * time.Minute,
		},
		Messaging: Messaging{CountryPrefix: "521", DelayMillis: 1200},
		Email:     Email{Port: 587},
		Storage: Storage{
			Backend:      "local",
			LocalDir:     "data",
			SignedURLTTL: 7 * 24 * time.Hour,
		},
		Metadata: Metadata{Backend: "sidecar", Collection: "signing_documents"},
		Lock:     Lock{Backend: "memory", TTL: 2 * time.Minute},
		Delivery: Delivery{Backend: "direct", WorkflowLocation: "us-central1", WorkflowID: "contract-delivery"},
		Cleanup:  Cleanup{Retention: 24 * time.Hour},
		Stamp:    stamper.DefaultLayout(),
	}
}

// envBindings maps config keys onto the environment variable names the
// deployment already uses.
var envBindings = map[string]string{
	"project_id":                 "PROJECT_ID",
	"port":                       "PORT",
	"public_base_url":            "PUBLIC_BASE_URL",
	"signing_base_url":           "SIGNING_BASE_URL",
	"allowed_origin":             "ALLOWED_ORIGIN",
	"cron_secret":                "CRON_SECRET",
	"time_zone":                  "TIME_ZONE",
	"outbound_timeout":           "OUTBOUND_TIMEOUT",
	"assets.template_path":       "TEMPLATE_PATH",
	"assets.auto_signature_path": "AUTO_SIGNATURE_PATH",
	"assets.signing_page_path":   "SIGNING_PAGE_PATH",
	"intake.url":                 "INSCRIPTION_API_URL",
	"convert.api_key":            "CLOUDCONVERT_API_KEY",
	"convert.timeout":            "CONVERT_TIMEOUT",
	"messaging.url":              "EVOLUTION_API_URL",
	"messaging.instance":         "EVOLUTION_INSTANCE_NAME",
	"messaging.api_key":          "EVOLUTION_API_KEY",
	"email.host":                 "SMTP_HOST",
	"email.port":                 "SMTP_PORT",
	"email.username":             "SMTP_USERNAME",
	"email.password":             "SMTP_PASSWORD",
	"email.from":                 "SMTP_FROM",
	"storage.backend":            "STORAGE_BACKEND",
	"storage.local_dir":          "STORAGE_DIR",
	"storage.bucket":             "STORAGE_BUCKET",
	"storage.signed_url_ttl":     "SIGNED_URL_TTL",
	"metadata.backend":           "METADATA_BACKEND",
	"metadata.database_id":       "FIRESTORE_DATABASE",
	"metadata.collection":        "FIRESTORE_COLLECTION",
	"lock.backend":               "LOCK_BACKEND",
	"lock.redis_addr":            "REDIS_ADDR",
	"lock.redis_password":        "REDIS_PASSWORD",
	"lock.redis_db":              "REDIS_DB",
	"lock.ttl":                   "LOCK_TTL",
	"delivery.backend":           "DELIVERY_BACKEND",
	"delivery.workflow_location": "WORKFLOW_LOCATION",
	"delivery.workflow_id":       "WORKFLOW_ID",
	"cleanup.retention":          "CLEANUP_RETENTION",
	"cleanup.interval":           "SWEEP_INTERVAL",
}

// Load resolves the configuration. path may be empty, in which case the
// SIGNING_CONFIG environment variable is consulted.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	if err := v.BindEnv("config_file", "SIGNING_CONFIG"); err != nil {
		return nil, fmt.Errorf("failed to bind SIGNING_CONFIG: %w", err)
	}

	if path == "" {
		path = v.GetString("config_file")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	// mapstructure writes into existing slices element by element, so a
	// shorter table in the file would keep the default's tail.
	if v.IsSet("stamp.user.locations") {
		cfg.Stamp.User.Locations = nil
	}
	if v.IsSet("stamp.auto.locations") {
		cfg.Stamp.Auto.Locations = nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements of the selected backends.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("time_zone: %w", err))
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			errs = append(errs, errors.New("storage.local_dir must be set for the local backend"))
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("STORAGE_BUCKET must be set for the gcs backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	switch c.Metadata.Backend {
	case "sidecar":
	case "firestore":
		if c.ProjectID == "" {
			errs = append(errs, errors.New("PROJECT_ID must be set for the firestore metadata backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown metadata backend %q", c.Metadata.Backend))
	}
	switch c.Lock.Backend {
	case "memory":
	case "redis":
		if c.Lock.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR must be set for the redis lock backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lock backend %q", c.Lock.Backend))
	}
	switch c.Delivery.Backend {
	case "direct":
	case "workflow":
		if c.ProjectID == "" {
			errs = append(errs, errors.New("PROJECT_ID must be set for the workflow delivery backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown delivery backend %q", c.Delivery.Backend))
	}
	if c.Cleanup.Retention < 0 {
		errs = append(errs, errors.New("cleanup.retention must not be negative"))
	}
	if err := c.Stamp.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("stamp: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the time zone used for dates printed on documents.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// SigningURL returns the applicant-facing link for a pending document.
func (c *Config) SigningURL(id string) string {
	return strings.TrimRight(c.SigningBaseURL, "/") + "/sign/" + id
}
