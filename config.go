package storefront

import (
	"fmt"
	"slices"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/storefront/feeders"
)

// EnvPrefix is prepended to every `env` tag when reading the environment.
const EnvPrefix = "STOREFRONT"

// Config is the complete storefront configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server" json:"server"`
	API     APIConfig     `yaml:"api" toml:"api" json:"api"`
	Catalog CatalogConfig `yaml:"catalog" toml:"catalog" json:"catalog"`
	Relay   RelayConfig   `yaml:"relay" toml:"relay" json:"relay"`
	Log     LogConfig     `yaml:"log" toml:"log" json:"log"`
}

// ServerConfig configures the HTTP view surface.
type ServerConfig struct {
	Addr            string        `yaml:"addr" toml:"addr" json:"addr" env:"SERVER_ADDR" default:":8080" desc:"Listen address"`
	ReadTimeout     time.Duration `yaml:"readTimeout" toml:"readTimeout" json:"readTimeout" env:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" toml:"writeTimeout" json:"writeTimeout" env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" toml:"shutdownTimeout" json:"shutdownTimeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// APIConfig points at the remote product and order API.
type APIConfig struct {
	BaseURL string        `yaml:"baseURL" toml:"baseURL" json:"baseURL" env:"API_URL" required:"true" desc:"Remote API base URL"`
	CDNURL  string        `yaml:"cdnURL" toml:"cdnURL" json:"cdnURL" env:"CDN_URL" desc:"Prefix for product image references"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout" json:"timeout" env:"API_TIMEOUT" default:"10s"`
}

// CatalogConfig controls where the catalog comes from and how often it is refreshed.
type CatalogConfig struct {
	RefreshSchedule string `yaml:"refreshSchedule" toml:"refreshSchedule" json:"refreshSchedule" env:"CATALOG_REFRESH" default:"@every 15m" desc:"Cron spec for remote catalog refresh"`
	SeedFile        string `yaml:"seedFile" toml:"seedFile" json:"seedFile" env:"CATALOG_FILE" desc:"Optional JSON file with raw products"`
	WatchSeedFile   bool   `yaml:"watchSeedFile" toml:"watchSeedFile" json:"watchSeedFile" env:"CATALOG_WATCH"`
}

// RelayConfig configures the outbound order-event integrations. Every sink
// is optional and enabled by its address being set.
type RelayConfig struct {
	Source       string   `yaml:"source" toml:"source" json:"source" env:"RELAY_SOURCE" default:"/storefront"`
	SinkURL      string   `yaml:"sinkURL" toml:"sinkURL" json:"sinkURL" env:"RELAY_SINK_URL" desc:"CloudEvents HTTP sink"`
	KafkaBrokers []string `yaml:"kafkaBrokers" toml:"kafkaBrokers" json:"kafkaBrokers" env:"RELAY_KAFKA_BROKERS"`
	KafkaTopic   string   `yaml:"kafkaTopic" toml:"kafkaTopic" json:"kafkaTopic" env:"RELAY_KAFKA_TOPIC" default:"storefront.orders"`
	SMTPHost     string   `yaml:"smtpHost" toml:"smtpHost" json:"smtpHost" env:"RELAY_SMTP_HOST"`
	SMTPPort     int      `yaml:"smtpPort" toml:"smtpPort" json:"smtpPort" env:"RELAY_SMTP_PORT" default:"587"`
	SMTPUser     string   `yaml:"smtpUser" toml:"smtpUser" json:"smtpUser" env:"RELAY_SMTP_USER"`
	SMTPPassword string   `yaml:"smtpPassword" toml:"smtpPassword" json:"smtpPassword" env:"RELAY_SMTP_PASSWORD"`
	MailFrom     string   `yaml:"mailFrom" toml:"mailFrom" json:"mailFrom" env:"RELAY_MAIL_FROM" default:"orders@storefront.local"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level" env:"LOG_LEVEL" default:"info"`
	Format string `yaml:"format" toml:"format" json:"format" env:"LOG_FORMAT" default:"text"`
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks required fields and cross-field constraints.
func (c *Config) Validate() error {
	if err := ValidateConfigRequired(c); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.Catalog.RefreshSchedule); err != nil {
		return fmt.Errorf("%w: catalog refresh schedule %q: %w", ErrConfigValidationFailed, c.Catalog.RefreshSchedule, err)
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		return fmt.Errorf("%w: unknown log level %q", ErrConfigValidationFailed, c.Log.Level)
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		return fmt.Errorf("%w: unknown log format %q", ErrConfigValidationFailed, c.Log.Format)
	}
	return nil
}

// LoadConfig builds a Config from tag defaults, the optional file at path
// and STOREFRONT_* environment variables, in that order, then validates it.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if err := ProcessConfigDefaults(cfg); err != nil {
		return nil, err
	}

	sources := make([]feeders.Feeder, 0, 2)
	if path != "" {
		fileFeeder, err := feeders.NewFileFeeder(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfigFeederError, err)
		}
		sources = append(sources, fileFeeder)
	}
	sources = append(sources, feeders.NewAffixedEnvFeeder(EnvPrefix, ""))

	for _, feeder := range sources {
		if err := feeder.Feed(cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfigFeederError, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
