package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/icodeforyou/rdn-scraper/logging"
	"github.com/icodeforyou/rdn-scraper/tge"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type AppConfigScraper struct {
	URL       string        `mapstructure:"url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RunAt     string        `mapstructure:"run_at"` // Cron expression, default: "0 15 * * *"
	// Run once directly at startup, default: true
	RunAtStartup *bool  `mapstructure:"run_at_startup"`
	RowSelector  string `mapstructure:"row_selector"`
	CellSelector string `mapstructure:"cell_selector"`
	LabelColumn  int    `mapstructure:"label_column"`
	PriceColumn  int    `mapstructure:"price_column"`
	// What to do with rows without a calendar date: "now", "reject", "today", default: "now"
	DateFallback   string        `mapstructure:"date_fallback"`
	DateOffsetDays int           `mapstructure:"date_offset_days"` // Used by the "today" fallback
	Measurement    string        `mapstructure:"measurement"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

func (s AppConfigScraper) GetRunAtStartup() bool {
	if s.RunAtStartup == nil {
		return true
	}
	return *s.RunAtStartup
}

func (s AppConfigScraper) GetDateFallback() tge.DateFallback {
	f, err := tge.ParseDateFallback(s.DateFallback)
	if err != nil {
		return tge.FallbackNow
	}
	return f
}

type SinkType string

const (
	SinkSQLite    SinkType = "sqlite"
	SinkInfluxDB  SinkType = "influxdb"
	SinkTimescale SinkType = "timescale"
)

type AppConfigSink struct {
	// Primary time-series store: "sqlite", "influxdb", "timescale", default: "sqlite"
	Type string `mapstructure:"type"`
}

func (s AppConfigSink) GetType() SinkType {
	return SinkType(strings.ToLower(strings.TrimSpace(s.Type)))
}

type AppConfigDatabase struct {
	Path string
	// How many days data should be stored in database before it gets purged
	DataRetentionDays *int `mapstructure:"data_retention_days"`
	// How many days daily backup files should be stored before they gets deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
	// Cron expression for backup and purge, default: "30 2 * * *"
	MaintenanceAt string `mapstructure:"maintenance_at"`
}

func (d AppConfigDatabase) GetDataRetentionDays() int {
	if d.DataRetentionDays == nil {
		return 90
	}
	return *d.DataRetentionDays
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 90
	}
	return *d.BackupRetentionDays
}

type AppConfigInflux struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

type AppConfigTimescale struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
}

type AppConfigMqtt struct {
	// Also publish every batch to the broker
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	Qos      byte   `mapstructure:"qos"`
}

type AppConfigPinger struct {
	Enabled    bool          `mapstructure:"enabled"`
	Target     string        `mapstructure:"target"`
	Interval   time.Duration `mapstructure:"interval"`
	Count      int           `mapstructure:"count"`
	Size       int           `mapstructure:"size"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Privileged bool          `mapstructure:"privileged"` // Raw ICMP sockets instead of UDP
}

type AppConfigApi struct {
	Address string
	Port    int
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for database console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat == nil {
		return logging.LogAttrFormatJSON
	}
	if strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Scraper   AppConfigScraper   `mapstructure:"scraper"`
	Sink      AppConfigSink      `mapstructure:"sink"`
	Database  AppConfigDatabase  `mapstructure:"database"`
	Influx    AppConfigInflux    `mapstructure:"influx"`
	Timescale AppConfigTimescale `mapstructure:"timescale"`
	Mqtt      AppConfigMqtt      `mapstructure:"mqtt"`
	Pinger    AppConfigPinger    `mapstructure:"pinger"`
	Api       AppConfigApi       `mapstructure:"api"`
	Logging   AppConfigLogging   `mapstructure:"logging"`

	v *viper.Viper
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraper.url", tge.DefaultURL)
	v.SetDefault("scraper.user_agent", tge.DefaultUserAgent)
	v.SetDefault("scraper.timeout", tge.DefaultTimeout)
	v.SetDefault("scraper.run_at", "0 15 * * *")
	v.SetDefault("scraper.row_selector", tge.DefaultRowSelector)
	v.SetDefault("scraper.cell_selector", tge.DefaultCellSelector)
	v.SetDefault("scraper.label_column", 0)
	v.SetDefault("scraper.price_column", 13)
	v.SetDefault("scraper.date_fallback", string(tge.FallbackNow))
	v.SetDefault("scraper.date_offset_days", 1)
	v.SetDefault("scraper.measurement", "scraped_prices")
	v.SetDefault("scraper.write_timeout", 30*time.Second)

	v.SetDefault("sink.type", string(SinkSQLite))

	v.SetDefault("database.path", "rdn.db")
	v.SetDefault("database.maintenance_at", "30 2 * * *")

	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.org", "")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.bucket", "electricity_prices")

	v.SetDefault("timescale.host", "localhost")
	v.SetDefault("timescale.port", 5432)
	v.SetDefault("timescale.user", "postgres")
	v.SetDefault("timescale.password", "")
	v.SetDefault("timescale.name", "electricity_prices")
	v.SetDefault("timescale.sslmode", "disable")
	v.SetDefault("timescale.max_conns", 4)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "rdn-scraper")
	v.SetDefault("mqtt.topic", "rdn/prices")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("pinger.enabled", false)
	v.SetDefault("pinger.target", "1.1.1.1")
	v.SetDefault("pinger.interval", 30*time.Second)
	v.SetDefault("pinger.count", 4)
	v.SetDefault("pinger.size", 40)
	v.SetDefault("pinger.timeout", 2*time.Second)
	v.SetDefault("pinger.privileged", false)

	v.SetDefault("api.address", "")
	v.SetDefault("api.port", 8080)

	// Optional keys have no default, they are only bound so env vars reach them.
	for _, key := range []string{
		"scraper.run_at_startup",
		"database.data_retention_days",
		"database.backup_retention_days",
		"logging.db_level",
		"logging.db_attrs_format",
		"logging.db_max_entries",
		"logging.console_level",
	} {
		_ = v.BindEnv(key)
	}
}

// Load reads the configuration from path, or from config/config.yaml when
// path is empty. A missing default file is not an error, defaults and
// environment variables apply. A .env file in the working directory is
// loaded into the environment first.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to read .env file: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	c := AppConfig{v: v}
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}
	return &c, nil
}

// File returns the config file in use, empty when running on defaults.
func (c *AppConfig) File() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// Watch calls fn with the reloaded configuration every time the config file
// changes. It does nothing when no file is in use.
func (c *AppConfig) Watch(logger *slog.Logger, fn func(*AppConfig)) {
	if c.File() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		logger.Info("config file changed", slog.String("file", e.Name), slog.String("op", e.Op.String()))
		next, err := decode(c.v)
		if err != nil {
			logger.Error("reloading config failed", slog.Any("error", err))
			return
		}
		if err := next.Validate(); err != nil {
			logger.Error("reloaded config is invalid", slog.Any("error", err))
			return
		}
		fn(next)
	})
	c.v.WatchConfig()
}

// Validate reports every invalid or missing value of the selected setup.
func (c *AppConfig) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if u, err := url.Parse(c.Scraper.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("scraper.url: %q is not an http(s) url", c.Scraper.URL)
	}
	if c.Scraper.Timeout <= 0 {
		add("scraper.timeout: must be positive")
	}
	if _, err := cron.ParseStandard(c.Scraper.RunAt); err != nil {
		add("scraper.run_at: %w", err)
	}
	if c.Scraper.LabelColumn < 0 || c.Scraper.PriceColumn < 0 {
		add("scraper: column indexes must not be negative")
	} else if c.Scraper.LabelColumn == c.Scraper.PriceColumn {
		add("scraper: label_column and price_column must differ")
	}
	if _, err := tge.ParseDateFallback(c.Scraper.DateFallback); err != nil {
		add("scraper.date_fallback: %w", err)
	}

	if c.Database.Path == "" {
		add("database.path: required")
	}
	if c.Database.MaintenanceAt != "" {
		if _, err := cron.ParseStandard(c.Database.MaintenanceAt); err != nil {
			add("database.maintenance_at: %w", err)
		}
	}

	switch c.Sink.GetType() {
	case SinkSQLite:
	case SinkInfluxDB:
		if c.Influx.URL == "" {
			add("influx.url: required for the influxdb sink")
		}
		if c.Influx.Token == "" {
			add("influx.token: required for the influxdb sink")
		}
		if c.Influx.Org == "" {
			add("influx.org: required for the influxdb sink")
		}
		if c.Influx.Bucket == "" {
			add("influx.bucket: required for the influxdb sink")
		}
	case SinkTimescale:
		if c.Timescale.Host == "" {
			add("timescale.host: required for the timescale sink")
		}
		if c.Timescale.Name == "" {
			add("timescale.name: required for the timescale sink")
		}
		if c.Timescale.User == "" {
			add("timescale.user: required for the timescale sink")
		}
	default:
		add("sink.type: unknown sink %q, expected sqlite, influxdb or timescale", c.Sink.Type)
	}

	if c.Mqtt.Enabled {
		if c.Mqtt.Host == "" {
			add("mqtt.host: required when mqtt is enabled")
		}
		if c.Mqtt.Topic == "" {
			add("mqtt.topic: required when mqtt is enabled")
		}
		if c.Mqtt.Qos > 2 {
			add("mqtt.qos: must be 0, 1 or 2")
		}
	}

	if c.Pinger.Enabled {
		if c.Pinger.Target == "" {
			add("pinger.target: required when the pinger is enabled")
		}
		if c.Pinger.Interval < time.Second {
			add("pinger.interval: must be at least 1s")
		}
		if c.Pinger.Count < 1 {
			add("pinger.count: must be at least 1")
		}
	}

	if c.Api.Port < 0 || c.Api.Port > 65535 {
		add("api.port: %d out of range", c.Api.Port)
	}

	return errors.Join(errs...)
}
