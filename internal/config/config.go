package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigName is the file Load looks for in the config directory.
const ConfigName = "motodash.config.json"

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Address string `json:"address" mapstructure:"address"`
	Mode    string `json:"mode" mapstructure:"mode"`
}

// SQLiteConfig holds SQLite storage backend settings.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN formats the libpq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// StorageConfig selects and configures the store backend.
type StorageConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// InfluxConfig holds the telemetry time-series sink settings.
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	URL        string `json:"url" mapstructure:"url"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// GraylogConfig holds the GELF log shipping settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// SimulatorConfig holds the timer periods and randomness of the engine.
type SimulatorConfig struct {
	TelemetryInterval time.Duration `json:"telemetryInterval" mapstructure:"telemetryInterval"`
	AnimationInterval time.Duration `json:"animationInterval" mapstructure:"animationInterval"`
	WarningInterval   time.Duration `json:"warningInterval" mapstructure:"warningInterval"`
	StatusInterval    time.Duration `json:"statusInterval" mapstructure:"statusInterval"`
	Seed              int64         `json:"seed" mapstructure:"seed"`
}

// RecorderConfig holds the telemetry history settings.
type RecorderConfig struct {
	Enabled       bool          `json:"enabled" mapstructure:"enabled"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	BufferSize    int           `json:"bufferSize" mapstructure:"bufferSize"`
}

// DisplayConfig holds the window settings.
type DisplayConfig struct {
	Enabled   bool    `json:"enabled" mapstructure:"enabled"`
	Width     int     `json:"width" mapstructure:"width"`
	Height    int     `json:"height" mapstructure:"height"`
	GaugeSize float64 `json:"gaugeSize" mapstructure:"gaugeSize"`
	MaxSpeed  float64 `json:"maxSpeed" mapstructure:"maxSpeed"`
	UserID    string  `json:"userId" mapstructure:"userId"`
	ServerURL string  `json:"serverUrl" mapstructure:"serverUrl"`
}

// SetDefaults registers every default value with viper.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("server.address", ":5000")
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "./motodash.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "motodash")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "motodash")
	viper.SetDefault("influx.bucket", "telemetry")
	viper.SetDefault("influx.backupPath", "./telemetry.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "motodash")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("simulator.telemetryInterval", "1000ms")
	viper.SetDefault("simulator.animationInterval", "16ms")
	viper.SetDefault("simulator.warningInterval", "7000ms")
	viper.SetDefault("simulator.statusInterval", "60s")
	viper.SetDefault("simulator.seed", 0)

	viper.SetDefault("recorder.enabled", true)
	viper.SetDefault("recorder.flushInterval", "5s")
	viper.SetDefault("recorder.bufferSize", 600)

	viper.SetDefault("display.enabled", true)
	viper.SetDefault("display.width", 1280)
	viper.SetDefault("display.height", 720)
	viper.SetDefault("display.gaugeSize", 0)
	viper.SetDefault("display.maxSpeed", 200)
	viper.SetDefault("display.userId", "default")
	viper.SetDefault("display.serverUrl", "")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Environment
// variables prefixed MOTODASH_ override both.
func Load(configDir string) error {
	SetDefaults()

	viper.SetEnvPrefix("MOTODASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(ConfigName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetServerConfig returns the HTTP API settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Address: viper.GetString("server.address"),
		Mode:    viper.GetString("server.mode"),
	}
}

// GetStorageConfig returns the store backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
		},
	}
}

// GetInfluxConfig returns the time-series sink settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		URL:        viper.GetString("influx.url"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetGraylogConfig returns the GELF shipping settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetSimulatorConfig returns the engine timer settings.
func GetSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		TelemetryInterval: viper.GetDuration("simulator.telemetryInterval"),
		AnimationInterval: viper.GetDuration("simulator.animationInterval"),
		WarningInterval:   viper.GetDuration("simulator.warningInterval"),
		StatusInterval:    viper.GetDuration("simulator.statusInterval"),
		Seed:              viper.GetInt64("simulator.seed"),
	}
}

// GetRecorderConfig returns the telemetry history settings.
func GetRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Enabled:       viper.GetBool("recorder.enabled"),
		FlushInterval: viper.GetDuration("recorder.flushInterval"),
		BufferSize:    viper.GetInt("recorder.bufferSize"),
	}
}

// GetDisplayConfig returns the window settings.
func GetDisplayConfig() DisplayConfig {
	return DisplayConfig{
		Enabled:   viper.GetBool("display.enabled"),
		Width:     viper.GetInt("display.width"),
		Height:    viper.GetInt("display.height"),
		GaugeSize: viper.GetFloat64("display.gaugeSize"),
		MaxSpeed:  viper.GetFloat64("display.maxSpeed"),
		UserID:    viper.GetString("display.userId"),
		ServerURL: viper.GetString("display.serverUrl"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
