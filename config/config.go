package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cepro/solarmonitor/telemetry"
	"gopkg.in/yaml.v3"
)

const (
	defaultPollIntervalSecs   = 30
	defaultDeviceTimeoutSecs  = 10
	defaultPikoCIPort         = 1502
	defaultKsemPort           = 502
	defaultKsemBaseAddr       = 40072
	defaultUnitID             = 1
	defaultOmieFetchSecs      = 3600
	defaultUploadIntervalSecs = 5
	defaultReportIntervalSecs = 900
	defaultPiko15RatedW       = 15_000
	defaultPikoCI50RatedW     = 50_000
	defaultCO2FactorKgPerKWh  = 0.170
	defaultDatabasePath       = "solar.sqlite"
	defaultRatesPath          = "pricing.json"
	defaultMetricsListenAddr  = ":9100"
	defaultSupabaseSchema     = "public"
	supabaseKeyEnvVar         = "SUPABASE_KEY"
	supabaseUserKeyEnvVar     = "SUPABASE_USER_KEY"
)

type Piko15Config struct {
	Host string `yaml:"host"`
}

type ModbusDeviceConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	UnitID uint8  `yaml:"unitId"`
}

type KsemConfig struct {
	ModbusDeviceConfig `yaml:",inline"`
	BaseAddr           uint16 `yaml:"baseAddr"`
}

// DevicesConfig lists the devices to poll. A device without a host is not polled.
type DevicesConfig struct {
	Piko15   Piko15Config       `yaml:"piko15"`
	PikoCI50 ModbusDeviceConfig `yaml:"pikoCi50"`
	Ksem     KsemConfig         `yaml:"ksem"`
}

type OmieConfig struct {
	URLTemplate       string `yaml:"urlTemplate"`
	FetchIntervalSecs int    `yaml:"fetchIntervalSecs"`
}

type SupabaseConfig struct {
	Url string `yaml:"url"`
	// keys are specified via env vars
	Schema string `yaml:"schema"`
}

type DataPlatformConfig struct {
	UploadIntervalSecs int            `yaml:"uploadIntervalSecs"`
	Supabase           SupabaseConfig `yaml:"supabase"`
}

type ReportsConfig struct {
	Dir               string             `yaml:"dir"` // reports are not rendered when empty
	IntervalSecs      int                `yaml:"intervalSecs"`
	RatedPowerW       map[string]float64 `yaml:"ratedPowerW"`
	CO2FactorKgPerKWh float64            `yaml:"co2FactorKgPerKWh"`
}

type Config struct {
	LogLevel          string             `yaml:"logLevel"`
	DatabasePath      string             `yaml:"databasePath"`
	RatesPath         string             `yaml:"ratesPath"`
	MetricsListenAddr string             `yaml:"metricsListenAddr"`
	PollIntervalSecs  int                `yaml:"pollIntervalSecs"`
	DeviceTimeoutSecs int                `yaml:"deviceTimeoutSecs"`
	Devices           DevicesConfig      `yaml:"devices"`
	Omie              OmieConfig         `yaml:"omie"`
	DataPlatform      DataPlatformConfig `yaml:"dataPlatform"`
	Reports           ReportsConfig      `yaml:"reports"`
}

// Secrets are read from the environment rather than the config file.
type Secrets struct {
	SupabaseKey     string
	SupabaseUserKey string
}

// Read loads, normalizes and validates the config file at `path`.
func Read(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(content, &config)
	if err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	config.Normalize()
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// ReadSecrets returns the secrets set in the environment.
func ReadSecrets() Secrets {
	return Secrets{
		SupabaseKey:     os.Getenv(supabaseKeyEnvVar),
		SupabaseUserKey: os.Getenv(supabaseUserKeyEnvVar),
	}
}

// Normalize fills in defaults for anything left unset.
func (c *Config) Normalize() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	setDefault(&c.DatabasePath, defaultDatabasePath)
	setDefault(&c.RatesPath, defaultRatesPath)
	setDefault(&c.MetricsListenAddr, defaultMetricsListenAddr)
	setDefault(&c.PollIntervalSecs, defaultPollIntervalSecs)
	setDefault(&c.DeviceTimeoutSecs, defaultDeviceTimeoutSecs)

	setDefault(&c.Devices.PikoCI50.Port, defaultPikoCIPort)
	setDefault(&c.Devices.PikoCI50.UnitID, defaultUnitID)
	setDefault(&c.Devices.Ksem.Port, defaultKsemPort)
	setDefault(&c.Devices.Ksem.UnitID, defaultUnitID)
	setDefault(&c.Devices.Ksem.BaseAddr, defaultKsemBaseAddr)

	setDefault(&c.Omie.FetchIntervalSecs, defaultOmieFetchSecs)
	setDefault(&c.DataPlatform.UploadIntervalSecs, defaultUploadIntervalSecs)
	setDefault(&c.DataPlatform.Supabase.Schema, defaultSupabaseSchema)

	setDefault(&c.Reports.IntervalSecs, defaultReportIntervalSecs)
	setDefault(&c.Reports.CO2FactorKgPerKWh, defaultCO2FactorKgPerKWh)
	if c.Reports.RatedPowerW == nil {
		c.Reports.RatedPowerW = make(map[string]float64)
	}
	if _, ok := c.Reports.RatedPowerW[telemetry.DevicePiko15]; !ok {
		c.Reports.RatedPowerW[telemetry.DevicePiko15] = defaultPiko15RatedW
	}
	if _, ok := c.Reports.RatedPowerW[telemetry.DevicePikoCI50]; !ok {
		c.Reports.RatedPowerW[telemetry.DevicePikoCI50] = defaultPikoCI50RatedW
	}
}

// Validate checks the normalized config. It does not modify it.
func (c Config) Validate() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("logLevel: %w", err)
	}
	if c.Devices.Piko15.Host == "" && c.Devices.PikoCI50.Host == "" && c.Devices.Ksem.Host == "" {
		return errors.New("no devices configured")
	}
	for name, secs := range map[string]int{
		"pollIntervalSecs":                c.PollIntervalSecs,
		"omie.fetchIntervalSecs":          c.Omie.FetchIntervalSecs,
		"dataPlatform.uploadIntervalSecs": c.DataPlatform.UploadIntervalSecs,
		"reports.intervalSecs":            c.Reports.IntervalSecs,
	} {
		if secs <= 0 {
			return fmt.Errorf("%s must be positive: %d", name, secs)
		}
	}
	if c.DeviceTimeoutSecs <= 0 || c.DeviceTimeoutSecs > c.PollIntervalSecs {
		return fmt.Errorf("deviceTimeoutSecs must be positive and no longer than the poll interval: %d", c.DeviceTimeoutSecs)
	}
	for name, port := range map[string]int{"pikoCi50": c.Devices.PikoCI50.Port, "ksem": c.Devices.Ksem.Port} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("devices.%s.port out of range: %d", name, port)
		}
	}
	for device, watts := range c.Reports.RatedPowerW {
		if watts <= 0 {
			return fmt.Errorf("reports.ratedPowerW.%s must be positive: %v", device, watts)
		}
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

func (c Config) DeviceTimeout() time.Duration {
	return time.Duration(c.DeviceTimeoutSecs) * time.Second
}

func (c Config) OmieFetchInterval() time.Duration {
	return time.Duration(c.Omie.FetchIntervalSecs) * time.Second
}

func (c Config) UploadInterval() time.Duration {
	return time.Duration(c.DataPlatform.UploadIntervalSecs) * time.Second
}

func (c Config) ReportInterval() time.Duration {
	return time.Duration(c.Reports.IntervalSecs) * time.Second
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}
