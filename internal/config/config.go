package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"medical-record-exchange/internal/domain/entities"
)

const (
	DefaultConfigFile = "config.yaml"
	DefaultEnvFile    = ".env"
	envPrefix         = "MEDX_"
)

// Store drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverS3       = "s3"
)

type Config struct {
	HTTP  HTTPConfig  `yaml:"http"`
	Log   LogConfig   `yaml:"log"`
	Store StoreConfig `yaml:"store"`
	Scan  ScanConfig  `yaml:"scan"`
	FHIR  FHIRConfig  `yaml:"fhir"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// StoreConfig selects the backend of the record store. Only the fields of the
// chosen driver are read.
type StoreConfig struct {
	Driver string `yaml:"driver"`

	// file and sqlite
	Path string `yaml:"path"`

	// postgres
	DSN string `yaml:"dsn"`

	// s3
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type ScanConfig struct {
	Channel     string `yaml:"channel"`
	CaptureDir  string `yaml:"capture_dir"`
	RadioDevice string `yaml:"radio_device"`

	RadioTimeout   time.Duration `yaml:"radio_timeout"`
	SuccessDisplay time.Duration `yaml:"success_display"`
	ErrorDisplay   time.Duration `yaml:"error_display"`

	FallbackDelay       time.Duration `yaml:"fallback_delay"`
	FallbackSuccessRate float64       `yaml:"fallback_success_rate"`
}

type FHIRConfig struct {
	Version string `yaml:"version"`
}

// Default returns the configuration used when no file or override is present.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Address: ":8080"},
		Log:  LogConfig{Level: "info"},
		Store: StoreConfig{
			Driver: DriverFile,
			Path:   "data",
			Key:    "medichain_patients.json",
		},
		Scan: ScanConfig{
			Channel:             string(entities.ChannelOptical),
			CaptureDir:          "capture",
			RadioDevice:         "/dev/ttyNFC0",
			RadioTimeout:        30 * time.Second,
			SuccessDisplay:      2 * time.Second,
			ErrorDisplay:        3 * time.Second,
			FallbackDelay:       2 * time.Second,
			FallbackSuccessRate: 0.8,
		},
		FHIR: FHIRConfig{Version: "STU3"},
	}
}

// Load reads path (missing file means defaults), overlays envFile through
// godotenv (missing file ignored) and applies MEDX_* environment overrides.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"HTTP_ADDRESS":            &c.HTTP.Address,
		"LOG_LEVEL":               &c.Log.Level,
		"STORE_DRIVER":            &c.Store.Driver,
		"STORE_PATH":              &c.Store.Path,
		"STORE_DSN":               &c.Store.DSN,
		"STORE_BUCKET":            &c.Store.Bucket,
		"STORE_KEY":               &c.Store.Key,
		"STORE_REGION":            &c.Store.Region,
		"STORE_ENDPOINT":          &c.Store.Endpoint,
		"STORE_ACCESS_KEY_ID":     &c.Store.AccessKeyID,
		"STORE_SECRET_ACCESS_KEY": &c.Store.SecretAccessKey,
		"SCAN_CHANNEL":            &c.Scan.Channel,
		"SCAN_CAPTURE_DIR":        &c.Scan.CaptureDir,
		"SCAN_RADIO_DEVICE":       &c.Scan.RadioDevice,
		"FHIR_VERSION":            &c.FHIR.Version,
	}
	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"SCAN_RADIO_TIMEOUT":   &c.Scan.RadioTimeout,
		"SCAN_SUCCESS_DISPLAY": &c.Scan.SuccessDisplay,
		"SCAN_ERROR_DISPLAY":   &c.Scan.ErrorDisplay,
		"SCAN_FALLBACK_DELAY":  &c.Scan.FallbackDelay,
	}
	for key, dst := range durations {
		v, ok := lookup(envPrefix + key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = d
	}

	if v, ok := lookup(envPrefix + "LOG_PRETTY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sLOG_PRETTY: %w", envPrefix, err)
		}
		c.Log.Pretty = b
	}
	if v, ok := lookup(envPrefix + "SCAN_FALLBACK_SUCCESS_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sSCAN_FALLBACK_SUCCESS_RATE: %w", envPrefix, err)
		}
		c.Scan.FallbackSuccessRate = f
	}
	return nil
}

// Validate rejects unknown drivers and channels, missing driver settings and
// out-of-range scan timings.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverFile, DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for driver %q", c.Store.Driver)
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for driver \"postgres\"")
		}
	case DriverS3:
		if c.Store.Bucket == "" || c.Store.Key == "" {
			return errors.New("store.bucket and store.key are required for driver \"s3\"")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if _, err := entities.ParseChannel(c.Scan.Channel); err != nil {
		return err
	}
	if c.Scan.FallbackSuccessRate < 0 || c.Scan.FallbackSuccessRate > 1 {
		return fmt.Errorf("scan.fallback_success_rate %v out of range [0,1]", c.Scan.FallbackSuccessRate)
	}
	if c.Scan.RadioTimeout <= 0 {
		return errors.New("scan.radio_timeout must be positive")
	}
	if c.Scan.SuccessDisplay < 0 || c.Scan.ErrorDisplay < 0 || c.Scan.FallbackDelay < 0 {
		return errors.New("scan display and fallback delays must not be negative")
	}
	switch c.FHIR.Version {
	case "STU3", "DSTU2":
	default:
		return fmt.Errorf("unsupported fhir.version %q", c.FHIR.Version)
	}
	return nil
}
