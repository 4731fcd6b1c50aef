// Package config loads run configuration from config/{ENV_NAME}.yaml, an optional
// .env file and the process environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/wind-alert/internal/conditions"
	"github.com/kjstillabower/wind-alert/internal/forecast"
	"github.com/kjstillabower/wind-alert/internal/notify"
	"github.com/kjstillabower/wind-alert/internal/snapshot"
	"github.com/kjstillabower/wind-alert/internal/validation"
)

const maxPlaceNameLen = 80

// Snapshot backends.
const (
	BackendMemory    = "memory"
	BackendFile      = "file"
	BackendGitHub    = "github"
	BackendMemcached = "memcached"
	BackendS3        = "s3"
)

// Config holds the resolved configuration of one run.
type Config struct {
	Env      string
	LogLevel string

	Latitude  string `validate:"required"`
	Longitude string `validate:"required"`
	PlaceName string
	Timezone  *time.Location `validate:"required"`

	Hazard conditions.Thresholds
	Zones  []conditions.Zone `validate:"dive"`

	HTTPTimeout time.Duration `validate:"gt=0"`

	Forecast ForecastConfig
	Station  StationConfig
	Notify   NotifyConfig
	Snapshot SnapshotConfig
	Metrics  MetricsConfig
}

// ForecastConfig configures the forecast sources.
type ForecastConfig struct {
	Horizon         time.Duration `validate:"gt=0"`
	SourceTimeout   time.Duration `validate:"gt=0"`
	Concurrency     int           `validate:"gte=1"`
	OpenMeteoURL    string        `validate:"required,url"`
	OpenMeteoModels []string      `validate:"dive,required"`
	ForecastDays    int           `validate:"gte=1,lte=16"`
	BreakerFailures uint32        `validate:"gte=1"`
	// OpenWeatherAPIKey empty disables the OpenWeather source.
	OpenWeatherAPIKey string
	OpenWeatherURL    string `validate:"required,url"`
}

// StationConfig configures the station history collaborator. An empty URL disables
// reconciliation.
type StationConfig struct {
	URL            string `validate:"omitempty,url"`
	ApplicationKey string
	APIKey         string
	MAC            string
	Timezone       *time.Location `validate:"required"`
	Window         time.Duration  `validate:"gt=0"`
}

// Enabled reports whether the station is configured.
func (s StationConfig) Enabled() bool {
	return s.URL != ""
}

// NotifyConfig configures message delivery.
type NotifyConfig struct {
	URL         string `validate:"required,url"`
	MinInterval time.Duration
	Recipients  []notify.Recipient
}

// SnapshotConfig selects and configures the accuracy snapshot backend.
type SnapshotConfig struct {
	Backend string `validate:"oneof=memory file github memcached s3"`

	FilePath string

	GitHubAPIURL     string
	GitHubRepository string
	GitHubToken      string
	GitHubBranch     string
	GitHubPath       string

	MemcachedAddrs        string
	MemcachedKey          string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	S3Bucket   string
	S3Key      string
	S3Region   string
	S3Endpoint string
}

// MetricsConfig configures the Pushgateway flush at exit. Empty URL disables it.
type MetricsConfig struct {
	PushgatewayURL string `validate:"omitempty,url"`
	Job            string `validate:"required"`
}

type fileConfig struct {
	LogLevel string `yaml:"log_level"`

	Location struct {
		Name      string `yaml:"name"`
		Latitude  string `yaml:"latitude"`
		Longitude string `yaml:"longitude"`
		Timezone  string `yaml:"timezone"`
	} `yaml:"location"`

	Hazard *conditions.Thresholds `yaml:"hazard"`
	Zones  []conditions.Zone      `yaml:"zones"`

	HTTP struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"http"`

	Forecast struct {
		Horizon       string `yaml:"horizon"`
		SourceTimeout string `yaml:"source_timeout"`
		Concurrency   int    `yaml:"concurrency"`
		OpenMeteo     struct {
			URL             string   `yaml:"url"`
			Models          []string `yaml:"models"`
			ForecastDays    int      `yaml:"forecast_days"`
			BreakerFailures uint32   `yaml:"breaker_failures"`
		} `yaml:"open_meteo"`
		OpenWeather struct {
			URL string `yaml:"url"`
		} `yaml:"open_weather"`
	} `yaml:"forecast"`

	Station struct {
		URL      string `yaml:"url"`
		Timezone string `yaml:"timezone"`
		Window   string `yaml:"window"`
	} `yaml:"station"`

	Notify struct {
		URL         string          `yaml:"url"`
		MinInterval string          `yaml:"min_interval"`
		Recipients  []recipientFile `yaml:"recipients"`
	} `yaml:"notify"`

	Snapshot struct {
		Backend string `yaml:"backend"`
		File    struct {
			Path string `yaml:"path"`
		} `yaml:"file"`
		GitHub struct {
			APIURL     string `yaml:"api_url"`
			Repository string `yaml:"repository"`
			Branch     string `yaml:"branch"`
			Path       string `yaml:"path"`
		} `yaml:"github"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Key          string `yaml:"key"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		S3 struct {
			Bucket   string `yaml:"bucket"`
			Key      string `yaml:"key"`
			Region   string `yaml:"region"`
			Endpoint string `yaml:"endpoint"`
		} `yaml:"s3"`
	} `yaml:"snapshot"`

	Metrics struct {
		PushgatewayURL string `yaml:"pushgateway_url"`
		Job            string `yaml:"job"`
	} `yaml:"metrics"`
}

// recipientFile names the environment variables holding a recipient's credentials.
type recipientFile struct {
	Name      string `yaml:"name"`
	PhoneEnv  string `yaml:"phone_env"`
	APIKeyEnv string `yaml:"api_key_env"`
}

var defaultRecipients = []recipientFile{
	{Name: "primary", PhoneEnv: "WHATSAPP_PHONE", APIKeyEnv: "WHATSAPP_API_KEY"},
	{Name: "secondary", PhoneEnv: "WHATSAPP_PHONE_2", APIKeyEnv: "WHATSAPP_API_KEY_2"},
}

// envOverlay holds values that the environment overrides. Secrets only come from here.
type envOverlay struct {
	LogLevel string `envconfig:"LOG_LEVEL"`

	Latitude     string   `envconfig:"WIND_LAT"`
	Longitude    string   `envconfig:"WIND_LON"`
	SpeedMin     *float64 `envconfig:"WIND_SPEED_MIN"`
	SpeedMax     *float64 `envconfig:"WIND_SPEED_MAX"`
	DirectionMin *float64 `envconfig:"WIND_DIRECTION_MIN"`
	DirectionMax *float64 `envconfig:"WIND_DIRECTION_MAX"`

	OpenWeatherAPIKey string `envconfig:"OPENWEATHER_API_KEY"`

	StationURL     string `envconfig:"BASE_URL"`
	ApplicationKey string `envconfig:"EXTERNAL_APPLICATION_KEY"`
	StationAPIKey  string `envconfig:"EXTERNAL_API_KEY"`
	MAC            string `envconfig:"MAC_ADDRESS"`

	WhatsAppURL string `envconfig:"WHATSAPP_API_URL"`

	SnapshotBackend  string `envconfig:"SNAPSHOT_BACKEND"`
	GitHubToken      string `envconfig:"GITHUB_TOKEN"`
	GitHubRepository string `envconfig:"GITHUB_REPOSITORY"`
	MemcachedAddrs   string `envconfig:"MEMCACHED_ADDRS"`
	S3Bucket         string `envconfig:"SNAPSHOT_S3_BUCKET"`
	AWSRegion        string `envconfig:"AWS_REGION"`
	AWSEndpoint      string `envconfig:"AWS_ENDPOINT_URL"`

	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`
}

// Load reads .env (if present), config/{ENV_NAME}.yaml (default dev) and the environment,
// in increasing order of precedence. Call from project root.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	var ov envOverlay
	if err := envconfig.Process("", &ov); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg, err := build(env, &fc, &ov)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func build(env string, fc *fileConfig, ov *envOverlay) (*Config, error) {
	cfg := &Config{
		Env:       env,
		LogLevel:  firstNonEmpty(ov.LogLevel, fc.LogLevel, "INFO"),
		Latitude:  firstNonEmpty(ov.Latitude, fc.Location.Latitude),
		Longitude: firstNonEmpty(ov.Longitude, fc.Location.Longitude),
		PlaceName: fc.Location.Name,
	}

	tz, err := loadLocation(fc.Location.Timezone, "location.timezone")
	if err != nil {
		return nil, err
	}
	cfg.Timezone = tz

	cfg.Hazard = conditions.DefaultThresholds
	if fc.Hazard != nil {
		cfg.Hazard = *fc.Hazard
	}
	overrideFloat(&cfg.Hazard.SpeedMin, ov.SpeedMin)
	overrideFloat(&cfg.Hazard.SpeedMax, ov.SpeedMax)
	overrideFloat(&cfg.Hazard.DirectionMin, ov.DirectionMin)
	overrideFloat(&cfg.Hazard.DirectionMax, ov.DirectionMax)

	cfg.Zones = fc.Zones
	if len(cfg.Zones) == 0 {
		cfg.Zones = conditions.DefaultZones
	}

	cfg.HTTPTimeout = parseDuration(fc.HTTP.Timeout, 15*time.Second)

	f := fc.Forecast
	cfg.Forecast = ForecastConfig{
		Horizon:           parseDuration(f.Horizon, 72*time.Hour),
		SourceTimeout:     parseDuration(f.SourceTimeout, 20*time.Second),
		Concurrency:       f.Concurrency,
		OpenMeteoURL:      firstNonEmpty(f.OpenMeteo.URL, forecast.DefaultOpenMeteoURL),
		OpenMeteoModels:   f.OpenMeteo.Models,
		ForecastDays:      f.OpenMeteo.ForecastDays,
		BreakerFailures:   f.OpenMeteo.BreakerFailures,
		OpenWeatherAPIKey: ov.OpenWeatherAPIKey,
		OpenWeatherURL:    firstNonEmpty(f.OpenWeather.URL, forecast.DefaultOpenWeatherURL),
	}
	if cfg.Forecast.Concurrency <= 0 {
		cfg.Forecast.Concurrency = 4
	}
	if len(cfg.Forecast.OpenMeteoModels) == 0 {
		cfg.Forecast.OpenMeteoModels = forecast.DefaultOpenMeteoModels
	}
	if cfg.Forecast.ForecastDays <= 0 {
		cfg.Forecast.ForecastDays = 3
	}
	if cfg.Forecast.BreakerFailures == 0 {
		cfg.Forecast.BreakerFailures = 2
	}

	stationTZ := cfg.Timezone
	if fc.Station.Timezone != "" {
		if stationTZ, err = loadLocation(fc.Station.Timezone, "station.timezone"); err != nil {
			return nil, err
		}
	}
	cfg.Station = StationConfig{
		URL:            firstNonEmpty(ov.StationURL, fc.Station.URL),
		ApplicationKey: ov.ApplicationKey,
		APIKey:         ov.StationAPIKey,
		MAC:            ov.MAC,
		Timezone:       stationTZ,
		Window:         parseDuration(fc.Station.Window, 24*time.Hour),
	}

	cfg.Notify = NotifyConfig{
		URL:         firstNonEmpty(ov.WhatsAppURL, fc.Notify.URL, notify.DefaultCallMeBotURL),
		MinInterval: parseDurationOrZero(fc.Notify.MinInterval, 2*time.Second),
	}
	recipients := fc.Notify.Recipients
	if len(recipients) == 0 {
		recipients = defaultRecipients
	}
	for i, r := range recipients {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("recipient-%d", i+1)
		}
		cfg.Notify.Recipients = append(cfg.Notify.Recipients, notify.Recipient{
			Name:   name,
			Phone:  lookupEnv(r.PhoneEnv),
			APIKey: lookupEnv(r.APIKeyEnv),
		})
	}

	s := fc.Snapshot
	cfg.Snapshot = SnapshotConfig{
		Backend:               strings.ToLower(strings.TrimSpace(firstNonEmpty(ov.SnapshotBackend, s.Backend, BackendFile))),
		FilePath:              firstNonEmpty(s.File.Path, "data/model_stats.json"),
		GitHubAPIURL:          firstNonEmpty(s.GitHub.APIURL, snapshot.DefaultGitHubAPIURL),
		GitHubRepository:      firstNonEmpty(ov.GitHubRepository, s.GitHub.Repository),
		GitHubToken:           ov.GitHubToken,
		GitHubBranch:          firstNonEmpty(s.GitHub.Branch, "main"),
		GitHubPath:            firstNonEmpty(s.GitHub.Path, "data/model_stats.json"),
		MemcachedAddrs:        firstNonEmpty(ov.MemcachedAddrs, s.Memcached.Addrs, "localhost:11211"),
		MemcachedKey:          firstNonEmpty(s.Memcached.Key, "model_stats"),
		MemcachedTimeout:      parseDuration(s.Memcached.Timeout, 500*time.Millisecond),
		MemcachedMaxIdleConns: s.Memcached.MaxIdleConns,
		S3Bucket:              firstNonEmpty(ov.S3Bucket, s.S3.Bucket),
		S3Key:                 firstNonEmpty(s.S3.Key, "model_stats.json"),
		S3Region:              firstNonEmpty(ov.AWSRegion, s.S3.Region),
		S3Endpoint:            firstNonEmpty(ov.AWSEndpoint, s.S3.Endpoint),
	}
	if cfg.Snapshot.MemcachedMaxIdleConns <= 0 {
		cfg.Snapshot.MemcachedMaxIdleConns = 2
	}

	cfg.Metrics = MetricsConfig{
		PushgatewayURL: firstNonEmpty(ov.PushgatewayURL, fc.Metrics.PushgatewayURL),
		Job:            firstNonEmpty(fc.Metrics.Job, "windalert"),
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	lat, lon, err := validation.ValidateCoordinates(cfg.Latitude, cfg.Longitude)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg.Latitude, cfg.Longitude = lat, lon
	name, err := validation.ValidatePlaceName(cfg.PlaceName, maxPlaceNameLen)
	if err != nil {
		return fmt.Errorf("invalid config: location.name: %w", err)
	}
	cfg.PlaceName = name
	return validateBackend(cfg.Snapshot)
}

// validateBackend checks the settings the selected snapshot backend needs.
func validateBackend(s SnapshotConfig) error {
	var missing []string
	switch s.Backend {
	case BackendGitHub:
		if s.GitHubRepository == "" {
			missing = append(missing, "GITHUB_REPOSITORY")
		} else if !strings.Contains(s.GitHubRepository, "/") {
			return fmt.Errorf("invalid config: GITHUB_REPOSITORY must be owner/name, got %q", s.GitHubRepository)
		}
		if s.GitHubToken == "" {
			missing = append(missing, "GITHUB_TOKEN")
		}
	case BackendS3:
		if s.S3Bucket == "" {
			missing = append(missing, "SNAPSHOT_S3_BUCKET")
		}
	case BackendFile:
		if s.FilePath == "" {
			missing = append(missing, "snapshot.file.path")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid config: snapshot backend %s requires %s", s.Backend, strings.Join(missing, ", "))
	}
	return nil
}

func loadLocation(name, field string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %s: %w", field, err)
	}
	return loc, nil
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}

func overrideFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero is returned as-is so "0s" can switch a pause off.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}
