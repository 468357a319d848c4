package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultStations is used when no STATIONS_FILE is configured.
var DefaultStations = []string{"Hamburg Hbf", "München Hbf", "Köln Hbf", "Berlin Hauptbahnhof", "Braunschweig Hbf"}

type Config struct {
	ClientID       string `validate:"required"`
	ClientSecret   string `validate:"required"`
	TimetableAPI   string `validate:"required,url"`
	StationDataAPI string `validate:"required,url"`
	WeatherAPI     string `validate:"required,url"`
	WeatherAPIKey  string
	HTTPTimeout    time.Duration `validate:"gt=0"`
	Stations       []string      `validate:"required,min=1,unique,dive,required"`
}

type StationsFile struct {
	Stations []StationEntry `yaml:"stations" validate:"required,min=1,dive"`
}

type StationEntry struct {
	Name string `yaml:"name" validate:"required"`
}

// LoadEnv reads a .env file into the environment when one exists. Variables
// already set win.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from the environment. Missing API
// credentials are a startup error.
func Load() (*Config, error) {
	return load()
}

// LoadWeather is Load for jobs that never call the DB APIs, so DB
// credentials are not required.
func LoadWeather() (*Config, error) {
	return load("ClientID", "ClientSecret", "TimetableAPI", "StationDataAPI")
}

// load validates every field except the ones in skip.
func load(skip ...string) (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{
		ClientID:       os.Getenv("DB_CLIENT_ID"),
		ClientSecret:   os.Getenv("DB_CLIENT_SECRET"),
		TimetableAPI:   envStr("DB_TIMETABLE_API", "https://apis.deutschebahn.com/db-api-marketplace/apis/timetables/v1"),
		StationDataAPI: envStr("DB_STADA_API", "https://apis.deutschebahn.com/db-api-marketplace/apis/station-data/v2"),
		WeatherAPI:     envStr("WEATHER_API_URL", "https://api.weatherapi.com/v1"),
		WeatherAPIKey:  os.Getenv("WEATHER_API_KEY"),
		HTTPTimeout:    time.Duration(envInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
	}

	stations, err := Stations()
	if err != nil {
		return nil, err
	}
	cfg.Stations = stations

	validate := validator.New()
	if len(skip) > 0 {
		err = validate.StructExcept(cfg, skip...)
	} else {
		err = validate.Struct(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Stations returns the station names from STATIONS_FILE, or the defaults when
// it is unset.
func Stations() ([]string, error) {
	path := os.Getenv("STATIONS_FILE")
	if path == "" {
		return DefaultStations, nil
	}
	return LoadStations(path)
}

// LoadStations reads the configured station names from a YAML file.
func LoadStations(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stations file: %w", err)
	}

	return ParseStations(data)
}

func ParseStations(data []byte) ([]string, error) {
	var file StationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse stations file: %w", err)
	}

	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid stations file: %w", err)
	}

	names := make([]string, 0, len(file.Stations))
	seen := make(map[string]bool, len(file.Stations))
	for _, s := range file.Stations {
		if seen[s.Name] {
			return nil, fmt.Errorf("invalid stations file: %q listed twice", s.Name)
		}
		seen[s.Name] = true
		names = append(names, s.Name)
	}

	return names, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
