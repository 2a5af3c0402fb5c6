package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	TMDB     TMDBConfig     `yaml:"tmdb"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Report   ReportConfig   `yaml:"report"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig selects and parameterizes the storage engine.
type DatabaseConfig struct {
	Type       string `yaml:"type" env:"OATER_DB_TYPE" default:"postgres"`
	Host       string `yaml:"host" env:"POSTGRES_HOST" default:"localhost"`
	Port       int    `yaml:"port" env:"POSTGRES_PORT" default:"5432"`
	Username   string `yaml:"username" env:"POSTGRES_USER" default:"oater"`
	Password   string `yaml:"password" env:"POSTGRES_PASSWORD"`
	Database   string `yaml:"database" env:"POSTGRES_DB" default:"oater"`
	SQLitePath string `yaml:"sqlite_path" env:"OATER_SQLITE_PATH" default:"./data/oater.db"`
	LogQueries bool   `yaml:"log_queries" env:"OATER_DB_LOG_QUERIES" default:"false"`
}

// TMDBConfig parameterizes the enrichment API client.
type TMDBConfig struct {
	APIKey         string        `yaml:"api_key" env:"TMDB_API_KEY"`
	BaseURL        string        `yaml:"base_url" env:"TMDB_BASE_URL" default:"https://api.themoviedb.org/3"`
	RequestDelay   time.Duration `yaml:"request_delay" env:"TMDB_REQUEST_DELAY" default:"250ms"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"TMDB_REQUEST_TIMEOUT" default:"15s"`
	CachePath      string        `yaml:"cache_path" env:"TMDB_CACHE_PATH" default:"./data/credits_dump.jsonl"`
}

// IngestConfig parameterizes the bulk dataset load.
type IngestConfig struct {
	DatasetPath     string   `yaml:"dataset_path" env:"OATER_DATASET_PATH" default:"./data/tmdb_movies_dump.jsonl"`
	Genre           string   `yaml:"genre" env:"OATER_GENRE" default:"Western"`
	OriginCountries []string `yaml:"origin_countries" env:"OATER_ORIGIN_COUNTRIES" default:"US,IT"`
	MaxRecords      int      `yaml:"max_records" env:"OATER_MAX_RECORDS" default:"1000000"`
	MaxKeep         int      `yaml:"max_keep" env:"OATER_MAX_KEEP" default:"2000"`
}

// ReportConfig parameterizes the reporting stage.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir" env:"OATER_REPORT_DIR" default:"./reports"`
	TopWords  int    `yaml:"top_words" env:"OATER_TOP_WORDS" default:"30"`
	TopMovies int    `yaml:"top_movies" env:"OATER_TOP_MOVIES" default:"20"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level" env:"OATER_LOG_LEVEL" default:"info"`
}

// Load builds a Config from defaults, then an optional YAML file, then the
// environment. Environment variables win over file values, file values win
// over defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := applyDefaults(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to apply config environment overrides: %w", err)
	}
	return cfg, nil
}

func applyDefaults(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}
		def := t.Field(i).Tag.Get("default")
		if def == "" {
			continue
		}
		if err := setField(field, def); err != nil {
			return fmt.Errorf("field %s: %w", t.Field(i).Name, err)
		}
	}
	return nil
}

func applyEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := applyEnv(field); err != nil {
				return err
			}
			continue
		}
		key := t.Field(i).Tag.Get("env")
		if key == "" {
			continue
		}
		val, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := setField(field, val); err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
	}
	return nil
}

func setField(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		field.Set(reflect.ValueOf(out))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
