package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Upload  UploadConfig  `yaml:"upload"`
	Theme   ThemeConfig   `yaml:"theme"`
	Logging LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

type SiteConfig struct {
	Name string `yaml:"name" default:"Emkan CMS"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"127.0.0.1"`
	Port string `yaml:"port" default:"12700"`
}

// APIConfig describes the backend the console talks to.
type APIConfig struct {
	BaseURL string `yaml:"base_url" default:"https://cms.emkaan.sa/api"`
	Timeout string `yaml:"timeout" default:"30s"`

	// Error messages that, together with a 401, mean the stored credential is dead.
	InvalidSessionMessages []string `yaml:"invalid_session_messages" default:"Unauthorized: Please re-login to continue.;Not authorized, no token;User not found"`
}

// RequestTimeout parses Timeout, falling back to 30 seconds.
func (a APIConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

type SessionConfig struct {
	Backend string `yaml:"backend" default:"sqlite"`
	Path    string `yaml:"path" default:"./session.db"`
}

type UploadConfig struct {
	MaxBytes int      `yaml:"max_bytes" default:"5242880"`
	Target   string   `yaml:"target" default:"backend"`
	S3       S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket        string `yaml:"bucket" default:""`
	Endpoint      string `yaml:"endpoint" default:""`
	Region        string `yaml:"region" default:"auto"`
	PublicBaseURL string `yaml:"public_base_url" default:""`
	Prefix        string `yaml:"prefix" default:"sections/"`
}

type ThemeConfig struct {
	Default          string `yaml:"default" default:"dark-theme"`
	SyntaxDark       string `yaml:"syntax_dark" default:"gruvbox"`
	SyntaxLight      string `yaml:"syntax_light" default:"catppuccin-latte"`
	MarkdownRenderer string `yaml:"markdown_renderer" default:"classic"`
}

var AppConfig *Config

func init() {
	AppConfig = &Config{}
	applyDefaults(AppConfig)
}

func LoadConfig(path string) error {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	data, err := os.ReadFile(path)
	if err != nil {
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		ApplyEnv(config)
		AppConfig = config
		return nil
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	ApplyEnv(config)
	AppConfig = config
	return nil
}

// ApplyEnv overrides file values with CMS_* environment variables.
func ApplyEnv(config *Config) {
	overrides := map[string]*string{
		EnvAPIURL:       &config.API.BaseURL,
		EnvSessionDB:    &config.Session.Path,
		EnvLogLevel:     &config.Logging.Level,
		EnvUploadTarget: &config.Upload.Target,
		EnvS3Bucket:     &config.Upload.S3.Bucket,
		EnvS3Endpoint:   &config.Upload.S3.Endpoint,
		EnvS3PublicURL:  &config.Upload.S3.PublicBaseURL,
		EnvServerPort:   &config.Server.Port,
	}
	for key, field := range overrides {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			configLogger.Debug().Str("env", key).Msg("Overriding config from environment")
			*field = v
		}
	}
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int, reflect.Int64:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			// Messages may contain commas, so a semicolon list wins when present.
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				sep := ","
				if strings.Contains(defaultValue, ";") {
					sep = ";"
				}
				parts := strings.Split(defaultValue, sep)
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
