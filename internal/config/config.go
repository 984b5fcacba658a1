// Package config loads layered TOML configuration: a base.toml merged
// with an APP_ENVIRONMENT-selected profile (local/test/production),
// then overridden field-by-field from APP_<SECTION>__<KEY> environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Database holds the Postgres connection parameters.
type Database struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"database_name"`
}

// DSN renders the libpq connection string pgxpool.New expects.
func (d Database) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.Username, d.Password, d.Host, d.Port, d.DatabaseName)
}

// Application holds the HTTP bind address.
type Application struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr renders the host:port pair net.Listen expects.
func (a Application) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// JWT holds signing-key and lifetime configuration.
type JWT struct {
	Secret                 string `toml:"secret"`
	AccessTokenExpSeconds  int    `toml:"access_token_exp_seconds"`
	RefreshTokenExpSeconds int    `toml:"refresh_token_exp_seconds"`
}

// NATS holds the JetStream broker URL.
type NATS struct {
	URL string `toml:"url"`
}

// Otel holds the OTLP trace collector endpoint.
type Otel struct {
	Endpoint string `toml:"endpoint"`
}

// Config is the fully resolved, layered configuration.
type Config struct {
	Database    Database    `toml:"database"`
	Application Application `toml:"application"`
	JWT         JWT         `toml:"jwt"`
	NATS        NATS        `toml:"nats"`
	Otel        Otel        `toml:"otel"`
}

// Load reads configDir/base.toml, overlays configDir/<APP_ENVIRONMENT>.toml
// (defaulting to "local"), then overlays APP_<SECTION>__<KEY> environment
// variables.
func Load(configDir string) (*Config, error) {
	cfg := &Config{}

	if err := decodeFileIfExists(filepath.Join(configDir, "base.toml"), cfg); err != nil {
		return nil, fmt.Errorf("config: load base.toml: %w", err)
	}

	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}
	if err := decodeFileIfExists(filepath.Join(configDir, profile+".toml"), cfg); err != nil {
		return nil, fmt.Errorf("config: load %s.toml: %w", profile, err)
	}

	if err := applyEnvOverlay(cfg); err != nil {
		return nil, fmt.Errorf("config: apply env overlay: %w", err)
	}

	return cfg, nil
}

func decodeFileIfExists(path string, cfg *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	_, err := toml.DecodeFile(path, cfg)
	return err
}

// applyEnvOverlay walks cfg's section structs and, for every field,
// checks APP_<SECTION>__<FIELD> (both upper-cased, section taken from
// the struct's toml tag), overriding any nested config value found.
func applyEnvOverlay(cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		sectionField := t.Field(i)
		section := sectionField.Tag.Get("toml")
		sectionVal := v.Field(i)

		for j := 0; j < sectionVal.NumField(); j++ {
			keyField := sectionVal.Type().Field(j)
			key := keyField.Tag.Get("toml")
			envVar := "APP_" + strings.ToUpper(section) + "__" + strings.ToUpper(key)

			raw, ok := os.LookupEnv(envVar)
			if !ok {
				continue
			}

			target := sectionVal.Field(j)
			if err := setFromString(target, raw); err != nil {
				return fmt.Errorf("%s: %w", envVar, err)
			}
		}
	}
	return nil
}

func setFromString(target reflect.Value, raw string) error {
	switch target.Kind() {
	case reflect.String:
		target.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse int: %w", err)
		}
		target.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse bool: %w", err)
		}
		target.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", target.Kind())
	}
	return nil
}
