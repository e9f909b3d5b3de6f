package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the server configuration
type Config struct {
	// Server settings
	Server struct {
		Name     string `yaml:"name" toml:"name" json:"name" env:"IRCSERV_SERVER_NAME" validate:"required,excludesall= :"`
		Network  string `yaml:"network" toml:"network" json:"network" env:"IRCSERV_NETWORK" validate:"required"`
		Port     int    `yaml:"port" toml:"port" json:"port" env:"IRCSERV_PORT" validate:"gt=1024,lt=65536"`
		Password string `yaml:"password" toml:"password" json:"password" env:"IRCSERV_PASSWORD" validate:"required"`
		// Hashed marks Password as a bcrypt hash instead of plain text.
		Hashed bool `yaml:"hashed" toml:"hashed" json:"hashed" env:"IRCSERV_PASSWORD_HASHED"`
	} `yaml:"server" toml:"server" json:"server"`

	// Event loop settings
	Loop struct {
		PollInterval   time.Duration `yaml:"poll_interval" toml:"poll_interval" json:"poll_interval" env:"IRCSERV_POLL_INTERVAL" validate:"gt=0"`
		ReadBufferSize int           `yaml:"read_buffer" toml:"read_buffer" json:"read_buffer" env:"IRCSERV_READ_BUFFER" validate:"gte=512"`
		Backlog        int           `yaml:"backlog" toml:"backlog" json:"backlog" env:"IRCSERV_BACKLOG" validate:"gt=0"`
	} `yaml:"loop" toml:"loop" json:"loop"`

	// Admin HTTP settings, disabled when Addr is empty
	Admin struct {
		Addr string `yaml:"addr" toml:"addr" json:"addr" env:"IRCSERV_ADMIN_ADDR" validate:"omitempty,hostname_port"`
	} `yaml:"admin" toml:"admin" json:"admin"`

	// Logging settings
	Log struct {
		Debug   bool `yaml:"debug" toml:"debug" json:"debug" env:"IRCSERV_DEBUG"`
		NoColor bool `yaml:"no_color" toml:"no_color" json:"no_color" env:"NO_COLOR"`
	} `yaml:"log" toml:"log" json:"log"`

	// Configuration source, empty when running on defaults
	Source string `yaml:"-" toml:"-" json:"-"`
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Name = "ft_irc"
	cfg.Server.Network = "FT_IRC"
	cfg.Server.Port = 6667
	cfg.Loop.PollInterval = 500 * time.Millisecond
	cfg.Loop.ReadBufferSize = 4096
	cfg.Loop.Backlog = 128
	return cfg
}

// Load builds a configuration from defaults, the optional file at source
// and environment overrides. It does not validate.
func Load(source string) (*Config, error) {
	cfg := Default()

	if source != "" {
		if err := cfg.loadFromSource(source); err != nil {
			return nil, err
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadFromSource loads configuration from a file
func (c *Config) loadFromSource(source string) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Determine the format based on file extension
	switch {
	case strings.HasSuffix(source, ".toml"):
		err = toml.Unmarshal(data, c)
	case strings.HasSuffix(source, ".json"):
		err = json.Unmarshal(data, c)
	default:
		// Default to YAML
		err = yaml.Unmarshal(data, c)
	}

	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", source, err)
	}

	c.Source = source
	return nil
}

// Validate checks the configuration against its validate tags.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report yaml names rather than Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " must not be empty"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "excludesall":
		return field + " must not contain spaces or colons"
	case "hostname_port":
		return field + " must be host:port"
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	applyEnvOverridesRecursive(reflect.ValueOf(cfg).Elem())
}

func applyEnvOverridesRecursive(v reflect.Value) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		// Skip unexported fields
		if field.PkgPath != "" {
			continue
		}

		if envTag := field.Tag.Get("env"); envTag != "" {
			if envValue, exists := os.LookupEnv(envTag); exists {
				setFieldFromEnv(fieldValue, envValue)
			}
		} else if field.Type.Kind() == reflect.Struct {
			applyEnvOverridesRecursive(fieldValue)
		}
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldFromEnv sets a field's value from an environment variable.
// Unparseable values leave the field untouched.
func setFieldFromEnv(field reflect.Value, envValue string) {
	envValue = strings.TrimSpace(envValue)

	if field.Type() == durationType {
		if d, err := time.ParseDuration(envValue); err == nil {
			field.SetInt(int64(d))
		}
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			field.SetInt(v)
		}
	case reflect.Bool:
		field.SetBool(parseBool(envValue))
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "y", "on":
		return true
	}
	return false
}
