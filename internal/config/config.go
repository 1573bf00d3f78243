package config

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the resolved client configuration: defaults, then
// ~/.studio/config.json, then .env / STUDIO_* environment variables.
// Command-line flags are applied on top by the CLI.
type Config struct {
	// URL of a Studio-compatible server. Empty means the local course store.
	URL string `mapstructure:"url" json:"url,omitempty" validate:"omitempty,url"`
	// DB is the local SQLite course store.
	DB string `mapstructure:"db" json:"db,omitempty" validate:"required"`
	// Course is the root block opened when no id is given.
	Course string `mapstructure:"course" json:"course,omitempty"`
	// Actor is recorded as edited_by in the local store.
	Actor string `mapstructure:"actor" json:"actor,omitempty"`
	// Timeout bounds every remote round-trip.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" validate:"gt=0"`
	LogFile string        `mapstructure:"logFile" json:"logFile,omitempty"`
	Debug   bool          `mapstructure:"debug" json:"debug,omitempty"`
	Glyphs  string        `mapstructure:"glyphs" json:"glyphs,omitempty" validate:"omitempty,oneof=unicode ascii"`
}

// Keys that `studio config set` accepts.
var settableKeys = map[string]bool{
	"url":     true,
	"db":      true,
	"course":  true,
	"actor":   true,
	"timeout": true,
	"logFile": true,
	"debug":   true,
	"glyphs":  true,
}

const DefaultTimeout = 30 * time.Second

var validate = validator.New()

func Dir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.studio).
	if v := strings.TrimSpace(os.Getenv("STUDIO_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".studio"), nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func defaultActor() string {
	for _, k := range []string{"USER", "USERNAME"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return "studio"
}

// Load resolves the configuration. A missing config file is not an error.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault("db", filepath.Join(dir, "course.sqlite"))
	v.SetDefault("timeout", DefaultTimeout.String())
	v.SetDefault("actor", defaultActor())
	v.SetDefault("glyphs", "unicode")

	v.SetConfigFile(filepath.Join(dir, "config.json"))
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "config: read %s", v.ConfigFileUsed())
		}
	}

	v.SetEnvPrefix("STUDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key := range settableKeys {
		// AutomaticEnv only consults keys viper already knows about.
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads a .env file if it exists. Variables already set in the
// environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.Wrapf(err, "config: stat %s", path)
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "config: load %s", path)
	}
	return nil
}

// ValidationError lists the invalid fields of a Config.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: map[string]string{}}
	for _, fe := range verrs {
		out.Fields[jsonName(fe.StructField())] = describe(fe)
	}
	return out
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	if field == "URL" || field == "DB" {
		return strings.ToLower(field)
	}
	if field == "LogFile" {
		return "logFile"
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "url":
		return "must be an absolute URL"
	case "required":
		return "is required"
	case "gt":
		return "must be positive"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

// Set writes one key into config.json, keeping the other keys.
func Set(key, value string) error {
	if !settableKeys[key] {
		return errors.Errorf("unknown config key %q", key)
	}
	path, err := Path()
	if err != nil {
		return err
	}
	cur := map[string]any{}
	if b, err := os.ReadFile(path); err == nil && len(b) > 0 {
		if err := json.Unmarshal(b, &cur); err != nil {
			return errors.Wrapf(err, "config: parse %s", path)
		}
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	switch key {
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return errors.Errorf("invalid timeout %q", value)
		}
		cur[key] = d.String()
	case "debug":
		cur[key] = value == "true" || value == "1" || value == "yes"
	default:
		if strings.TrimSpace(value) == "" {
			delete(cur, key)
		} else {
			cur[key] = strings.TrimSpace(value)
		}
	}

	probe := Config{DB: "probe", Timeout: DefaultTimeout}
	switch key {
	case "url":
		probe.URL, _ = cur[key].(string)
	case "glyphs":
		probe.Glyphs, _ = cur[key].(string)
	}
	if err := probe.Validate(); err != nil {
		return err
	}

	b, err := json.MarshalIndent(cur, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return atomicWriteFile(dir, "config.json.*.tmp", path, append(b, '\n'), 0o600)
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return errors.Wrap(err, "config: create temp file")
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return errors.Wrapf(os.Rename(tmp, path), "config: replace %s", path)
}
