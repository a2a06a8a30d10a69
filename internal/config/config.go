package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/ilyakaznacheev/cleanenv"
)

// Backends.
const (
	BackendMemory    = "memory"
	BackendJSON      = "json"
	BackendFirestore = "firestore"
)

// Config is the root application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	UI      UIConfig      `yaml:"ui"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StoreConfig selects and configures the Record Store.
type StoreConfig struct {
	Backend         string `yaml:"backend"          env:"SHOPLIST_BACKEND"          env-default:"json"`
	Collection      string `yaml:"collection"       env:"SHOPLIST_COLLECTION"       env-default:"products"`
	JSONPath        string `yaml:"json_path"        env:"SHOPLIST_JSON_PATH"        env-default:"shoplist.json"`
	ProjectID       string `yaml:"project_id"       env:"SHOPLIST_FIRESTORE_PROJECT"`
	CredentialsFile string `yaml:"credentials_file" env:"SHOPLIST_FIRESTORE_CREDENTIALS"`
}

// LogConfig holds logging settings. File is used while the TUI owns the
// terminal; one-shot commands log to stderr.
type LogConfig struct {
	Level  string `yaml:"level"  env:"SHOPLIST_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"SHOPLIST_LOG_FORMAT" env-default:"json"`
	File   string `yaml:"file"   env:"SHOPLIST_LOG_FILE"   env-default:"shoplist.log"`
}

type UIConfig struct {
	Theme string `yaml:"theme" env:"SHOPLIST_THEME" env-default:"classic"`
}

// MetricsConfig: an empty Addr disables the /metrics listener.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"SHOPLIST_METRICS_ADDR"`
}

const defaultPath = "./shoplist.yaml"

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults. The file is path, else SHOPLIST_CONFIG,
// else ./shoplist.yaml; only an explicitly named file must exist. Callers
// run Validate once command-line overrides are applied.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("SHOPLIST_CONFIG")
	}
	explicit := path != ""
	if !explicit {
		path = defaultPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	return &cfg, nil
}

var (
	themes   = []string{"classic", "neon", "mono"}
	backends = []string{BackendMemory, BackendJSON, BackendFirestore}
	formats  = []string{"json", "console"}
)

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(backends, c.Store.Backend) {
		errs = append(errs, fmt.Errorf("store.backend: unknown %q", c.Store.Backend))
	}
	if c.Store.Collection == "" {
		errs = append(errs, errors.New("store.collection: required"))
	}
	if c.Store.Backend == BackendFirestore && c.Store.ProjectID == "" {
		errs = append(errs, errors.New("store.project_id: required for firestore backend"))
	}
	if c.Store.Backend == BackendJSON && c.Store.JSONPath == "" {
		errs = append(errs, errors.New("store.json_path: required for json backend"))
	}
	if !slices.Contains(themes, c.UI.Theme) {
		errs = append(errs, fmt.Errorf("ui.theme: unknown %q", c.UI.Theme))
	}
	if !slices.Contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format: unknown %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
