// Package config loads and validates the configuration record the core
// consumes. Producing the record is an external collaborator's job (the
// process launcher / CLI); this package's job is only to read it, apply
// defaults, and hand back a typed, validated struct — mirroring the
// teacher's split between its yaml-backed startup settings and the typed
// config surface the rest of the daemon consumes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Embeddings holds the embedding-provider defaults applied at startup;
// configure_embeddings can still reconfigure the registry at runtime.
type Embeddings struct {
	Provider     string `mapstructure:"provider"`
	Model        string `mapstructure:"model"`
	APIKey       string `mapstructure:"api_key"`
	Endpoint     string `mapstructure:"endpoint"`
	BatchSize    int    `mapstructure:"batch_size"`
	AutoGenerate bool   `mapstructure:"auto_generate"`

	// CompactionAPIKey, when set (or ANTHROPIC_API_KEY in the environment),
	// enables observation compaction before embedding via internal/compact;
	// leaving it empty disables compaction and falls back to raw
	// concatenation, no different from before this setting existed.
	CompactionAPIKey string `mapstructure:"compaction_api_key"`
}

// Vector holds the vector-store defaults consumed by search_nodes,
// search_entities_semantic, and search_hybrid when a tool call omits its
// own k/threshold/weight (wired into the Graph via SetSearchDefaults at
// startup, see cmd/kgraphd).
type Vector struct {
	DefaultK            int     `mapstructure:"default_k"`
	DefaultThreshold    float64 `mapstructure:"default_threshold"`
	DefaultHybridWeight float64 `mapstructure:"default_hybrid_weight"`
}

// CORS holds the HTTP adapter's cross-origin policy.
type CORS struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Config is the validated record the core consumes. Every field has a
// default applied by Load before environment/file overrides are read, so a
// Config produced with zero external input is still a legal one.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	InDocker bool   `mapstructure:"in_docker"`

	DatabasePath      string `mapstructure:"database_path"`
	BackupDir         string `mapstructure:"backup_dir"`
	MinBackups        int    `mapstructure:"min_backups"`
	MinBackupAgeDays  int    `mapstructure:"min_backup_age_days"`
	BackupIntervalMin int    `mapstructure:"backup_interval_minutes"`

	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`

	Embeddings Embeddings `mapstructure:"embeddings"`
	Vector     Vector     `mapstructure:"vector"`
	CORS       CORS       `mapstructure:"cors"`
}

// envPrefix matches the teacher's BD_ convention, adapted to this service's
// name; KG_PORT, KG_DATABASE_PATH, KG_EMBEDDINGS_MODEL, etc. all bind
// automatically via viper's nested-key dot-to-underscore translation.
const envPrefix = "KG"

// defaultBaseDir returns the per-user base directory used when no explicit
// database_path/backup_dir is configured, per the on-disk layout.
func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".kgraphd")
}

func setDefaults(v *viper.Viper) {
	base := defaultBaseDir()
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8787)
	v.SetDefault("name", "kgraphd")
	v.SetDefault("in_docker", false)

	v.SetDefault("database_path", filepath.Join(base, "data", "knowledge_graph.db"))
	v.SetDefault("backup_dir", filepath.Join(base, "backup"))
	v.SetDefault("min_backups", 5)
	v.SetDefault("min_backup_age_days", 1)
	v.SetDefault("backup_interval_minutes", 60)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetDefault("embeddings.provider", "local")
	v.SetDefault("embeddings.model", "nomic-embed-text")
	v.SetDefault("embeddings.batch_size", 32)
	v.SetDefault("embeddings.auto_generate", false)
	v.SetDefault("embeddings.compaction_api_key", "")

	v.SetDefault("vector.default_k", 10)
	v.SetDefault("vector.default_threshold", 0.3)
	v.SetDefault("vector.default_hybrid_weight", 0.7)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost", "http://127.0.0.1"})
}

// Load reads configPath (if non-empty; toml and yaml are both registered
// format parsers) layered under defaults, then applies KG_-prefixed
// environment overrides, the same precedence order as the teacher's
// viper-backed config. in_docker is force-detected per spec.md §6 rather
// than trusted from the file/env when the /.dockerenv marker file is
// present.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if strings.EqualFold(filepath.Ext(configPath), ".toml") {
			// viper's built-in TOML support (pelletier/go-toml) is bypassed
			// here in favor of BurntSushi/toml, the parser the teacher
			// actually carries in its go.mod; decode into a generic map and
			// merge it so the rest of the precedence chain (env overrides)
			// still flows through viper untouched.
			var raw map[string]any
			if _, err := toml.DecodeFile(configPath, &raw); err != nil {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
			if err := v.MergeConfigMap(raw); err != nil {
				return nil, fmt.Errorf("merge config %s: %w", configPath, err)
			}
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if detectInDocker() {
		cfg.InDocker = true
		cfg.Host = "0.0.0.0"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("config: database_path must not be empty")
	}
	if c.Vector.DefaultHybridWeight < 0 || c.Vector.DefaultHybridWeight > 1 {
		return fmt.Errorf("config: vector.default_hybrid_weight must be in [0,1]")
	}
	return nil
}

// detectInDocker reports whether the process is running inside a
// container, by the same marker file Docker and most container runtimes
// create at /.dockerenv.
func detectInDocker() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}
