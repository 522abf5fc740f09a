package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
)

// Config represents the application configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Themes    ThemesConfig    `yaml:"themes"`
	Notes     NotesConfig     `yaml:"notes"`
	Store     StoreConfig     `yaml:"store"`
	Git       GitConfig       `yaml:"git"`
	Publish   PublishConfig   `yaml:"publish"`
	RSS       RSSConfig       `yaml:"rss"`
	Events    EventsConfig    `yaml:"events,omitempty"`
	Daemon    DaemonConfig    `yaml:"daemon,omitempty"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// WorkspaceConfig locates the directories pagespub owns.
type WorkspaceConfig struct {
	DataDir   string `yaml:"data_dir"`   // settings database, shadow repository
	OutputDir string `yaml:"output_dir"` // target of `generate`
	RepoDir   string `yaml:"repo_dir"`   // shadow working tree, defaults to <data_dir>/repo
}

// ThemesConfig locates installed theme bundles.
type ThemesConfig struct {
	Dir      string `yaml:"dir"`
	Default  string `yaml:"default"`  // used when the site has no theme yet
	Fallback string `yaml:"fallback"` // built-in theme activated when nothing else loads
}

// NotesConfig configures the note source.
type NotesConfig struct {
	Dir      string `yaml:"dir"`
	PageSize int    `yaml:"page_size"`
}

// StoreConfig selects the key-value settings backend.
type StoreConfig struct {
	Driver  StoreDriver `yaml:"driver"` // sqlite|memory|nats
	Path    string      `yaml:"path,omitempty"`
	NATSURL string      `yaml:"nats_url,omitempty"`
	Bucket  string      `yaml:"bucket,omitempty"`
}

// GitConfig describes the publishing remote.
type GitConfig struct {
	URL           string     `yaml:"url"`
	Branch        string     `yaml:"branch"`
	AuthorName    string     `yaml:"author_name"`
	AuthorEmail   string     `yaml:"author_email"`
	Auth          AuthConfig `yaml:"auth"`
	CloneDepth    int        `yaml:"clone_depth"` // 0 => default (1), negative => full history
	CommitMessage string     `yaml:"commit_message"`
	GraceDelay    string     `yaml:"grace_delay"` // window to cancel before staging starts
}

// PublishConfig controls the caller-side retry loop around the git worker.
type PublishConfig struct {
	MaxRetries        int              `yaml:"max_retries"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff"`
	RetryInitialDelay string           `yaml:"retry_initial_delay"`
	RetryMaxDelay     string           `yaml:"retry_max_delay"`
}

// RSSConfig holds feed rendering policy.
type RSSConfig struct {
	DigestLength int    `yaml:"digest_length"` // runes kept per entry in digest mode
	SiteURL      string `yaml:"site_url"`      // absolute base for feed links
}

// EventsConfig enables forwarding of publish progress to NATS.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// DaemonConfig configures `pagespub daemon`.
type DaemonConfig struct {
	Interval    string `yaml:"interval"`
	MetricsAddr string `yaml:"metrics_addr"`
	WatchThemes bool   `yaml:"watch_themes"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		slog.Debug("No .env file loaded", slog.String("reason", err.Error()))
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, ferrors.ConfigError("configuration file not found (run `pagespub init`)").WithContext("path", configPath).Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, ferrors.FileSystemError("failed to read config file").WithCause(err).WithContext("path", configPath).Build()
	}

	return Parse(data)
}

// Parse decodes YAML configuration content, expanding environment variables first.
func Parse(data []byte) (*Config, error) {
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, ferrors.ConfigError("failed to parse configuration").WithCause(err).Build()
	}

	normalizeConfig(&config)
	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").WithContext("path", configPath).Build()
	}

	exampleConfig := Default()
	exampleConfig.Notes.Dir = "./notes"
	exampleConfig.Git = GitConfig{
		URL:         "https://github.com/example/example.github.io.git",
		Branch:      "main",
		AuthorName:  "pagespub",
		AuthorEmail: "pagespub@example.com",
		Auth: AuthConfig{
			Type:     AuthTypeToken,
			Username: "example",
			Token:    "${PAGESPUB_GIT_TOKEN}",
		},
		CommitMessage: DefaultCommitMessage,
		GraceDelay:    "3s",
	}

	data, err := yaml.Marshal(exampleConfig)
	if err != nil {
		return ferrors.InternalError("failed to marshal example config").WithCause(err).Build()
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return ferrors.FileSystemError("failed to create config directory").WithCause(err).WithContext("path", dir).Build()
		}
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return ferrors.FileSystemError("failed to write config file").WithCause(err).WithContext("path", configPath).Build()
	}
	return nil
}
