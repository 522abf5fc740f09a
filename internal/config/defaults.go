package config

import "path/filepath"

// Default values applied when the configuration leaves a field empty.
const (
	DefaultVersion       = "1"
	DefaultDataDir       = "./.pagespub"
	DefaultOutputDir     = "./public"
	DefaultThemesDir     = "./themes"
	DefaultTheme         = "default"
	DefaultBranch        = "main"
	DefaultAuthorName    = "pagespub"
	DefaultAuthorEmail   = "pagespub@localhost"
	DefaultCommitMessage = "Publish {{time}}"
	DefaultGraceDelay    = "3s"
	DefaultCloneDepth    = 1
	DefaultNotesPageSize = 50
	DefaultDigestLength  = 200
	DefaultDaemonEvery   = "1h"
	DefaultMetricsAddr   = ":9464"
	DefaultEventsSubject = "pagespub.publish.events"
	DefaultNATSBucket    = "pagespub"
)

// normalizeConfig case-folds enumerations before defaults are applied.
func normalizeConfig(cfg *Config) {
	cfg.Logging.Level = logLevels.normalize(cfg.Logging.Level)
	cfg.Logging.Format = logFormats.normalize(cfg.Logging.Format)
	cfg.Store.Driver = storeDrivers.normalize(cfg.Store.Driver)
	cfg.Git.Auth.Type = authTypes.normalize(cfg.Git.Auth.Type)
	cfg.Publish.RetryBackoff = backoffModes.normalize(cfg.Publish.RetryBackoff)
}

// applyDefaults fills every unset field. It is idempotent.
func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}

	if cfg.Workspace.DataDir == "" {
		cfg.Workspace.DataDir = DefaultDataDir
	}
	if cfg.Workspace.OutputDir == "" {
		cfg.Workspace.OutputDir = DefaultOutputDir
	}
	if cfg.Workspace.RepoDir == "" {
		cfg.Workspace.RepoDir = filepath.Join(cfg.Workspace.DataDir, "repo")
	}

	if cfg.Themes.Dir == "" {
		cfg.Themes.Dir = DefaultThemesDir
	}
	if cfg.Themes.Default == "" {
		cfg.Themes.Default = DefaultTheme
	}
	if cfg.Themes.Fallback == "" {
		cfg.Themes.Fallback = DefaultTheme
	}

	if cfg.Notes.PageSize <= 0 {
		cfg.Notes.PageSize = DefaultNotesPageSize
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreSQLite
	}
	if cfg.Store.Driver == StoreSQLite && cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(cfg.Workspace.DataDir, "pagespub.db")
	}
	if cfg.Store.Driver == StoreNATS && cfg.Store.Bucket == "" {
		cfg.Store.Bucket = DefaultNATSBucket
	}

	if cfg.Git.Branch == "" {
		cfg.Git.Branch = DefaultBranch
	}
	if cfg.Git.AuthorName == "" {
		cfg.Git.AuthorName = DefaultAuthorName
	}
	if cfg.Git.AuthorEmail == "" {
		cfg.Git.AuthorEmail = DefaultAuthorEmail
	}
	if cfg.Git.CommitMessage == "" {
		cfg.Git.CommitMessage = DefaultCommitMessage
	}
	if cfg.Git.GraceDelay == "" {
		cfg.Git.GraceDelay = DefaultGraceDelay
	}
	if cfg.Git.CloneDepth == 0 {
		cfg.Git.CloneDepth = DefaultCloneDepth
	}
	if cfg.Git.Auth.Type == "" {
		cfg.Git.Auth.Type = AuthTypeNone
	}

	if cfg.Publish.RetryBackoff == "" {
		cfg.Publish.RetryBackoff = RetryBackoffLinear
	}
	if cfg.Publish.RetryInitialDelay == "" {
		cfg.Publish.RetryInitialDelay = "2s"
	}
	if cfg.Publish.RetryMaxDelay == "" {
		cfg.Publish.RetryMaxDelay = "30s"
	}

	if cfg.RSS.DigestLength <= 0 {
		cfg.RSS.DigestLength = DefaultDigestLength
	}

	if cfg.Events.NATSURL != "" && cfg.Events.Subject == "" {
		cfg.Events.Subject = DefaultEventsSubject
	}

	if cfg.Daemon.Interval == "" {
		cfg.Daemon.Interval = DefaultDaemonEvery
	}
	if cfg.Daemon.MetricsAddr == "" {
		cfg.Daemon.MetricsAddr = DefaultMetricsAddr
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
}

// ShallowDepth converts the configured clone depth into a go-git depth (0 = full history).
func (g GitConfig) ShallowDepth() int {
	if g.CloneDepth < 0 {
		return 0
	}
	return g.CloneDepth
}
