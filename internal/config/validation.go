package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
)

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(cfg *Config) error {
	cv := &configurationValidator{config: cfg}
	return cv.validate()
}

type configurationValidator struct {
	config *Config
	errs   []error
}

func (cv *configurationValidator) fail(field, format string, args ...any) {
	cv.errs = append(cv.errs, ferrors.ValidationError(fmt.Sprintf(format, args...)).
		WithContext("field", field).
		Build())
}

func (cv *configurationValidator) validate() error {
	cv.validateEnums()
	cv.validateDurations()
	cv.validateAuth()
	cv.validateStore()

	if cv.config.RSS.DigestLength < 0 {
		cv.fail("rss.digest_length", "digest length cannot be negative")
	}
	if u := cv.config.RSS.SiteURL; u != "" {
		if parsed, err := url.Parse(u); err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			cv.fail("rss.site_url", "site url must be an absolute http(s) URL, got %q", u)
		}
	}
	if cv.config.Publish.MaxRetries < 0 {
		cv.fail("publish.max_retries", "max retries cannot be negative")
	}
	return errors.Join(cv.errs...)
}

func (cv *configurationValidator) validateEnums() {
	c := cv.config
	if !logLevels.valid(c.Logging.Level) {
		cv.fail("logging.level", "unsupported log level %q (valid: %v)", c.Logging.Level, logLevels.options())
	}
	if !logFormats.valid(c.Logging.Format) {
		cv.fail("logging.format", "unsupported log format %q (valid: %v)", c.Logging.Format, logFormats.options())
	}
	if !backoffModes.valid(c.Publish.RetryBackoff) {
		cv.fail("publish.retry_backoff", "unsupported retry backoff %q (valid: %v)", c.Publish.RetryBackoff, backoffModes.options())
	}
}

func (cv *configurationValidator) validateDurations() {
	c := cv.config
	durations := map[string]string{
		"git.grace_delay":             c.Git.GraceDelay,
		"publish.retry_initial_delay": c.Publish.RetryInitialDelay,
		"publish.retry_max_delay":     c.Publish.RetryMaxDelay,
		"daemon.interval":             c.Daemon.Interval,
	}
	for field, raw := range durations {
		d, err := time.ParseDuration(raw)
		if err != nil {
			cv.fail(field, "invalid duration %q", raw)
			continue
		}
		if d < 0 {
			cv.fail(field, "duration cannot be negative")
		}
	}
}

func (cv *configurationValidator) validateAuth() {
	auth := cv.config.Git.Auth
	if !authTypes.valid(auth.Type) {
		cv.fail("git.auth.type", "unsupported auth type %q (valid: %v)", auth.Type, authTypes.options())
		return
	}
	switch auth.Type {
	case AuthTypeToken:
		if auth.Token == "" {
			cv.fail("git.auth.token", "token auth requires a token")
		}
	case AuthTypeBasic:
		if auth.Username == "" || auth.Password == "" {
			cv.fail("git.auth", "basic auth requires username and password")
		}
	}
}

func (cv *configurationValidator) validateStore() {
	s := cv.config.Store
	if !storeDrivers.valid(s.Driver) {
		cv.fail("store.driver", "unsupported store driver %q (valid: %v)", s.Driver, storeDrivers.options())
		return
	}
	if s.Driver == StoreNATS && s.NATSURL == "" {
		cv.fail("store.nats_url", "nats store requires nats_url")
	}
}

// RequirePublishTarget reports whether the git section is complete enough to publish.
func (c *Config) RequirePublishTarget() error {
	if c.Git.URL == "" {
		return ferrors.ValidationError("git.url is required to publish").
			WithContext("field", "git.url").
			Build()
	}
	return nil
}
