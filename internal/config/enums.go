package config

import (
	"sort"
	"strings"
)

// normalizer maps case-insensitive user input onto a typed enumeration.
type normalizer[T ~string] struct {
	values       map[string]T
	defaultValue T
}

func newNormalizer[T ~string](defaultValue T, values ...T) normalizer[T] {
	m := make(map[string]T, len(values))
	for _, v := range values {
		m[string(v)] = v
	}
	return normalizer[T]{values: m, defaultValue: defaultValue}
}

func (n normalizer[T]) normalize(raw T) T {
	cleaned := strings.ToLower(strings.TrimSpace(string(raw)))
	if cleaned == "" {
		return n.defaultValue
	}
	if v, ok := n.values[cleaned]; ok {
		return v
	}
	return T(cleaned)
}

func (n normalizer[T]) valid(v T) bool {
	_, ok := n.values[string(v)]
	return ok
}

func (n normalizer[T]) options() []string {
	out := make([]string, 0, len(n.values))
	for k := range n.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// StoreDriver enumerates settings store backends.
type StoreDriver string

const (
	StoreSQLite StoreDriver = "sqlite"
	StoreMemory StoreDriver = "memory"
	StoreNATS   StoreDriver = "nats"
)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var (
	logLevels    = newNormalizer(LogLevelInfo, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError)
	logFormats   = newNormalizer(LogFormatText, LogFormatJSON, LogFormatText)
	storeDrivers = newNormalizer(StoreSQLite, StoreSQLite, StoreMemory, StoreNATS)
	authTypes    = newNormalizer(AuthTypeNone, AuthTypeNone, AuthTypeToken, AuthTypeBasic)
	backoffModes = newNormalizer(RetryBackoffLinear, RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential)
)

// NormalizeLogLevel converts raw input into a LogLevel, defaulting to info.
func NormalizeLogLevel(raw string) LogLevel {
	lvl := logLevels.normalize(LogLevel(raw))
	if !logLevels.valid(lvl) {
		return LogLevelInfo
	}
	return lvl
}

// NormalizeRetryBackoff converts arbitrary user input into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	mode := backoffModes.normalize(RetryBackoffMode(raw))
	if strings.TrimSpace(raw) == "" || !backoffModes.valid(mode) {
		return ""
	}
	return mode
}
