package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Exit codes returned by the pagespub binary.
const (
	ExitGeneral    = 1
	ExitInvalid    = 2
	ExitNotFound   = 3
	ExitAuth       = 5
	ExitConfig     = 7
	ExitRemote     = 8
	ExitInternal   = 10
	ExitGeneration = 11
	ExitRuntime    = 12
)

var exitCodes = map[ErrorCategory]int{
	CategoryValidation: ExitInvalid,
	CategoryNotFound:   ExitNotFound,
	CategoryAuth:       ExitAuth,
	CategoryConfig:     ExitConfig,
	CategoryTheme:      ExitConfig,
	CategoryNetwork:    ExitRemote,
	CategoryGit:        ExitRemote,
	CategoryInternal:   ExitInternal,
	CategoryInvariant:  ExitInternal,
	CategoryGeneration: ExitGeneration,
	CategoryFileSystem: ExitGeneration,
	CategoryDaemon:     ExitRuntime,
	CategoryRuntime:    ExitRuntime,
	CategoryStore:      ExitRuntime,
	CategoryNotes:      ExitRuntime,
}

// context keys echoed in the short form of a message
var displayKeys = []string{"page", "theme", "field", "article", "path"}

// CLIErrorAdapter prints errors for humans and picks the process exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates an adapter writing to stderr.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, out: os.Stderr, exit: os.Exit}
}

// ExitCodeFor maps err to a process exit code; 0 for nil.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if ce, ok := AsClassified(err); ok {
		if code, ok := exitCodes[ce.Category()]; ok {
			return code
		}
	}
	return ExitGeneral
}

// FormatError renders err as a one-line message. Verbose mode prints the
// full chain.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	ce, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return ce.Error()
	}
	switch ce.Category() {
	case CategoryInternal, CategoryInvariant:
		return "Internal error occurred (use -v for details)"
	case CategoryAuth:
		return fmt.Sprintf("Authentication failed: %s (check git username/token)", ce.Message())
	}
	msg := "Error: " + ce.Message()
	ctx := ce.Context()
	for _, key := range displayKeys {
		if v, ok := ctx.GetString(key); ok && v != "" {
			msg += fmt.Sprintf(" (%s: %s)", key, v)
		}
	}
	return msg
}

// HandleError reports err and exits the process. It returns without exiting
// when err is nil.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	_, _ = fmt.Fprintln(a.out, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	ce, ok := AsClassified(err)
	return !ok || ce.Severity() == SeverityFatal
}

func (a *CLIErrorAdapter) logError(err error) {
	ce, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", slog.String("error", err.Error()))
		return
	}
	level := slog.LevelError
	if ce.Severity() == SeverityWarning {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{slog.String("category", string(ce.Category()))}
	if ce.CanRetry() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	if ce.Cause() != nil {
		attrs = append(attrs, slog.String("cause", ce.Cause().Error()))
	}
	a.logger.LogAttrs(context.Background(), level, ce.Message(), attrs...)
}
