package errors

// ErrorBuilder assembles a ClassifiedError.
type ErrorBuilder struct {
	e ClassifiedError
}

// NewError starts an error of the given category. Severity defaults to
// SeverityError and the retry hint to RetryNever.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{e: ClassifiedError{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
	}}
}

// WrapError starts an error of the given category around err.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(err)
}

func (b *ErrorBuilder) WithCategory(category ErrorCategory) *ErrorBuilder {
	b.e.category = category
	return b
}

func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.e.cause = err
	return b
}

func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.e.severity = severity
	return b
}

func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.e.retry = strategy
	return b
}

// WithContext records an identifier the error is about.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	if b.e.context == nil {
		b.e.context = make(ErrorContext, 2)
	}
	b.e.context[key] = value
	return b
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder      { return b.WithSeverity(SeverityFatal) }
func (b *ErrorBuilder) Warning() *ErrorBuilder    { return b.WithSeverity(SeverityWarning) }
func (b *ErrorBuilder) Retryable() *ErrorBuilder  { return b.WithRetry(RetryBackoff) }
func (b *ErrorBuilder) RateLimit() *ErrorBuilder  { return b.WithRetry(RetryRateLimit) }
func (b *ErrorBuilder) UserAction() *ErrorBuilder { return b.WithRetry(RetryUserAction) }

// Build returns the error. The builder may be reused; later changes do not
// affect errors already built.
func (b *ErrorBuilder) Build() *ClassifiedError {
	e := b.e
	e.context = b.e.Context()
	return &e
}

// ConfigError reports an invalid or missing configuration value.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

// ValidationError reports a field or input value the user has to fix.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).UserAction()
}

// ThemeLoadError reports a theme bundle that could not be loaded. Callers fall
// back to another theme.
func ThemeLoadError(message string) *ErrorBuilder {
	return NewError(CategoryTheme, message).Warning().UserAction()
}

// GenerationError aborts a whole generation pass.
func GenerationError(message string) *ErrorBuilder {
	return NewError(CategoryGeneration, message)
}

func AuthError(message string) *ErrorBuilder {
	return NewError(CategoryAuth, message).UserAction()
}

func NetworkError(message string) *ErrorBuilder {
	return NewError(CategoryNetwork, message).Retryable()
}

func GitError(message string) *ErrorBuilder {
	return NewError(CategoryGit, message)
}

func StoreError(message string) *ErrorBuilder {
	return NewError(CategoryStore, message)
}

func NotesError(message string) *ErrorBuilder {
	return NewError(CategoryNotes, message)
}

func NotFoundError(message string) *ErrorBuilder {
	return NewError(CategoryNotFound, message)
}

func FileSystemError(message string) *ErrorBuilder {
	return NewError(CategoryFileSystem, message).Retryable()
}

func RuntimeError(message string) *ErrorBuilder {
	return NewError(CategoryRuntime, message).Fatal()
}

func DaemonError(message string) *ErrorBuilder {
	return NewError(CategoryDaemon, message).Fatal()
}

// InvariantViolation reports a broken programming contract, such as a session
// with no usable theme.
func InvariantViolation(message string) *ErrorBuilder {
	return NewError(CategoryInvariant, message).Fatal()
}

func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
