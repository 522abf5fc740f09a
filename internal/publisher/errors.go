package publisher

import (
	stderrors "errors"
	"net"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
)

// ErrNoRepository is returned by Publish when the shadow repository is missing
// or was initialized for another remote or branch. InitRepo recreates it.
var ErrNoRepository = stderrors.New("shadow repository missing or stale")

// classifyGitError translates go-git transport failures into classified errors.
// Auth and network failures keep their own category so callers can decide on retries.
func classifyGitError(err error, op, url string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())
	builder := errors.GitError("git "+op+" failed").
		WithCause(err).
		WithContext("op", op).
		WithContext("url", url)

	var netErr net.Error
	switch {
	case stderrors.Is(err, transport.ErrAuthenticationRequired),
		stderrors.Is(err, transport.ErrAuthorizationFailed),
		strings.Contains(l, "authentication failed"),
		strings.Contains(l, "not authorized"),
		strings.Contains(l, "invalid credentials"),
		strings.Contains(l, "403 forbidden"):
		builder.WithCategory(errors.CategoryAuth).UserAction()
	case stderrors.Is(err, transport.ErrRepositoryNotFound):
		builder.WithCategory(errors.CategoryNotFound).UserAction()
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		builder.WithCategory(errors.CategoryNetwork).RateLimit()
	case stderrors.As(err, &netErr),
		strings.Contains(l, "remote hung up"),
		strings.Contains(l, "connection reset"),
		strings.Contains(l, "connection refused"),
		strings.Contains(l, "no such host"),
		strings.Contains(l, "timeout"),
		strings.Contains(l, "no route to host"),
		strings.Contains(l, "unexpected eof"):
		builder.WithCategory(errors.CategoryNetwork).Retryable()
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		builder.WithCategory(errors.CategoryConfig)
	}

	return builder.Build()
}

// IsRetryable reports whether a publish failure is worth retrying: only network
// failures qualify.
func IsRetryable(err error) bool {
	return errors.HasCategory(err, errors.CategoryNetwork)
}
