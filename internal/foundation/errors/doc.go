// Package errors provides the classified error primitives used across pagespub.
//
// Every failure that crosses a package boundary is a ClassifiedError carrying a
// category, a severity and a retry hint, so callers can decide between reporting,
// falling back or retrying without string matching.
//
// Categories map onto the publishing pipeline's error kinds:
//   - CategoryTheme: a theme bundle could not be loaded (recoverable, falls back)
//   - CategoryValidation: a field value violates its rules (blocks save/generation)
//   - CategoryGeneration: rendering failed, the whole pass is aborted
//   - CategoryAuth / CategoryNetwork: git remote rejected credentials or was unreachable
//   - CategoryInvariant: a programming contract was broken (fatal)
//
// Example usage:
//
//	err := errors.GenerationError("template execution failed").
//		WithCause(execErr).
//		WithContext("page", "index").
//		Build()
package errors
