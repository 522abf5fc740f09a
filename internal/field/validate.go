package field

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"sync"
	"unicode/utf8"

	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
)

var patternCache sync.Map // pattern -> *regexp.Regexp

func compilePattern(p string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(p); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, err
	}
	patternCache.Store(p, re)
	return re, nil
}

// Validate checks value against the field's rules and choice options.
// Violations are returned as a validation ClassifiedError naming the field.
func Validate(f Field, value any) error {
	fail := func(format string, args ...any) error {
		msg := fmt.Sprintf(format, args...)
		if f.Rules != nil && f.Rules.Message != "" {
			msg = f.Rules.Message
		}
		return ferrors.ValidationError(fmt.Sprintf("%s: %s", f.DisplayLabel(), msg)).
			WithContext("field", f.Name).
			Build()
	}

	if isEmpty(value) {
		if f.Rules != nil && f.Rules.Required {
			return fail("value is required")
		}
		return nil
	}

	if f.InputType.IsChoice() && len(f.Options) > 0 {
		for _, v := range choiceValues(value) {
			if !hasOption(f.Options, v) {
				return fail("%v is not an allowed option", v)
			}
		}
	}

	if f.Rules == nil {
		return nil
	}
	r := f.Rules

	if s, ok := value.(string); ok {
		n := utf8.RuneCountInString(s)
		if r.MinLength > 0 && n < r.MinLength {
			return fail("must be at least %d characters", r.MinLength)
		}
		if r.MaxLength > 0 && n > r.MaxLength {
			return fail("must be at most %d characters", r.MaxLength)
		}
		if r.Pattern != "" {
			re, err := compilePattern(r.Pattern)
			if err != nil {
				return fail("invalid pattern %q", r.Pattern)
			}
			if !re.MatchString(s) {
				return fail("does not match %s", r.Pattern)
			}
		}
	}

	if r.Min != nil || r.Max != nil {
		num, ok := toFloat(value)
		if !ok {
			return fail("must be a number")
		}
		if r.Min != nil && num < *r.Min {
			return fail("must be >= %v", *r.Min)
		}
		if r.Max != nil && num > *r.Max {
			return fail("must be <= %v", *r.Max)
		}
	}
	return nil
}

// ValidateAll validates every declared field against values and joins all violations.
func ValidateAll(fields []Field, values map[string]any) error {
	var errs []error
	for _, f := range fields {
		if err := Validate(f, values[f.Name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

func choiceValues(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case bool:
		// a single checkbox toggles rather than picks
		return nil
	}
	return []any{v}
}

func hasOption(opts []Option, v any) bool {
	for _, o := range opts {
		if reflect.DeepEqual(o.Value, v) || fmt.Sprint(o.Value) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
