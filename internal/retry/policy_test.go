package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/config"
	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
)

func TestPolicyDelays(t *testing.T) {
	tests := []struct {
		name string
		mode config.RetryBackoffMode
		want []time.Duration
	}{
		{"fixed", config.RetryBackoffFixed, []time.Duration{time.Second, time.Second, time.Second}},
		{"linear", config.RetryBackoffLinear, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}},
		{"exponential", config.RetryBackoffExponential, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(tt.mode, time.Second, 3*time.Second, 3)
			for i, want := range tt.want {
				require.Equal(t, want, p.Delay(i+1), "attempt %d", i+1)
			}
			require.Zero(t, p.Delay(0))
		})
	}
}

func TestNewPolicyFallbacks(t *testing.T) {
	p := NewPolicy("bogus", 0, 0, -1)
	def := DefaultPolicy()
	require.Equal(t, def, p)
	require.NoError(t, p.Validate())

	capped := NewPolicy(config.RetryBackoffFixed, time.Minute, time.Second, 1)
	require.Equal(t, time.Second, capped.Initial)

	err := Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}.Validate()
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(config.PublishConfig{MaxRetries: 2, RetryBackoff: config.RetryBackoffFixed, RetryInitialDelay: "5ms", RetryMaxDelay: "1s"})
	require.Equal(t, 2, p.MaxRetries)
	require.Equal(t, 5*time.Millisecond, p.Initial)
	require.Equal(t, config.RetryBackoffFixed, p.Mode)
}

func TestDoRetriesTransientOnly(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 3)
	transient := errors.New("connection reset")
	permanent := errors.New("authentication failed")
	isTransient := func(err error) bool { return errors.Is(err, transient) }

	attempts := 0
	err := p.Do(context.Background(), isTransient, nil, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)

	attempts = 0
	err = p.Do(context.Background(), isTransient, nil, func(context.Context) error {
		attempts++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, attempts)

	attempts = 0
	var retried []int
	err = p.Do(context.Background(), isTransient, func(n int, _ time.Duration, _ error) { retried = append(retried, n) }, func(context.Context) error {
		attempts++
		return transient
	})
	require.ErrorIs(t, err, transient)
	require.Equal(t, 4, attempts)
	require.Equal(t, []int{1, 2, 3}, retried)
}

func TestDoStopsOnCancel(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 5)
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("timeout")

	err := p.Do(ctx, func(error) bool { return true }, func(int, time.Duration, error) { cancel() }, func(context.Context) error { return boom })
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, boom)
}
