package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestDo_SucceedsOnLastAttempt(t *testing.T) {
	rec := &recorder{}
	p := Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Sleep: rec.sleep}

	calls := 0
	v, err := Do(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("boom")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, rec.delays)
}

func TestDo_AlwaysFails(t *testing.T) {
	rec := &recorder{}
	p := Policy{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond, Sleep: rec.sleep}

	calls := 0
	cause := errors.New("upstream down")
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, cause
	})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, cause)
	require.Equal(t, 4, calls)
	require.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
	}, rec.delays)
}

func TestDo_PermanentShortCircuits(t *testing.T) {
	rec := &recorder{}
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second, Sleep: rec.sleep}

	calls := 0
	rejected := errors.New("401 unauthorized")
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, Permanent(rejected)
	})
	require.ErrorIs(t, err, rejected)
	require.False(t, errors.Is(err, ErrExhausted))
	require.False(t, IsPermanent(err))
	require.Equal(t, 1, calls)
	require.Empty(t, rec.delays)
}

func TestDo_CancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, BaseDelay: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, p, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("timeout")
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, func(context.Context) (int, error) {
		calls++
		return 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestPermanentNil(t *testing.T) {
	require.NoError(t, Permanent(nil))
}
