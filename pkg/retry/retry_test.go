package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0

	v, err := Do(context.Background(), func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, fmt.Errorf("transient failure")
		}

		return 42, nil
	}, 3, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, attempts)
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0

	_, err := Do(context.Background(), func() (int, error) {
		attempts++

		return 0, fmt.Errorf("always failing")
	}, 2, time.Millisecond)

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestDoPermanentStopsRetrying(t *testing.T) {
	attempts := 0

	_, err := Do(context.Background(), func() (int, error) {
		attempts++

		return 0, Permanent(fmt.Errorf("unrecoverable"))
	}, 5, time.Millisecond)

	require.EqualError(t, err, "unrecoverable")
	assert.Equal(t, 1, attempts)
}

func TestDoVoid(t *testing.T) {
	attempts := 0

	err := DoVoid(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return fmt.Errorf("transient failure")
		}

		return nil
	}, 3, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestPollTimesOut(t *testing.T) {
	_, err := Poll(context.Background(), func() (struct{}, error) {
		return struct{}{}, fmt.Errorf("not ready yet")
	}, time.Millisecond, 20*time.Millisecond)

	require.Error(t, err)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, Sleep(ctx, time.Minute), context.Canceled)
}
