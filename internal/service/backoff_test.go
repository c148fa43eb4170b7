package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDelayIsLinear(t *testing.T) {
	b := NewBackoff(time.Second, 2)
	require.Equal(t, time.Second, b.Delay(0))
	require.Equal(t, 2*time.Second, b.Delay(1))
}

func TestBackoffRetriesUntilSuccess(t *testing.T) {
	b := NewBackoff(time.Millisecond, 2)
	var attempts []int
	err := b.Do(context.Background(), func(attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, attempts)
}

func TestBackoffReturnsLastError(t *testing.T) {
	b := NewBackoff(time.Millisecond, 1)
	calls := 0
	err := b.Do(context.Background(), func(int) error {
		calls++
		return errors.New("still broken")
	})
	require.EqualError(t, err, "still broken")
	require.Equal(t, 2, calls)
}

func TestBackoffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBackoff(time.Hour, 5)
	calls := 0
	err := b.Do(ctx, func(int) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
