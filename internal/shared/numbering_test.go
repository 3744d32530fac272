package shared

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSequenceNumber(t *testing.T) {
	at := time.Date(2025, time.October, 14, 9, 30, 0, 0, time.UTC)
	require.Equal(t, "INV-202510-0001", SequenceNumber("INV", at, 1))
	require.Equal(t, "GRN-202510-0042", SequenceNumber("GRN", at, 42))
	require.Equal(t, "INV-202510-12345", SequenceNumber("INV", at, 12345))
}

func TestFallbackNumber(t *testing.T) {
	at := time.UnixMilli(1760434200123)
	require.Equal(t, "INV-1760434200123", FallbackNumber("INV", at))
}

func TestMonthBoundsCrossesYear(t *testing.T) {
	from, to := MonthBounds(time.Date(2025, time.December, 31, 23, 59, 0, 0, time.UTC))
	require.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestUserSafeMessage(t *testing.T) {
	kind := errors.New("kind")
	err := Safe("Cart is empty", kind)
	require.Equal(t, "Cart is empty", UserSafeMessage(err))
	require.ErrorIs(t, err, kind)
	require.Equal(t, GenericFailureMessage, UserSafeMessage(errors.New("pq: connection refused")))
	require.Empty(t, UserSafeMessage(nil))
}
