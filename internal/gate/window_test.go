package gate

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWindowCountsAgainstTheInterval(t *testing.T) {
	store := new(mockStore)
	window := NewWindow(store, time.Second)

	fixed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	window.WithNow(func() time.Time { return fixed })

	store.On("CountSignupAttempts", mock.Anything, "1.2.3.4", fixed.Add(-24*time.Hour)).
		Return(2, nil).Once()

	status := window.CheckAndCount(context.Background(), "1.2.3.4", 24*time.Hour, 5)

	assert.True(t, status.Allowed)
	assert.Equal(t, 2, status.Attempts)
	assert.Nil(t, status.ResetAt)
	store.AssertExpectations(t)
}

func TestWindowDeniesAtLimit(t *testing.T) {
	store := new(mockStore)
	window := NewWindow(store, time.Second)

	fixed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	window.WithNow(func() time.Time { return fixed })

	store.On("CountSignupAttempts", mock.Anything, mock.Anything, mock.Anything).
		Return(5, nil).Once()

	status := window.CheckAndCount(context.Background(), "1.2.3.4", 24*time.Hour, 5)

	assert.False(t, status.Allowed)
	assert.Equal(t, 5, status.Attempts)
	require.NotNil(t, status.ResetAt)
	assert.Equal(t, fixed.Add(24*time.Hour), *status.ResetAt)
	store.AssertExpectations(t)
}

func TestWindowFailsClosedOnCounterError(t *testing.T) {
	store := new(mockStore)
	window := NewWindow(store, time.Second)

	store.On("CountSignupAttempts", mock.Anything, mock.Anything, mock.Anything).
		Return(0, errors.New("db down")).Once()

	status := window.CheckAndCount(context.Background(), "1.2.3.4", 24*time.Hour, 5)

	assert.False(t, status.Allowed)
	assert.Equal(t, math.MaxInt, status.Attempts)
	assert.NotNil(t, status.ResetAt)
	store.AssertExpectations(t)
}
