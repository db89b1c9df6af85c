package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestNormalizeUsesProcedureResult(t *testing.T) {
	store := new(mockStore)
	normalizer := NewNormalizer(store, time.Second)

	store.On("NormalizeEmail", mock.Anything, "  User+tag@GMAIL.com ").
		Return("user@gmail.com", nil).Once()

	assert.Equal(t, "user@gmail.com", normalizer.Normalize(context.Background(), "  User+tag@GMAIL.com "))
	store.AssertExpectations(t)
}

func TestNormalizeFallsBackOnError(t *testing.T) {
	store := new(mockStore)
	normalizer := NewNormalizer(store, time.Second)

	store.On("NormalizeEmail", mock.Anything, mock.Anything).
		Return("", errors.New("unavailable")).Once()

	assert.Equal(t, "user@example.com", normalizer.Normalize(context.Background(), "  User@Example.COM  "))
	store.AssertExpectations(t)
}

func TestNormalizeFallsBackOnEmptyResult(t *testing.T) {
	store := new(mockStore)
	normalizer := NewNormalizer(store, time.Second)

	store.On("NormalizeEmail", mock.Anything, mock.Anything).Return("", nil).Once()

	assert.Equal(t, "user@example.com", normalizer.Normalize(context.Background(), "User@Example.com"))
	store.AssertExpectations(t)
}
