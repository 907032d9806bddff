package ratelimiter

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"telesession-service/internal/app/contracts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockRedisRepository struct {
	mock.Mock
}

func (m *MockRedisRepository) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockRedisRepository) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	return m.Called(ctx, key, value, exp).Error(0)
}

func (m *MockRedisRepository) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockRedisRepository) TrySetNX(ctx context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, exp)
	return args.Bool(0), args.Error(1)
}

func (m *MockRedisRepository) Expire(ctx context.Context, key string, exp time.Duration) error {
	return m.Called(ctx, key, exp).Error(0)
}

func (m *MockRedisRepository) IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	args := m.Called(ctx, key, ttl)
	return args.Get(0).(int64), args.Error(1)
}

func TestApplyResourceLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 30, 0, time.UTC)
	windowID := now.Unix() / 60

	newInput := func() *contracts.ApplyResourceLimiterInput {
		return &contracts.ApplyResourceLimiterInput{
			ResourceName:      "appt-1:patient-1",
			LimiterGroupName:  "messages",
			WindowDurationSec: 60,
			MaxQuota:          2,
			NowUTC:            now,
		}
	}

	t.Run("allows requests within quota", func(t *testing.T) {
		repo := new(MockRedisRepository)
		repo.On("IncrementWithTTL", ctx, mock.MatchedBy(func(key string) bool {
			return key == "ratelimit:MESSAGES:appt-1:patient-1:"+itoa(windowID)
		}), 61*time.Second).Return(int64(2), nil)

		limiter := NewResourceLimiter(repo, zap.NewNop())
		out, err := limiter.ApplyResourceLimiter(ctx, newInput())

		assert.NoError(t, err)
		assert.True(t, out.Allowed)
		repo.AssertExpectations(t)
	})

	t.Run("rejects requests over quota with retry after the window", func(t *testing.T) {
		repo := new(MockRedisRepository)
		repo.On("IncrementWithTTL", ctx, mock.Anything, mock.Anything).Return(int64(3), nil)

		limiter := NewResourceLimiter(repo, zap.NewNop())
		out, err := limiter.ApplyResourceLimiter(ctx, newInput())

		assert.NoError(t, err)
		assert.False(t, out.Allowed)
		assert.Equal(t, 31, out.RetryAfterSecs)
	})

	t.Run("zero quota disables the limiter", func(t *testing.T) {
		repo := new(MockRedisRepository)
		input := newInput()
		input.MaxQuota = 0

		limiter := NewResourceLimiter(repo, zap.NewNop())
		out, err := limiter.ApplyResourceLimiter(ctx, input)

		assert.NoError(t, err)
		assert.True(t, out.Allowed)
		repo.AssertNotCalled(t, "IncrementWithTTL", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("surfaces counter failures", func(t *testing.T) {
		repo := new(MockRedisRepository)
		repo.On("IncrementWithTTL", ctx, mock.Anything, mock.Anything).Return(int64(0), errors.New("redis down"))

		limiter := NewResourceLimiter(repo, zap.NewNop())
		out, err := limiter.ApplyResourceLimiter(ctx, newInput())

		assert.Error(t, err)
		assert.False(t, out.Allowed)
	})
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
