package repository

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wanotify/internal/domain"
	"github.com/talkincode/wanotify/internal/repository/repotest"
)

func TestMetricIncrement(t *testing.T) {
	repo := NewGormMetricRepository(repotest.NewDB(t))
	ctx := context.Background()

	v, err := repo.Get(ctx, domain.MetricMessagesSent)
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, repo.Increment(ctx, domain.MetricMessagesSent, 1))
	require.NoError(t, repo.Increment(ctx, domain.MetricMessagesSent, 2))

	v, err = repo.Get(ctx, domain.MetricMessagesSent)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)
}

func TestRetryOnce(t *testing.T) {
	calls := 0
	v, err := RetryOnce("op", func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.Wrap(domain.ErrStorage, "disk")
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)

	calls = 0
	err = RetryOnceErr("op", func() error {
		calls++
		return errors.Wrap(domain.ErrStorage, "disk")
	})
	assert.True(t, errors.Is(err, domain.ErrStorage))
	assert.Equal(t, 2, calls, "retried at most once")

	calls = 0
	err = RetryOnceErr("op", func() error {
		calls++
		return errors.Wrap(domain.ErrNotFound, "x")
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, 1, calls, "non storage errors are not retried")
}
