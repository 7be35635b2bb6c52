package repository

import (
	"github.com/pkg/errors"
	"github.com/talkincode/wanotify/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// storageErr maps gorm errors onto the domain taxonomy.
func storageErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(domain.ErrNotFound, op)
	}
	return errors.Wrapf(domain.ErrStorage, "%s: %v", op, err)
}

// RetryOnce runs fn again, without delay, when the first call fails with a
// storage error. Any other error is returned as is.
func RetryOnce[T any](op string, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil || !errors.Is(err, domain.ErrStorage) {
		return v, err
	}
	zap.L().Warn("repository: retrying after storage error",
		zap.String("namespace", "repository"),
		zap.String("op", op),
		zap.Error(err))
	return fn()
}

// RetryOnceErr is RetryOnce for operations without a result.
func RetryOnceErr(op string, fn func() error) error {
	_, err := RetryOnce(op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
