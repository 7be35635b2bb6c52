package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/wanotify/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MetricRepository holds process-wide counters such as the global sent count.
type MetricRepository interface {
	Increment(ctx context.Context, name string, delta int64) error
	// Get returns 0 for a counter that was never incremented
	Get(ctx context.Context, name string) (int64, error)
}

type GormMetricRepository struct {
	db *gorm.DB
}

func NewGormMetricRepository(db *gorm.DB) *GormMetricRepository {
	return &GormMetricRepository{db: db}
}

func (r *GormMetricRepository) Increment(ctx context.Context, name string, delta int64) error {
	now := time.Now().UTC()
	m := domain.SysMetric{Name: name, Value: delta, UpdatedAt: now}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      gorm.Expr("sys_metric.value + ?", delta),
			"updated_at": now,
		}),
	}).Create(&m).Error
	return storageErr(err, "increment metric "+name)
}

func (r *GormMetricRepository) Get(ctx context.Context, name string) (int64, error) {
	var m domain.SysMetric
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr(err, "get metric "+name)
	}
	return m.Value, nil
}
