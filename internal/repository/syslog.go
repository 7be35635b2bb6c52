package repository

import (
	"context"
	"time"

	"github.com/talkincode/wanotify/internal/domain"
	"gorm.io/gorm"
)

// OprLogRepository stores the admin audit trail.
type OprLogRepository interface {
	Create(ctx context.Context, log *domain.SysOprLog) error
	// DeleteOlderThan removes entries older than the given number of days
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

type GormOprLogRepository struct {
	db *gorm.DB
}

func NewGormOprLogRepository(db *gorm.DB) *GormOprLogRepository {
	return &GormOprLogRepository{db: db}
}

func (r *GormOprLogRepository) Create(ctx context.Context, log *domain.SysOprLog) error {
	if log.OptTime.IsZero() {
		log.OptTime = time.Now()
	}
	return storageErr(r.db.WithContext(ctx).Create(log).Error, "create opr log")
}

func (r *GormOprLogRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("opt_time < ?", time.Now().AddDate(0, 0, -days)).
		Delete(&domain.SysOprLog{})
	return res.RowsAffected, storageErr(res.Error, "delete opr logs")
}

// SessionLogRepository stores whatsapp connectivity transitions.
type SessionLogRepository interface {
	Create(ctx context.Context, log *domain.WhatsAppSessionLog) error
	Recent(ctx context.Context, limit int) ([]*domain.WhatsAppSessionLog, error)
}

type GormSessionLogRepository struct {
	db *gorm.DB
}

func NewGormSessionLogRepository(db *gorm.DB) *GormSessionLogRepository {
	return &GormSessionLogRepository{db: db}
}

func (r *GormSessionLogRepository) Create(ctx context.Context, log *domain.WhatsAppSessionLog) error {
	return storageErr(r.db.WithContext(ctx).Create(log).Error, "create session log")
}

func (r *GormSessionLogRepository) Recent(ctx context.Context, limit int) ([]*domain.WhatsAppSessionLog, error) {
	var logs []*domain.WhatsAppSessionLog
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, storageErr(err, "list session logs")
}
