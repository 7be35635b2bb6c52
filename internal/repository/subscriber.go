package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/wanotify/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriberPatch carries the fields an upsert should change. Nil fields are left alone.
type SubscriberPatch struct {
	DisplayName     *string
	Status          *domain.SubscriptionStatus
	EndsAt          *time.Time
	ClearEndsAt     bool
	MessageTemplate *string
	APIKey          *string
}

func (p SubscriberPatch) columns() (map[string]interface{}, error) {
	cols := map[string]interface{}{}
	if p.DisplayName != nil {
		cols["display_name"] = *p.DisplayName
	}
	if p.Status != nil {
		st, err := domain.ParseStatus(string(*p.Status))
		if err != nil {
			return nil, err
		}
		cols["status"] = st
	}
	switch {
	case p.ClearEndsAt:
		cols["ends_at"] = nil
	case p.EndsAt != nil:
		cols["ends_at"] = p.EndsAt.UTC()
	}
	if p.MessageTemplate != nil {
		cols["message_template"] = *p.MessageTemplate
	}
	if p.APIKey != nil {
		cols["api_key"] = *p.APIKey
	}
	return cols, nil
}

// SubscriberRepository is the entitlement store.
type SubscriberRepository interface {
	// Upsert creates the record if absent (status inactive, zero counters)
	// then applies only the provided fields.
	Upsert(ctx context.Context, identity string, patch SubscriberPatch) (*domain.Subscriber, error)

	// Get returns domain.ErrNotFound for unknown identities
	Get(ctx context.Context, identity string) (*domain.Subscriber, error)

	// List is ordered by identity ascending. limit <= 0 returns everything.
	List(ctx context.Context, limit, offset int) ([]*domain.Subscriber, error)

	Count(ctx context.Context) (int64, error)

	// Delete reports whether a record existed
	Delete(ctx context.Context, identity string) (bool, error)

	// IncrementMessageCount adds delta in a single UPDATE and stamps last_message_at
	IncrementMessageCount(ctx context.Context, identity string, delta int64) error

	SetStatus(ctx context.Context, identity string, status domain.SubscriptionStatus) error

	// ExpireLapsed moves every active record whose end date passed to expired
	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)
}

// GormSubscriberRepository is the GORM implementation of SubscriberRepository
type GormSubscriberRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormSubscriberRepository creates a new GORM-based repository
func NewGormSubscriberRepository(db *gorm.DB) *GormSubscriberRepository {
	return &GormSubscriberRepository{db: db, now: time.Now}
}

func (r *GormSubscriberRepository) Upsert(ctx context.Context, identity string, patch SubscriberPatch) (*domain.Subscriber, error) {
	id, err := domain.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}
	cols, err := patch.columns()
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fresh := domain.Subscriber{Identity: id, Status: domain.StatusInactive}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
			return err
		}
		if len(cols) == 0 {
			return nil
		}
		cols["updated_at"] = r.now()
		return tx.Model(&domain.Subscriber{}).Where("identity = ?", id).Updates(cols).Error
	})
	if err != nil {
		return nil, storageErr(err, "upsert subscriber")
	}
	return r.Get(ctx, id)
}

func (r *GormSubscriberRepository) Get(ctx context.Context, identity string) (*domain.Subscriber, error) {
	id, err := domain.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}
	var sub domain.Subscriber
	if err := r.db.WithContext(ctx).Where("identity = ?", id).First(&sub).Error; err != nil {
		return nil, storageErr(err, "get subscriber "+id)
	}
	return &sub, nil
}

func (r *GormSubscriberRepository) List(ctx context.Context, limit, offset int) ([]*domain.Subscriber, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	var subs []*domain.Subscriber
	err := r.db.WithContext(ctx).
		Order("identity ASC").
		Offset(offset).
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, storageErr(err, "list subscribers")
	}
	return subs, nil
}

func (r *GormSubscriberRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Subscriber{}).Count(&total).Error; err != nil {
		return 0, storageErr(err, "count subscribers")
	}
	return total, nil
}

func (r *GormSubscriberRepository) Delete(ctx context.Context, identity string) (bool, error) {
	id, err := domain.NormalizeIdentity(identity)
	if err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).Where("identity = ?", id).Delete(&domain.Subscriber{})
	if res.Error != nil {
		return false, storageErr(res.Error, "delete subscriber "+id)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormSubscriberRepository) IncrementMessageCount(ctx context.Context, identity string, delta int64) error {
	if delta <= 0 {
		return errors.Wrapf(domain.ErrValidation, "message count delta must be positive, got %d", delta)
	}
	id, err := domain.NormalizeIdentity(identity)
	if err != nil {
		return err
	}
	now := r.now().UTC()
	res := r.db.WithContext(ctx).
		Model(&domain.Subscriber{}).
		Where("identity = ?", id).
		UpdateColumns(map[string]interface{}{
			"messages_sent_count": gorm.Expr("messages_sent_count + ?", delta),
			"last_message_at":     now,
			"updated_at":          now,
		})
	if res.Error != nil {
		return storageErr(res.Error, "increment message count "+id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrNotFound, "subscriber %s", id)
	}
	return nil
}

func (r *GormSubscriberRepository) SetStatus(ctx context.Context, identity string, status domain.SubscriptionStatus) error {
	st, err := domain.ParseStatus(string(status))
	if err != nil {
		return err
	}
	id, err := domain.NormalizeIdentity(identity)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&domain.Subscriber{}).
		Where("identity = ?", id).
		UpdateColumns(map[string]interface{}{
			"status":     st,
			"updated_at": r.now().UTC(),
		})
	if res.Error != nil {
		return storageErr(res.Error, "set subscriber status "+id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrNotFound, "subscriber %s", id)
	}
	return nil
}

func (r *GormSubscriberRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Subscriber{}).
		Where("status = ? AND ends_at IS NOT NULL AND ends_at < ?", domain.StatusActive, now.UTC()).
		UpdateColumns(map[string]interface{}{
			"status":     domain.StatusExpired,
			"updated_at": r.now().UTC(),
		})
	if res.Error != nil {
		return 0, storageErr(res.Error, "expire lapsed subscribers")
	}
	return res.RowsAffected, nil
}
