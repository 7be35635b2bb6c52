package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusInactive SubscriptionStatus = "inactive"
	StatusTrial    SubscriptionStatus = "trial"
	StatusExpired  SubscriptionStatus = "expired"
)

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (SubscriptionStatus, error) {
	switch st := SubscriptionStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusInactive, StatusTrial, StatusExpired:
		return st, nil
	}
	return "", errors.Wrapf(ErrValidation, "unknown subscription status %q", s)
}

// Subscriber is the entitlement record of one phone number.
type Subscriber struct {
	Identity          string             `gorm:"primaryKey;size:32" json:"identity"`
	DisplayName       string             `gorm:"size:128" json:"display_name"`
	Status            SubscriptionStatus `gorm:"size:16;index;default:inactive" json:"status"`
	EndsAt            *time.Time         `gorm:"index" json:"ends_at"`
	MessageTemplate   string             `gorm:"type:text" json:"message_template"`
	MessagesSentCount int64              `gorm:"not null;default:0" json:"messages_sent_count"`
	LastMessageAt     *time.Time         `json:"last_message_at"`
	APIKey            string             `gorm:"size:64;index" json:"-"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// TableName Specify table name
func (Subscriber) TableName() string {
	return "subscriber"
}

// IsEntitled reports whether the subscriber may receive templated messages at now.
// An ends_at equal to now is still entitled.
func (s *Subscriber) IsEntitled(now time.Time) bool {
	if s == nil || s.Status != StatusActive {
		return false
	}
	return s.EndsAt == nil || !s.EndsAt.Before(now)
}

// Lapsed is an active record whose end date has passed.
func (s *Subscriber) Lapsed(now time.Time) bool {
	return s != nil && s.Status == StatusActive && s.EndsAt != nil && s.EndsAt.Before(now)
}
