package domain

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEntitled(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	tests := []struct {
		name string
		sub  Subscriber
		want bool
	}{
		{"active without end", Subscriber{Status: StatusActive}, true},
		{"active ends now", Subscriber{Status: StatusActive, EndsAt: at(0)}, true},
		{"active ended one second ago", Subscriber{Status: StatusActive, EndsAt: at(-time.Second)}, false},
		{"active future end", Subscriber{Status: StatusActive, EndsAt: at(24 * time.Hour)}, true},
		{"trial", Subscriber{Status: StatusTrial}, false},
		{"inactive", Subscriber{Status: StatusInactive, EndsAt: at(time.Hour)}, false},
		{"expired", Subscriber{Status: StatusExpired}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.IsEntitled(now))
		})
	}

	var nilSub *Subscriber
	assert.False(t, nilSub.IsEntitled(now))
}

func TestLapsed(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	assert.True(t, (&Subscriber{Status: StatusActive, EndsAt: &past}).Lapsed(now))
	assert.False(t, (&Subscriber{Status: StatusExpired, EndsAt: &past}).Lapsed(now))
	assert.False(t, (&Subscriber{Status: StatusActive}).Lapsed(now))
}

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"201234567890", "201234567890"},
		{"+20 (123) 456-7890", "201234567890"},
		{"201234567890@s.whatsapp.net", "201234567890"},
		{"201234567890:12@s.whatsapp.net", "201234567890"},
		{"٢٠١٢٣٤٥٦٧٨٩٠", "201234567890"},
		{"۲۰۱۲۳۴۵۶۷۸۹۰", "201234567890"},
		{"２０１２３４５６７８９０", "201234567890"},
	}
	for _, tt := range tests {
		got, err := NormalizeIdentity(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "   ", "+", "12345", "abc123456", "123456789012345678901"} {
		_, err := NormalizeIdentity(bad)
		require.Error(t, err, bad)
		assert.True(t, errors.Is(err, ErrValidation), bad)
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Active ")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, st)

	_, err = ParseStatus("paused")
	assert.True(t, errors.Is(err, ErrValidation))
}
