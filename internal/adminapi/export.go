package adminapi

import (
	"fmt"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/wanotify/internal/domain"
)

type subscriberRow struct {
	Identity          string `csv:"identity"`
	DisplayName       string `csv:"display_name"`
	Status            string `csv:"status"`
	EndsAt            string `csv:"ends_at"`
	MessagesSentCount int64  `csv:"messages_sent_count"`
	LastMessageAt     string `csv:"last_message_at"`
	CreatedAt         string `csv:"created_at"`
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toRow(s *domain.Subscriber) *subscriberRow {
	created := s.CreatedAt
	return &subscriberRow{
		Identity:          s.Identity,
		DisplayName:       s.DisplayName,
		Status:            string(s.Status),
		EndsAt:            formatTime(s.EndsAt),
		MessagesSentCount: s.MessagesSentCount,
		LastMessageAt:     formatTime(s.LastMessageAt),
		CreatedAt:         formatTime(&created),
	}
}

// exportSubscribers streams every subscriber as csv. Api keys are never exported.
func exportSubscribers(c echo.Context) error {
	subs, err := GetApp(c).Subscribers().List(c.Request().Context(), 0, 0)
	if err != nil {
		return failErr(c, err)
	}
	rows := make([]*subscriberRow, 0, len(subs))
	for _, s := range subs {
		rows = append(rows, toRow(s))
	}

	filename := fmt.Sprintf("subscribers-%s.csv", time.Now().Format("20060102150405"))
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+filename)
	c.Response().WriteHeader(200)
	return gocsv.Marshal(rows, c.Response())
}
