package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/talkincode/wanotify/internal/domain"
)

func TestRenderArabic(t *testing.T) {
	ends := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	sub := &domain.Subscriber{Identity: "201234567890", DisplayName: "أحمد", EndsAt: &ends}

	got := Render("مرحباً {name}! صالح حتى {endDate}", sub, Context{}, "fallback")
	assert.Equal(t, "مرحباً أحمد! صالح حتى 2025-01-10", got)
}

func TestRenderFallback(t *testing.T) {
	sub := &domain.Subscriber{Identity: "201234567890", DisplayName: "Sara"}

	assert.Equal(t, "Welcome Sara", Render("", sub, Context{}, "Welcome {name}"))
	assert.Equal(t, "Welcome Sara", Render("  \n ", sub, Context{}, "Welcome {name}"))
	assert.NotEmpty(t, Render("", sub, Context{}, "Welcome"))
}

func TestRenderOrderEveryOccurrence(t *testing.T) {
	sub := &domain.Subscriber{Identity: "201234567890"}
	got := Render("{order} | {order}", sub, Context{Order: "2x Widget = 40"}, "")
	assert.Equal(t, "2x Widget = 40 | 2x Widget = 40", got)
}

func TestRenderTokens(t *testing.T) {
	sub := &domain.Subscriber{Identity: "201234567890"}

	tests := []struct {
		name string
		tpl  string
		want string
	}{
		{"empty name trims", "Hi {name}", "Hi"},
		{"phone", "{phone}", "201234567890"},
		{"absent end date", "until {endDate}.", "until ."},
		{"unknown token verbatim", "{Name} {unknown}", "{Name} {unknown}"},
		{"values are not rescanned", "{order}", "{name}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := Context{}
			if tt.name == "values are not rescanned" {
				ctx.Order = "{name}"
			}
			assert.Equal(t, tt.want, Render(tt.tpl, sub, ctx, ""))
		})
	}
}

func TestRenderEndDateUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	ends := time.Date(2025, 1, 10, 1, 0, 0, 0, loc)
	sub := &domain.Subscriber{Identity: "201234567890", EndsAt: &ends}
	assert.Equal(t, "2025-01-09", Render("{endDate}", sub, Context{}, ""))
}

func TestOrderSummary(t *testing.T) {
	labels := OrderLabels{OrderID: "Order", Customer: "Customer", Items: "Items", Total: "Total"}
	order := Order{
		ID:           "A-100",
		CustomerName: "Omar",
		Items: []OrderItem{
			{Name: "Widget", Qty: 2, Price: 20},
			{Name: "Cable", Qty: 1, Price: 4.5},
		},
	}

	want := "Order: A-100\nCustomer: Omar\nItems:\n- Widget x2 = 40\n- Cable x1 = 4.5\nTotal: 44.5"
	assert.Equal(t, want, order.Summary(labels))

	total := 50.0
	order.Total = &total
	assert.Contains(t, order.Summary(labels), "Total: 50")

	assert.Equal(t, "", Order{}.Summary(labels))
}
