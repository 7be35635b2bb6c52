package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wanotify/internal/domain"
	"github.com/talkincode/wanotify/internal/render"
	"github.com/talkincode/wanotify/internal/repository"
	"github.com/talkincode/wanotify/internal/repository/repotest"
)

type recordingSender struct {
	mu         sync.Mutex
	recipients []string
	texts      []string
	err        error
}

func (s *recordingSender) Send(ctx context.Context, identity, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.recipients = append(s.recipients, identity)
	s.texts = append(s.texts, text)
	return nil
}

var testLabels = render.OrderLabels{OrderID: "Order", Customer: "Customer", Items: "Items", Total: "Total"}

func setupNotifier(t *testing.T) (*Notifier, *repository.GormSubscriberRepository, *repository.GormMetricRepository, *recordingSender) {
	t.Helper()
	db := repotest.NewDB(t)
	subs := repository.NewGormSubscriberRepository(db)
	metrics := repository.NewGormMetricRepository(db)
	sender := &recordingSender{}
	n, err := New(subs, metrics, sender, Config{OrderTemplate: "Thanks {name}\n{order}", Labels: testLabels, NodeID: 1})
	require.NoError(t, err)
	return n, subs, metrics, sender
}

func activeMerchant(t *testing.T, subs *repository.GormSubscriberRepository, tpl string) {
	t.Helper()
	st := domain.StatusActive
	ends := time.Now().Add(24 * time.Hour)
	patch := repository.SubscriberPatch{Status: &st, EndsAt: &ends}
	if tpl != "" {
		patch.MessageTemplate = &tpl
	}
	_, err := subs.Upsert(context.Background(), "201000000001", patch)
	require.NoError(t, err)
}

func widgetOrder() render.Order {
	return render.Order{ID: "A-7", Items: []render.OrderItem{{Name: "Widget", Qty: 2, Price: 20}}}
}

func TestNotifySendsToCustomer(t *testing.T) {
	n, subs, metrics, sender := setupNotifier(t)
	ctx := context.Background()
	activeMerchant(t, subs, "")

	res, err := n.Notify(ctx, Request{
		TargetIdentity:   "201000000001",
		CustomerIdentity: "+20 100 000 0002",
		CustomerName:     "Omar",
		Order:            widgetOrder(),
	})
	require.NoError(t, err)

	assert.Equal(t, "201000000002", res.Recipient)
	assert.NotEmpty(t, res.CorrelationID)
	assert.Equal(t, "Thanks Omar\nOrder: A-7\nItems:\n- Widget x2 = 40\nTotal: 40", res.RenderedText)
	assert.Equal(t, []string{"201000000002"}, sender.recipients)

	merchant, err := subs.Get(ctx, "201000000001")
	require.NoError(t, err)
	assert.EqualValues(t, 1, merchant.MessagesSentCount)

	global, err := metrics.Get(ctx, domain.MetricMessagesSent)
	require.NoError(t, err)
	assert.EqualValues(t, 1, global)
}

func TestNotifyUsesMerchantTemplate(t *testing.T) {
	n, subs, _, sender := setupNotifier(t)
	activeMerchant(t, subs, "New order for {phone}: {order}")

	res, err := n.Notify(context.Background(), Request{
		TargetIdentity: "201000000001",
		Order:          render.Order{Items: []render.OrderItem{{Name: "Widget", Qty: 2, Price: 20}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "New order for 201000000001: Items:\n- Widget x2 = 40\nTotal: 40", res.RenderedText)
	assert.Equal(t, []string{"201000000001"}, sender.recipients)
}

func TestNotifyErrors(t *testing.T) {
	n, subs, _, sender := setupNotifier(t)
	ctx := context.Background()

	_, err := n.Notify(ctx, Request{TargetIdentity: "x"})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = n.Notify(ctx, Request{TargetIdentity: "201000000001"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	past := time.Now().Add(-time.Hour)
	st := domain.StatusActive
	_, err = subs.Upsert(ctx, "201000000001", repository.SubscriberPatch{Status: &st, EndsAt: &past})
	require.NoError(t, err)
	_, err = n.Notify(ctx, Request{TargetIdentity: "201000000001", Order: widgetOrder()})
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	assert.Empty(t, sender.recipients)
}

func TestNotifyNotConnected(t *testing.T) {
	n, subs, _, sender := setupNotifier(t)
	ctx := context.Background()
	activeMerchant(t, subs, "")
	sender.err = errors.Wrap(domain.ErrNotConnected, "whatsapp session is not connected")

	_, err := n.Notify(ctx, Request{TargetIdentity: "201000000001", Order: widgetOrder()})
	assert.True(t, errors.Is(err, domain.ErrServiceUnavailable))

	merchant, err := subs.Get(ctx, "201000000001")
	require.NoError(t, err)
	assert.Zero(t, merchant.MessagesSentCount)
}

func TestNotifyCorrelationIDsAreUnique(t *testing.T) {
	n, subs, _, _ := setupNotifier(t)
	activeMerchant(t, subs, "")

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		res, err := n.Notify(context.Background(), Request{TargetIdentity: "201000000001", Order: widgetOrder()})
		require.NoError(t, err)
		assert.False(t, seen[res.CorrelationID])
		seen[res.CorrelationID] = true
	}
}
