// Package notify sends templated order notifications on behalf of subscribers.
package notify

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
	"github.com/talkincode/wanotify/internal/domain"
	"github.com/talkincode/wanotify/internal/render"
	"github.com/talkincode/wanotify/internal/repository"
	"go.uber.org/zap"
)

type Sender interface {
	Send(ctx context.Context, identity, text string) error
}

type Config struct {
	// OrderTemplate is used when the subscriber has no template of its own
	OrderTemplate string
	Labels        render.OrderLabels
	// NodeID seeds the snowflake correlation ids (0-1023)
	NodeID int64
}

// Request is a notification triggered by a shop webhook. The target is the
// subscribing merchant whose entitlement, template and counter are used.
// The message goes to CustomerIdentity when set, else to the target.
type Request struct {
	TargetIdentity   string
	CustomerIdentity string
	CustomerName     string
	Order            render.Order
}

type Result struct {
	RenderedText  string `json:"rendered_text"`
	Recipient     string `json:"recipient"`
	CorrelationID string `json:"correlation_id"`
}

type Notifier struct {
	subs    repository.SubscriberRepository
	metrics repository.MetricRepository
	sender  Sender
	cfg     Config
	node    *snowflake.Node
	now     func() time.Time
}

func New(subs repository.SubscriberRepository, metrics repository.MetricRepository, sender Sender, cfg Config) (*Notifier, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, errors.Wrap(err, "create snowflake node")
	}
	return &Notifier{
		subs:    subs,
		metrics: metrics,
		sender:  sender,
		cfg:     cfg,
		node:    node,
		now:     time.Now,
	}, nil
}

// Notify renders and sends one order notification. Authorization is the
// caller's job. Errors wrap domain.ErrValidation, ErrNotFound, ErrForbidden,
// ErrServiceUnavailable or ErrStorage.
func (n *Notifier) Notify(ctx context.Context, req Request) (*Result, error) {
	target, err := domain.NormalizeIdentity(req.TargetIdentity)
	if err != nil {
		return nil, err
	}
	recipient := target
	if req.CustomerIdentity != "" {
		if recipient, err = domain.NormalizeIdentity(req.CustomerIdentity); err != nil {
			return nil, err
		}
	}

	sub, err := repository.RetryOnce("get subscriber", func() (*domain.Subscriber, error) {
		return n.subs.Get(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	if !sub.IsEntitled(n.now()) {
		return nil, errors.Wrap(domain.ErrForbidden, "subscription expired")
	}

	view := *sub
	view.Identity = recipient
	if req.CustomerName != "" {
		view.DisplayName = req.CustomerName
	}
	text := render.Render(sub.MessageTemplate, &view, render.Context{Order: req.Order.Summary(n.cfg.Labels)}, n.cfg.OrderTemplate)
	if text == "" {
		return nil, errors.Wrap(domain.ErrValidation, "rendered message is empty")
	}

	id := n.node.Generate().String()
	log := zap.L().With(
		zap.String("namespace", "notify"),
		zap.String("correlation_id", id),
		zap.String("target", target),
		zap.String("recipient", recipient),
		zap.String("order_id", req.Order.ID))

	if err := n.sender.Send(ctx, recipient, text); err != nil {
		log.Warn("notify: send failed", zap.Error(err))
		if errors.Is(err, domain.ErrNotConnected) {
			return nil, errors.Wrap(domain.ErrServiceUnavailable, err.Error())
		}
		return nil, err
	}

	// the message is out; counter failures are logged only
	err = repository.RetryOnceErr("increment message count", func() error {
		return n.subs.IncrementMessageCount(ctx, target, 1)
	})
	if err != nil {
		log.Error("notify: increment message count failed", zap.Error(err))
	}
	if n.metrics != nil {
		if err := n.metrics.Increment(ctx, domain.MetricMessagesSent, 1); err != nil {
			log.Warn("notify: increment global counter failed", zap.Error(err))
		}
	}
	log.Info("notify: order notification sent")

	return &Result{RenderedText: text, Recipient: recipient, CorrelationID: id}, nil
}
