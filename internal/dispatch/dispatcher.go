// Package dispatch answers inbound WhatsApp messages according to the
// sender's subscription.
package dispatch

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/talkincode/wanotify/internal/domain"
	"github.com/talkincode/wanotify/internal/render"
	"github.com/talkincode/wanotify/internal/repository"
	"github.com/talkincode/wanotify/internal/whatsapp"
	"go.uber.org/zap"
)

// Sender is the part of the session manager the dispatcher needs.
type Sender interface {
	Send(ctx context.Context, identity, text string) error
}

// Messages are the fixed replies and the default greeting template.
type Messages struct {
	DefaultTemplate string
	NotRegistered   string
	Inactive        string
}

// Outcome tells what Handle did with a message.
type Outcome string

const (
	OutcomeIgnored       Outcome = "ignored"
	OutcomeNotRegistered Outcome = "not_registered"
	OutcomeInactive      Outcome = "inactive"
	OutcomeGreeted       Outcome = "greeted"
)

type Dispatcher struct {
	subs    repository.SubscriberRepository
	metrics repository.MetricRepository
	sender  Sender
	msgs    Messages
	pool    *ants.Pool
	now     func() time.Time
}

// New creates a dispatcher running at most workers handlers at once.
func New(subs repository.SubscriberRepository, metrics repository.MetricRepository, sender Sender, msgs Messages, workers int) (*Dispatcher, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p interface{}) {
		zap.L().Error("dispatch: handler panic", zap.String("namespace", "dispatch"), zap.Any("panic", p))
	}))
	if err != nil {
		return nil, errors.Wrap(err, "create dispatch pool")
	}
	return &Dispatcher{
		subs:    subs,
		metrics: metrics,
		sender:  sender,
		msgs:    msgs,
		pool:    pool,
		now:     time.Now,
	}, nil
}

// Run handles messages until ctx is done or the stream closes. Each message
// is processed on the worker pool so a slow send never holds up the stream.
func (d *Dispatcher) Run(ctx context.Context, in <-chan whatsapp.MessageReceived) {
	defer d.pool.Release()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			if err := d.pool.Submit(func() { d.Handle(ctx, msg) }); err != nil {
				zap.L().Error("dispatch: submit failed",
					zap.String("namespace", "dispatch"),
					zap.String("message_id", msg.ID),
					zap.Error(err))
			}
		}
	}
}

// Handle answers one message. Errors are logged, never returned.
func (d *Dispatcher) Handle(ctx context.Context, msg whatsapp.MessageReceived) Outcome {
	if !msg.Direct() {
		return OutcomeIgnored
	}
	log := zap.L().With(
		zap.String("namespace", "dispatch"),
		zap.String("message_id", msg.ID),
		zap.String("sender", msg.Sender))

	identity, err := domain.NormalizeIdentity(msg.Sender)
	if err != nil {
		log.Debug("dispatch: sender is not a phone number", zap.Error(err))
		return OutcomeIgnored
	}

	sub, err := repository.RetryOnce("get subscriber", func() (*domain.Subscriber, error) {
		return d.subs.Get(ctx, identity)
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if d.reply(ctx, log, identity, d.msgs.NotRegistered) {
			d.countGlobal(ctx, log)
		}
		return OutcomeNotRegistered
	case err != nil:
		log.Error("dispatch: subscriber lookup failed", zap.Error(err))
		return OutcomeIgnored
	}

	now := d.now()
	if !sub.IsEntitled(now) {
		if sub.Lapsed(now) {
			err := repository.RetryOnceErr("set status", func() error {
				return d.subs.SetStatus(ctx, identity, domain.StatusExpired)
			})
			if err != nil {
				log.Error("dispatch: expire subscriber failed", zap.Error(err))
			} else {
				log.Info("dispatch: subscription expired", zap.Timep("ends_at", sub.EndsAt))
			}
		}
		if d.reply(ctx, log, identity, d.msgs.Inactive) {
			d.countGlobal(ctx, log)
		}
		return OutcomeInactive
	}

	text := render.Render(sub.MessageTemplate, sub, render.Context{}, d.msgs.DefaultTemplate)
	if !d.reply(ctx, log, identity, text) {
		return OutcomeGreeted
	}
	err = repository.RetryOnceErr("increment message count", func() error {
		return d.subs.IncrementMessageCount(ctx, identity, 1)
	})
	if err != nil {
		log.Error("dispatch: increment message count failed", zap.Error(err))
	}
	d.countGlobal(ctx, log)
	return OutcomeGreeted
}

func (d *Dispatcher) reply(ctx context.Context, log *zap.Logger, identity, text string) bool {
	if text == "" {
		return false
	}
	if err := d.sender.Send(ctx, identity, text); err != nil {
		log.Warn("dispatch: reply failed", zap.Error(err))
		return false
	}
	return true
}

func (d *Dispatcher) countGlobal(ctx context.Context, log *zap.Logger) {
	if d.metrics == nil {
		return
	}
	if err := d.metrics.Increment(ctx, domain.MetricMessagesSent, 1); err != nil {
		log.Warn("dispatch: increment global counter failed", zap.Error(err))
	}
}
