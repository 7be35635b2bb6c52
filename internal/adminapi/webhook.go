package adminapi

import (
	"crypto/subtle"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/talkincode/wanotify/internal/domain"
	"github.com/talkincode/wanotify/internal/notify"
	"github.com/talkincode/wanotify/internal/render"
	"github.com/talkincode/wanotify/internal/webserver"
	"go.uber.org/zap"
)

const apiKeyHeader = "X-API-Key"

func registerWebhookRoutes() {
	webserver.PublicPOST("/webhook/order", postOrderWebhook)
	webserver.PublicPOST("/webhook/easyorder", postOrderWebhook)
}

// orderPayload is decoded loosely: shops send numbers as strings and mix
// key styles, so qty, price and total stay untyped until converted.
type orderPayload struct {
	TargetIdentity   string      `mapstructure:"target_identity"`
	UserPhone        string      `mapstructure:"user_phone"`
	CustomerIdentity string      `mapstructure:"customer_identity"`
	CustomerPhone    string      `mapstructure:"customer_phone"`
	CustomerName     string      `mapstructure:"customer_name"`
	OrderID          string      `mapstructure:"order_id"`
	Items            []orderLine `mapstructure:"items"`
	Total            interface{} `mapstructure:"total"`
}

type orderLine struct {
	Name     string      `mapstructure:"name"`
	Qty      interface{} `mapstructure:"qty"`
	Quantity interface{} `mapstructure:"quantity"`
	Price    interface{} `mapstructure:"price"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func (p *orderPayload) request(queryTarget string) (notify.Request, error) {
	req := notify.Request{
		TargetIdentity:   firstNonEmpty(p.TargetIdentity, p.UserPhone, queryTarget),
		CustomerIdentity: firstNonEmpty(p.CustomerIdentity, p.CustomerPhone),
		CustomerName:     strings.TrimSpace(p.CustomerName),
		Order: render.Order{
			ID:           strings.TrimSpace(p.OrderID),
			CustomerName: strings.TrimSpace(p.CustomerName),
		},
	}
	if req.TargetIdentity == "" {
		return req, errors.Wrap(domain.ErrValidation, "target identity is required")
	}

	for i, line := range p.Items {
		qtyRaw := line.Qty
		if qtyRaw == nil {
			qtyRaw = line.Quantity
		}
		qty := 1.0
		if qtyRaw != nil {
			var err error
			if qty, err = cast.ToFloat64E(qtyRaw); err != nil {
				return req, errors.Wrapf(domain.ErrValidation, "items[%d].qty: %v", i, err)
			}
		}
		price, err := cast.ToFloat64E(line.Price)
		if err != nil {
			return req, errors.Wrapf(domain.ErrValidation, "items[%d].price: %v", i, err)
		}
		req.Order.Items = append(req.Order.Items, render.OrderItem{
			Name:  strings.TrimSpace(line.Name),
			Qty:   qty,
			Price: price,
		})
	}
	if p.Total != nil && cast.ToString(p.Total) != "" {
		total, err := cast.ToFloat64E(p.Total)
		if err != nil {
			return req, errors.Wrapf(domain.ErrValidation, "total: %v", err)
		}
		req.Order.Total = &total
	}
	return req, nil
}

func requestAPIKey(c echo.Context) string {
	if key := c.Request().Header.Get(apiKeyHeader); key != "" {
		return key
	}
	return c.QueryParam("key")
}

// authorizeWebhook checks the caller's key against the target subscriber.
func authorizeWebhook(c echo.Context, target string) error {
	if !GetApp(c).Config().Webhook.RequireAPIKey {
		return nil
	}
	id, err := domain.NormalizeIdentity(target)
	if err != nil {
		return err
	}
	sub, err := GetApp(c).Subscribers().Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	key := requestAPIKey(c)
	if sub.APIKey == "" || key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(sub.APIKey)) != 1 {
		return errors.Wrap(domain.ErrUnauthorized, "invalid api key")
	}
	return nil
}

// postOrderWebhook sends an order notification on behalf of a subscriber.
func postOrderWebhook(c echo.Context) error {
	var payload orderPayload
	if err := bindLoose(c, &payload); err != nil {
		return failErr(c, err)
	}
	req, err := payload.request(firstNonEmpty(c.QueryParam("userPhone"), c.QueryParam("user_phone")))
	if err != nil {
		return failErr(c, err)
	}
	if err := authorizeWebhook(c, req.TargetIdentity); err != nil {
		return failErr(c, err)
	}

	res, err := GetApp(c).Notifier().Notify(c.Request().Context(), req)
	if err != nil {
		zap.L().Info("adminapi: order webhook rejected",
			zap.String("namespace", "adminapi"),
			zap.String("target", req.TargetIdentity),
			zap.String("order_id", req.Order.ID),
			zap.Error(err))
		return failErr(c, err)
	}
	return ok(c, res)
}
