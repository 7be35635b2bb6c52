package adminapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/random"
	"github.com/pkg/errors"
	"github.com/talkincode/wanotify/internal/domain"
	"github.com/talkincode/wanotify/internal/repository"
	"github.com/talkincode/wanotify/internal/webserver"
)

const apiKeyLength = 40

func registerSubscriberRoutes() {
	webserver.ApiGET("/subscribers", listSubscribers)
	webserver.ApiGET("/subscribers/export", exportSubscribers)
	webserver.ApiGET("/subscribers/:identity", getSubscriber)
	webserver.ApiPOST("/subscribers", createSubscriber)
	webserver.ApiPUT("/subscribers/:identity", updateSubscriber)
	webserver.ApiDELETE("/subscribers/:identity", deleteSubscriber)
	webserver.ApiPUT("/subscribers/:identity/status", updateSubscriberStatus)
	webserver.ApiPUT("/subscribers/:identity/template", updateSubscriberTemplate)
	webserver.ApiPOST("/subscribers/:identity/apikey", regenerateSubscriberAPIKey)
	webserver.ApiPOST("/subscribers/sweep", sweepExpiredSubscribers)
}

// subscriberPayload is the admin upsert body. Every field is optional on
// update; camelCase and snake_case keys are both accepted.
type subscriberPayload struct {
	Identity        string  `mapstructure:"identity"`
	Phone           string  `mapstructure:"phone"`
	Name            *string `mapstructure:"name"`
	DisplayName     *string `mapstructure:"display_name"`
	Status          *string `mapstructure:"status" validate:"omitempty,oneof=active inactive trial expired"`
	EndDate         *string `mapstructure:"end_date"`
	DurationDays    *int    `mapstructure:"duration_days" validate:"omitempty,min=1,max=3650"`
	MessageTemplate *string `mapstructure:"message_template" validate:"omitempty,max=4096"`
}

func (p *subscriberPayload) identity() string {
	if p.Identity != "" {
		return p.Identity
	}
	return p.Phone
}

// patch converts the payload into a store patch. An empty end_date clears
// the end date; duration_days counts from now.
func (p *subscriberPayload) patch(now time.Time) (repository.SubscriberPatch, error) {
	var patch repository.SubscriberPatch
	patch.DisplayName = p.DisplayName
	if patch.DisplayName == nil {
		patch.DisplayName = p.Name
	}
	if p.Status != nil {
		st, err := domain.ParseStatus(*p.Status)
		if err != nil {
			return patch, err
		}
		patch.Status = &st
	}
	patch.MessageTemplate = p.MessageTemplate

	switch {
	case p.EndDate != nil && p.DurationDays != nil:
		return patch, errors.Wrap(domain.ErrValidation, "end_date and duration_days are exclusive")
	case p.EndDate != nil:
		if strings.TrimSpace(*p.EndDate) == "" {
			patch.ClearEndsAt = true
			break
		}
		ends, err := parseEndDate(*p.EndDate)
		if err != nil {
			return patch, err
		}
		patch.EndsAt = &ends
	case p.DurationDays != nil:
		ends := now.Add(time.Duration(*p.DurationDays) * 24 * time.Hour)
		patch.EndsAt = &ends
	}
	return patch, nil
}

// parseEndDate accepts any common date layout. A bare date means the end
// of that day in UTC.
func parseEndDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, errors.Wrapf(domain.ErrValidation, "invalid end_date %q", s)
	}
	if len(s) <= len("2006-01-02") && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t.UTC(), nil
}

func pathIdentity(c echo.Context) (string, error) {
	return domain.NormalizeIdentity(c.Param("identity"))
}

func listSubscribers(c echo.Context) error {
	ctx := c.Request().Context()
	repo := GetApp(c).Subscribers()
	page, pageSize := parsePagination(c)

	total, err := repo.Count(ctx)
	if err != nil {
		return failErr(c, err)
	}
	subs, err := repo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return failErr(c, err)
	}
	return paged(c, subs, total, page, pageSize)
}

func getSubscriber(c echo.Context) error {
	id, err := pathIdentity(c)
	if err != nil {
		return failErr(c, err)
	}
	sub, err := GetApp(c).Subscribers().Get(c.Request().Context(), id)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, sub)
}

func createSubscriber(c echo.Context) error {
	var payload subscriberPayload
	if err := bindLoose(c, &payload); err != nil {
		return failErr(c, err)
	}
	id, err := domain.NormalizeIdentity(payload.identity())
	if err != nil {
		return failErr(c, err)
	}
	return upsertSubscriber(c, id, &payload)
}

func updateSubscriber(c echo.Context) error {
	id, err := pathIdentity(c)
	if err != nil {
		return failErr(c, err)
	}
	var payload subscriberPayload
	if err := bindLoose(c, &payload); err != nil {
		return failErr(c, err)
	}
	return upsertSubscriber(c, id, &payload)
}

func upsertSubscriber(c echo.Context, id string, payload *subscriberPayload) error {
	if err := validate(c, payload); err != nil {
		return failErr(c, err)
	}
	patch, err := payload.patch(time.Now())
	if err != nil {
		return failErr(c, err)
	}
	sub, err := GetApp(c).Subscribers().Upsert(c.Request().Context(), id, patch)
	if err != nil {
		return failErr(c, err)
	}
	logOpr(c, "upsert_subscriber", fmt.Sprintf("upsert subscriber %s status=%s", id, sub.Status))
	return ok(c, sub)
}

func deleteSubscriber(c echo.Context) error {
	id, err := pathIdentity(c)
	if err != nil {
		return failErr(c, err)
	}
	existed, err := GetApp(c).Subscribers().Delete(c.Request().Context(), id)
	if err != nil {
		return failErr(c, err)
	}
	if !existed {
		return failErr(c, errors.Wrapf(domain.ErrNotFound, "subscriber %s", id))
	}
	logOpr(c, "delete_subscriber", "delete subscriber "+id)
	return ok(c, map[string]interface{}{"deleted": true})
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func updateSubscriberStatus(c echo.Context) error {
	id, err := pathIdentity(c)
	if err != nil {
		return failErr(c, err)
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if err := validate(c, &req); err != nil {
		return failErr(c, err)
	}
	st, err := domain.ParseStatus(req.Status)
	if err != nil {
		return failErr(c, err)
	}
	repo := GetApp(c).Subscribers()
	if err := repo.SetStatus(c.Request().Context(), id, st); err != nil {
		return failErr(c, err)
	}
	logOpr(c, "update_subscriber_status", fmt.Sprintf("set subscriber %s status=%s", id, st))
	sub, err := repo.Get(c.Request().Context(), id)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, sub)
}

type templateRequest struct {
	MessageTemplate string `json:"message_template" validate:"max=4096"`
}

// updateSubscriberTemplate sets the greeting template. An empty template
// falls back to the configured default.
func updateSubscriberTemplate(c echo.Context) error {
	id, err := pathIdentity(c)
	if err != nil {
		return failErr(c, err)
	}
	var req templateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if err := validate(c, &req); err != nil {
		return failErr(c, err)
	}
	repo := GetApp(c).Subscribers()
	ctx := c.Request().Context()
	if _, err := repo.Get(ctx, id); err != nil {
		return failErr(c, err)
	}
	sub, err := repo.Upsert(ctx, id, repository.SubscriberPatch{MessageTemplate: &req.MessageTemplate})
	if err != nil {
		return failErr(c, err)
	}
	logOpr(c, "update_subscriber_template", "update template of subscriber "+id)
	return ok(c, sub)
}

// regenerateSubscriberAPIKey issues a new webhook key. The key is only
// returned here; later reads never expose it.
func regenerateSubscriberAPIKey(c echo.Context) error {
	id, err := pathIdentity(c)
	if err != nil {
		return failErr(c, err)
	}
	repo := GetApp(c).Subscribers()
	ctx := c.Request().Context()
	if _, err := repo.Get(ctx, id); err != nil {
		return failErr(c, err)
	}
	key := random.String(apiKeyLength, random.Alphanumeric)
	if _, err := repo.Upsert(ctx, id, repository.SubscriberPatch{APIKey: &key}); err != nil {
		return failErr(c, err)
	}
	logOpr(c, "regenerate_api_key", "regenerate api key of subscriber "+id)
	return ok(c, map[string]interface{}{"identity": id, "api_key": key})
}

func sweepExpiredSubscribers(c echo.Context) error {
	n, err := GetApp(c).SweepExpired()
	if err != nil {
		return failErr(c, err)
	}
	logOpr(c, "sweep_expired", fmt.Sprintf("expired %d subscribers", n))
	return ok(c, map[string]interface{}{"expired": n})
}
