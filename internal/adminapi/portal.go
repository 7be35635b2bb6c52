package adminapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/talkincode/wanotify/internal/domain"
	"github.com/talkincode/wanotify/internal/repository"
	"github.com/talkincode/wanotify/internal/webserver"
	"github.com/talkincode/wanotify/internal/whatsapp"
)

// The portal lets a subscriber see its own record and edit its template.
// It authenticates with the subscriber's webhook api key.
func registerPortalRoutes() {
	webserver.PortalOpenPOST("/login", postPortalLogin)
	webserver.PortalOpenPOST("/logout", postPortalLogout)
	webserver.PortalGET("/me", getPortalMe)
	webserver.PortalPUT("/template", putPortalTemplate)
}

type portalLoginRequest struct {
	Phone  string `json:"phone" validate:"required"`
	APIKey string `json:"api_key" validate:"required"`
}

func postPortalLogin(c echo.Context) error {
	var req portalLoginRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if err := validate(c, &req); err != nil {
		return failErr(c, err)
	}
	id, err := domain.NormalizeIdentity(req.Phone)
	if err != nil {
		return failErr(c, err)
	}
	sub, err := GetApp(c).Subscribers().Get(c.Request().Context(), id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return failErr(c, err)
	}
	if sub == nil || sub.APIKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(sub.APIKey)) != 1 {
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid phone or api key", nil)
	}
	if err := webserver.StartPortalSession(c, id); err != nil {
		return failErr(c, err)
	}
	return ok(c, sub)
}

func postPortalLogout(c echo.Context) error {
	if err := webserver.EndPortalSession(c); err != nil {
		return failErr(c, err)
	}
	return ok(c, map[string]interface{}{"logged_out": true})
}

func getPortalMe(c echo.Context) error {
	appCtx := GetApp(c)
	id := webserver.PortalIdentity(c)
	sub, err := appCtx.Subscribers().Get(c.Request().Context(), id)
	if err != nil {
		return failErr(c, err)
	}
	snap := appCtx.Session().Snapshot()
	sent, err := appCtx.Metrics().Get(c.Request().Context(), domain.MetricMessagesSent)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, map[string]interface{}{
		"subscriber": sub,
		"webhook":    c.Scheme() + "://" + c.Request().Host + "/api/webhook/order?userPhone=" + id,
		"bot": map[string]interface{}{
			"connected":          snap.Connectivity == whatsapp.StateConnected,
			"qrAvailable":        snap.PairingChallenge != "",
			"uptimeSeconds":      snap.UptimeSeconds,
			"globalMessagesSent": sent,
		},
	})
}

func putPortalTemplate(c echo.Context) error {
	var req templateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if err := validate(c, &req); err != nil {
		return failErr(c, err)
	}
	id := webserver.PortalIdentity(c)
	repo := GetApp(c).Subscribers()
	if _, err := repo.Get(c.Request().Context(), id); err != nil {
		return failErr(c, err)
	}
	sub, err := repo.Upsert(c.Request().Context(), id, repository.SubscriberPatch{MessageTemplate: &req.MessageTemplate})
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, sub)
}
