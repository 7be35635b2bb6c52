package adminapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wanotify/internal/domain"
	"github.com/talkincode/wanotify/internal/whatsapp"
	"github.com/talkincode/wanotify/internal/webserver"
	"go.uber.org/zap"
)

func registerWhatsAppRoutes() {
	webserver.PublicGET("/status", getStatus)
	webserver.ApiGET("/qr", getQR)
	webserver.ApiPOST("/whatsapp/connect", postWhatsAppConnect)
	webserver.ApiGET("/whatsapp/sessions", listSessionLogs)
}

// getStatus reports the session state and the process-wide send counter.
func getStatus(c echo.Context) error {
	appCtx := GetApp(c)
	snap := appCtx.Session().Snapshot()
	sent, err := appCtx.Metrics().Get(c.Request().Context(), domain.MetricMessagesSent)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, map[string]interface{}{
		"connected":    snap.Connectivity == whatsapp.StateConnected,
		"connectivity": snap.Connectivity,
		"qrAvailable":  snap.PairingChallenge != "",
		"startedAt":    snap.StartedAt,
		"uptime":       snap.UptimeSeconds,
		"messagesSent": sent,
	})
}

// getQR returns the raw pairing challenge. Clients render the QR image
// themselves; 204 means no pairing is in progress.
func getQR(c echo.Context) error {
	code := GetApp(c).Session().Snapshot().PairingChallenge
	if code == "" {
		return c.NoContent(http.StatusNoContent)
	}
	return c.String(http.StatusOK, code)
}

// postWhatsAppConnect triggers a connect attempt in the background. From
// logged_out it starts a fresh pairing whose challenge shows up on GET /qr.
func postWhatsAppConnect(c echo.Context) error {
	session := GetApp(c).Session()
	go func() {
		if err := session.Connect(context.Background()); err != nil {
			zap.L().Warn("adminapi: whatsapp connect failed", zap.String("namespace", "adminapi"), zap.Error(err))
		}
	}()
	zap.L().Info("adminapi: triggered whatsapp connect", zap.String("namespace", "adminapi"))
	logOpr(c, "whatsapp_connect", "trigger whatsapp connect")
	return ok(c, map[string]interface{}{"started": true})
}

func listSessionLogs(c echo.Context) error {
	limit := 50
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 && n <= 500 {
		limit = n
	}
	logs, err := GetApp(c).SessionLogs().Recent(c.Request().Context(), limit)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, logs)
}
