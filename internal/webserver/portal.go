package webserver

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const (
	portalSessionName = "wanotify_portal"
	portalIdentityKey = "identity"
)

func newSessionStore(secret string, secure bool) sessions.Store {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/api/portal",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// StartPortalSession binds the subscriber identity to the caller's cookie.
func StartPortalSession(c echo.Context, identity string) error {
	sess, err := session.Get(portalSessionName, c)
	if err != nil {
		return errors.Wrap(err, "get portal session")
	}
	sess.Values[portalIdentityKey] = identity
	return sess.Save(c.Request(), c.Response())
}

// EndPortalSession expires the portal cookie.
func EndPortalSession(c echo.Context) error {
	sess, err := session.Get(portalSessionName, c)
	if err != nil {
		return errors.Wrap(err, "get portal session")
	}
	delete(sess.Values, portalIdentityKey)
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// PortalIdentity returns the subscriber of the current portal session, or "".
func PortalIdentity(c echo.Context) string {
	sess, err := session.Get(portalSessionName, c)
	if err != nil {
		return ""
	}
	id, _ := sess.Values[portalIdentityKey].(string)
	return id
}

func requirePortal(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if PortalIdentity(c) == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "portal login required")
		}
		return next(c)
	}
}
