package adminapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wanotify/internal/webserver"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func registerAuthRoutes() {
	webserver.PublicPOST("/auth/login", postLogin)
	webserver.ApiGET("/auth/me", getCurrentAdmin)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func postLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if err := validate(c, &req); err != nil {
		return failErr(c, err)
	}

	web := GetApp(c).Config().Web
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(web.AdminUser)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(web.AdminPassword), []byte(req.Password))
	if !userOK || passErr != nil {
		zap.L().Warn("adminapi: login failed",
			zap.String("namespace", "adminapi"),
			zap.String("username", req.Username),
			zap.String("ip", c.RealIP()))
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid username or password", nil)
	}

	ttl := GetApp(c).Config().TokenTTL()
	token, err := webserver.IssueToken(web.Secret, web.AdminUser, ttl)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, map[string]interface{}{
		"token":      token,
		"expires_in": int64(ttl.Seconds()),
	})
}

func getCurrentAdmin(c echo.Context) error {
	return ok(c, map[string]interface{}{"username": webserver.CurrentAdmin(c)})
}
