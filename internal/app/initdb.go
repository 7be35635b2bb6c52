package app

import (
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const defaultAdminPassword = "wanotify"

// checkAdmin makes sure an admin password hash is configured, falling back
// to the hash of the default password.
func (a *Application) checkAdmin() {
	web := &a.appConfig.Web
	if web.AdminUser == "" {
		web.AdminUser = "admin"
	}
	if web.AdminPassword != "" {
		if _, err := bcrypt.Cost([]byte(web.AdminPassword)); err == nil {
			return
		}
		zap.L().Warn("admin password is not a bcrypt hash, hashing it", zap.String("namespace", "app"))
		hash, err := bcrypt.GenerateFromPassword([]byte(web.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			zap.L().Error("failed to hash admin password", zap.Error(err))
			return
		}
		web.AdminPassword = string(hash)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		zap.L().Error("failed to hash default admin password", zap.Error(err))
		return
	}
	web.AdminPassword = string(hash)
	zap.L().Warn("using default admin password, set web.admin_password",
		zap.String("namespace", "app"),
		zap.String("username", web.AdminUser))
}
