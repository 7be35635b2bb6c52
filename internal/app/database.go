package app

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/wanotify/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// getDatabase opens the configured database. Relative sqlite names live in
// the workdir data directory.
func getDatabase(cfg config.DBConfig, workdir string) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if cfg.Debug {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(cfg.Type) {
	case "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
		db, err = gorm.Open(postgres.Open(dsn), gcfg)
	default:
		name := cfg.Name
		if name != ":memory:" && !path.IsAbs(name) {
			dir := path.Join(workdir, "data")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "create data dir")
			}
			name = path.Join(dir, name)
		}
		// whatsmeow's store needs foreign keys on every connection
		db, err = gorm.Open(sqlite.Open("file:"+name+"?_foreign_keys=on&_busy_timeout=5000"), gcfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", cfg.Type)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}
	if isSqlite(cfg.Type) {
		// a single writer avoids SQLITE_BUSY under concurrent counters
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
		sqlDB.SetMaxIdleConns(cfg.IdleConn)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	zap.L().Info("database opened", zap.String("namespace", "app"), zap.String("type", cfg.Type))
	return db, nil
}

func isSqlite(dbType string) bool {
	switch strings.ToLower(dbType) {
	case "postgres", "postgresql":
		return false
	}
	return true
}
