package app

import (
	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/wanotify/config"
	"github.com/talkincode/wanotify/internal/dispatch"
	"github.com/talkincode/wanotify/internal/notify"
	"github.com/talkincode/wanotify/internal/repository"
	"github.com/talkincode/wanotify/internal/whatsapp"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// RepositoryProvider provides the gorm backed stores
type RepositoryProvider interface {
	Subscribers() repository.SubscriberRepository
	Metrics() repository.MetricRepository
	OprLogs() repository.OprLogRepository
	SessionLogs() repository.SessionLogRepository
}

// SessionProvider provides the whatsapp session and the services built on it
type SessionProvider interface {
	Session() *whatsapp.Manager
	Dispatcher() *dispatch.Dispatcher
	Notifier() *notify.Notifier
	Bus() EventBus.Bus
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SchedulerProvider
	RepositoryProvider
	SessionProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
	// SweepExpired expires every lapsed subscription now
	SweepExpired() (int64, error)
}
