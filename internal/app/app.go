package app

import (
	"context"
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/wanotify/config"
	"github.com/talkincode/wanotify/internal/dispatch"
	"github.com/talkincode/wanotify/internal/domain"
	"github.com/talkincode/wanotify/internal/notify"
	"github.com/talkincode/wanotify/internal/render"
	"github.com/talkincode/wanotify/internal/repository"
	"github.com/talkincode/wanotify/internal/whatsapp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

type Application struct {
	appConfig   *config.AppConfig
	gormDB      *gorm.DB
	sched       *cron.Cron
	bus         EventBus.Bus
	subscribers repository.SubscriberRepository
	metrics     repository.MetricRepository
	oprLogs     repository.OprLogRepository
	sessionLogs repository.SessionLogRepository
	session     *whatsapp.Manager
	dispatcher  *dispatch.Dispatcher
	notifier    *notify.Notifier
}

// Ensure Application implements all interfaces
var (
	_ DBProvider         = (*Application)(nil)
	_ ConfigProvider     = (*Application)(nil)
	_ SchedulerProvider  = (*Application)(nil)
	_ RepositoryProvider = (*Application)(nil)
	_ SessionProvider    = (*Application)(nil)
	_ AppContext         = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig, bus: EventBus.New()}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

// Init sets up logging, the database and the whatsmeow backed session.
func (a *Application) Init(ctx context.Context) error {
	cfg := a.appConfig
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	initLogger(cfg)

	a.gormDB, err = getDatabase(cfg.Database, cfg.System.Workdir)
	if err != nil {
		return err
	}
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}
	a.checkAdmin()

	sqlDB, err := a.gormDB.DB()
	if err != nil {
		return errors.Wrap(err, "get sql.DB")
	}
	client, err := whatsapp.NewMeowClient(ctx, sqlDB, whatsapp.SQLDialect(cfg.Database.Type))
	if err != nil {
		return err
	}
	if err := a.Wire(client); err != nil {
		return err
	}
	a.initJob()
	return nil
}

func initLogger(cfg *config.AppConfig) {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)
}

// Wire builds the stores and the session services on top of the current
// database and the given network client.
func (a *Application) Wire(client whatsapp.Client) error {
	cfg := a.appConfig
	a.subscribers = repository.NewGormSubscriberRepository(a.gormDB)
	a.metrics = repository.NewGormMetricRepository(a.gormDB)
	a.oprLogs = repository.NewGormOprLogRepository(a.gormDB)
	a.sessionLogs = repository.NewGormSessionLogRepository(a.gormDB)

	a.session = whatsapp.NewManager(client, whatsapp.Options{
		ReconnectDelay: cfg.ReconnectDelay(),
		SendTimeout:    cfg.SendTimeout(),
		InboundBuffer:  cfg.WhatsApp.InboundBuffer,
		Bus:            a.bus,
	})
	if err := a.bus.SubscribeAsync(whatsapp.TopicState, a.recordSessionState, true); err != nil {
		return errors.Wrap(err, "subscribe session state")
	}

	var err error
	a.dispatcher, err = dispatch.New(a.subscribers, a.metrics, a.session, dispatch.Messages{
		DefaultTemplate: cfg.Messages.DefaultTemplate,
		NotRegistered:   cfg.Messages.NotRegistered,
		Inactive:        cfg.Messages.Inactive,
	}, cfg.WhatsApp.Workers)
	if err != nil {
		return err
	}

	labels := cfg.Messages.OrderLabels
	a.notifier, err = notify.New(a.subscribers, a.metrics, a.session, notify.Config{
		OrderTemplate: cfg.Messages.OrderTemplate,
		Labels: render.OrderLabels{
			OrderID:  labels.OrderID,
			Customer: labels.Customer,
			Items:    labels.Items,
			Total:    labels.Total,
		},
		NodeID: 1,
	})
	return err
}

// recordSessionState keeps a history of connectivity changes.
func (a *Application) recordSessionState(s whatsapp.Snapshot) {
	err := a.sessionLogs.Create(context.Background(), &domain.WhatsAppSessionLog{
		Connectivity: string(s.Connectivity),
		HasChallenge: s.PairingChallenge != "",
	})
	if err != nil {
		zap.L().Warn("failed to record session state", zap.String("namespace", "app"), zap.Error(err))
	}
}

// Run drives the session and the inbound dispatcher until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	go a.dispatcher.Run(ctx, a.session.Messages())
	return a.session.Start(ctx)
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	return db.Migrator().AutoMigrate(domain.Tables...)
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func (a *Application) Subscribers() repository.SubscriberRepository { return a.subscribers }

func (a *Application) Metrics() repository.MetricRepository { return a.metrics }

func (a *Application) OprLogs() repository.OprLogRepository { return a.oprLogs }

func (a *Application) SessionLogs() repository.SessionLogRepository { return a.sessionLogs }

func (a *Application) Session() *whatsapp.Manager { return a.session }

func (a *Application) Dispatcher() *dispatch.Dispatcher { return a.dispatcher }

func (a *Application) Notifier() *notify.Notifier { return a.notifier }

func (a *Application) Bus() EventBus.Bus { return a.bus }

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.session != nil {
		a.session.Close()
	}
	a.bus.WaitAsync()
	_ = zap.L().Sync()
}
