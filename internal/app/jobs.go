package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	spec := a.appConfig.Jobs.ExpirySweep
	if spec == "" {
		spec = "@hourly"
	}
	_, err = a.sched.AddFunc(spec, a.SchedExpirySweepTask)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", a.SchedClearOprLogTask)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SweepExpired expires every lapsed subscription now
func (a *Application) SweepExpired() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return a.subscribers.ExpireLapsed(ctx, time.Now())
}

// SchedExpirySweepTask complements the dispatcher's on-contact expiry for
// subscribers who never write in.
func (a *Application) SchedExpirySweepTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	n, err := a.SweepExpired()
	if err != nil {
		zap.L().Error("expiry sweep failed", zap.String("namespace", "jobs"), zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Info("expiry sweep expired subscriptions", zap.String("namespace", "jobs"), zap.Int64("count", n))
	}
}

func (a *Application) SchedClearOprLogTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	days := a.appConfig.Jobs.OprLogKeepDays
	if days <= 0 {
		days = 365
	}
	if _, err := a.oprLogs.DeleteOlderThan(context.Background(), days); err != nil {
		zap.L().Error("clear opr log failed", zap.String("namespace", "jobs"), zap.Error(err))
	}
}
