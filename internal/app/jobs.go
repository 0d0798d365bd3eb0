package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/talkincode/supplychain/internal/chain"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Job names
const (
	JobSyncStores      = "sync_stores"
	JobClearExpireData = "clear_expire_data"
)

// ErrJobNotFound is returned by RunJob for an unknown job name
var ErrJobNotFound = errors.New("job not found")

// JobInfo describes one scheduled job
type JobInfo struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next,omitempty"`
	Prev time.Time `json:"prev,omitempty"`
}

type scheduledJob struct {
	spec string
	run  func()
	id   cron.EntryID
}

func (a *Application) jobTable() map[string]*scheduledJob {
	spec := a.appConfig.Chain.SyncInterval
	if spec == "" {
		spec = "@every 5m"
	}
	return map[string]*scheduledJob{
		JobSyncStores:      {spec: spec, run: a.SchedSyncStoresTask},
		JobClearExpireData: {spec: "@daily", run: a.SchedClearExpireData},
	}
}

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	if loc == nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))
	a.jobs = a.jobTable()
	for name, job := range a.jobs {
		id, err := a.sched.AddFunc(job.spec, job.run)
		if err != nil {
			zap.S().Errorf("init job %s error %s", name, err.Error())
			continue
		}
		job.id = id
	}
	a.sched.Start()
}

// Jobs lists the scheduled jobs by name
func (a *Application) Jobs() []JobInfo {
	if a.jobs == nil {
		a.jobs = a.jobTable()
	}
	out := make([]JobInfo, 0, len(a.jobs))
	for name, job := range a.jobs {
		info := JobInfo{Name: name, Spec: job.spec}
		if a.sched != nil && job.id != 0 {
			entry := a.sched.Entry(job.id)
			info.Next, info.Prev = entry.Next, entry.Prev
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunJob runs a scheduled job immediately in the calling goroutine
func (a *Application) RunJob(name string) error {
	if a.jobs == nil {
		a.jobs = a.jobTable()
	}
	job, ok := a.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	job.run()
	return nil
}

// SyncStores imports the ledger stores of the configured account that are unknown locally
func (a *Application) SyncStores(ctx context.Context) (int, error) {
	owner := a.tracker.Owner()
	if owner == "" {
		return 0, chain.ErrNoSigner
	}
	stores, err := a.gateway.LoadStoresFromChain(ctx, owner)
	if err != nil {
		return 0, err
	}
	return a.inventory.ImportStores(ctx, stores)
}

// SchedSyncStoresTask store sync from the ledger
func (a *Application) SchedSyncStoresTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	if a.appConfig.Chain.PackageID == "" || a.tracker.Owner() == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := a.SyncStores(ctx)
	if err != nil {
		zap.L().Warn("store sync failed", zap.Error(err), zap.String("namespace", "chain"))
		return
	}
	if n > 0 {
		zap.L().Info("store sync imported stores", zap.Int("count", n), zap.String("namespace", "chain"))
	}
}

// SchedClearExpireData purges stale escrow placements and old audit logs
func (a *Application) SchedClearExpireData() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	ttl := a.appConfig.Escrow.MetadataTTLDays
	if ttl <= 0 {
		ttl = 30
	}
	removed, err := a.meta.PurgeOlderThan(a.clock.Now().AddDate(0, 0, -ttl))
	if err != nil {
		zap.L().Error("escrow metadata purge failed", zap.Error(err), zap.String("namespace", "escrow"))
	} else if removed > 0 {
		zap.L().Info("escrow metadata purged", zap.Int("removed", removed), zap.String("namespace", "escrow"))
	}

	days := a.appConfig.Escrow.LogKeepDays
	if days <= 0 {
		days = 365
	}
	if err := a.orderLogs.DeleteOlderThan(context.Background(), days); err != nil {
		zap.L().Error("escrow log purge failed", zap.Error(err), zap.String("namespace", "escrow"))
	}
}
