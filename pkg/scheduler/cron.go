package scheduler

import (
	"context"
	"sync"
	"time"

	"MoodCapture/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job 后台任务；ctx 在调度器停止时取消
type Job interface{ Run(ctx context.Context) }

type FuncJob func(ctx context.Context)

func (f FuncJob) Run(ctx context.Context) { f(ctx) }

// zapCronLogger 把 cron 内部日志（panic、跳过的重叠执行）接到全局 zap
type zapCronLogger struct{}

func (zapCronLogger) Info(msg string, kv ...interface{}) {
	logger.Lg.Sugar().Debugw("cron: "+msg, kv...)
}

func (zapCronLogger) Error(err error, msg string, kv ...interface{}) {
	logger.Lg.Sugar().Errorw("cron: "+msg, append(kv, "error", err)...)
}

// Cron 运行清理与备份任务。同一任务不会重叠执行
type Cron struct {
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	stop   sync.Once
}

// NewCron loc 为 nil 时使用本地时区
func NewCron(loc *time.Location) *Cron {
	if loc == nil {
		loc = time.Local
	}
	var l zapCronLogger
	ctx, cancel := context.WithCancel(context.Background())
	return &Cron{
		c: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop 可重复调用，返回前等待正在执行的任务结束
func (cr *Cron) Stop() {
	cr.stop.Do(func() {
		cr.cancel()
		<-cr.c.Stop().Done()
	})
}

func (cr *Cron) Add(name, expr string, job Job) (cron.EntryID, error) {
	return cr.c.AddFunc(expr, func() {
		began := time.Now()
		job.Run(cr.ctx)
		logger.Debug("job done", zap.String("job", name), zap.Duration("took", time.Since(began)))
	})
}

func (cr *Cron) AddWithCtx(name, expr string, fn func(ctx context.Context)) (cron.EntryID, error) {
	return cr.Add(name, expr, FuncJob(fn))
}

func (cr *Cron) Entries() []cron.Entry { return cr.c.Entries() }
