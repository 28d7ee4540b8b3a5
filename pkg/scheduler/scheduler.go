// Package scheduler 基于 gocron/v2 的命名任务调度，记录每个任务最近一次的运行结果.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yeisme/skelvault/pkg/log"
)

// ErrJobNotFound 任务名或 id 未注册.
var ErrJobNotFound = errors.New("scheduler: job not found")

// JobStatus 任务最近一次运行的状态.
type JobStatus string

const (
	StatusScheduled JobStatus = "scheduled"
	StatusRunning   JobStatus = "running"
	StatusError     JobStatus = "error"
)

// Job 任务体，返回的错误记录到 JobInfo.Error.
type Job func(ctx context.Context) error

// JobInfo 任务快照.
type JobInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Schedule    string    `json:"schedule"`
	NextRun     time.Time `json:"next_run"`
	LastRun     time.Time `json:"last_run"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	Runs        int64     `json:"runs"`
	Failures    int64     `json:"failures"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
}

type entry struct {
	job  gocron.Job
	info JobInfo
}

// Scheduler 命名任务调度器，任务名唯一.
type Scheduler struct {
	cron   gocron.Scheduler
	logger zerolog.Logger

	mu     sync.RWMutex
	byName map[string]*entry
	byID   map[uuid.UUID]string
}

// NewScheduler 创建调度器，需调用 Start 后任务才会运行.
func NewScheduler() (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create gocron scheduler: %w", err)
	}

	return &Scheduler{
		cron:   cron,
		logger: log.Component("scheduler"),
		byName: map[string]*entry{},
		byID:   map[uuid.UUID]string{},
	}, nil
}

// AddInterval 每隔 every 运行一次，上一轮未结束时顺延.
func (s *Scheduler) AddInterval(ctx context.Context, name string, every time.Duration, job Job) error {
	if every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}

	return s.add(ctx, name, "@every "+every.String(), gocron.DurationJob(every), job,
		gocron.WithSingletonMode(gocron.LimitModeReschedule))
}

// AddCron 按 cron 表达式（5 段）运行.
func (s *Scheduler) AddCron(ctx context.Context, name, expr string, job Job) error {
	return s.add(ctx, name, expr, gocron.CronJob(expr, false), job,
		gocron.WithSingletonMode(gocron.LimitModeReschedule))
}

func (s *Scheduler) add(ctx context.Context, name, schedule string, def gocron.JobDefinition, job Job,
	opts ...gocron.JobOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[name]; ok {
		return fmt.Errorf("job %s already exists", name)
	}

	j, err := s.cron.NewJob(def, gocron.NewTask(s.wrap(name, job), ctx), append(opts, gocron.WithName(name))...)
	if err != nil {
		return fmt.Errorf("add job %s: %w", name, err)
	}

	s.byName[name] = &entry{job: j, info: JobInfo{
		ID:       j.ID().String(),
		Name:     name,
		Schedule: schedule,
		Status:   StatusScheduled,
	}}
	s.byID[j.ID()] = name

	s.logger.Info().Str("job", name).Str("schedule", schedule).Msg("job added")

	return nil
}

// wrap 记录运行结果，panic 视为失败.
func (s *Scheduler) wrap(name string, job Job) func(ctx context.Context) {
	return func(ctx context.Context) {
		s.record(name, func(i *JobInfo) {
			i.Status = StatusRunning
			i.LastRun = time.Now()
			i.Runs++
		})

		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
			}()

			return job(ctx)
		}()

		if err != nil {
			s.logger.Error().Err(err).Str("job", name).Msg("job failed")
		}

		s.record(name, func(i *JobInfo) {
			if err != nil {
				i.Status = StatusError
				i.Error = err.Error()
				i.Failures++

				return
			}

			i.Status = StatusScheduled
			i.Error = ""
			i.LastSuccess = time.Now()
		})
	}
}

func (s *Scheduler) record(name string, fn func(*JobInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.byName[name]; ok {
		fn(&e.info)
	}
}

// snapshot 读取时补上 gocron 维护的下次运行时间，调用方持有读锁.
func (e *entry) snapshot() JobInfo {
	info := e.info
	if next, err := e.job.NextRun(); err == nil {
		info.NextRun = next
	}

	return info
}

// Get 返回任务快照.
func (s *Scheduler) Get(name string) (JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byName[name]
	if !ok {
		return JobInfo{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	return e.snapshot(), nil
}

// Jobs 按名称排序的全部任务快照.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.byName))
	for _, e := range s.byName {
		out = append(out, e.snapshot())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// RunNow 立即运行一次，不影响原有计划.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	e, ok := s.byName[name]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	return e.job.RunNow()
}

// Remove 按名称移除任务.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	if err := s.cron.RemoveJob(e.job.ID()); err != nil {
		return err
	}

	delete(s.byName, name)
	delete(s.byID, e.job.ID())

	s.logger.Info().Str("job", name).Msg("job removed")

	return nil
}

// RemoveByID 按 gocron 任务 id 移除.
func (s *Scheduler) RemoveByID(id uuid.UUID) error {
	s.mu.RLock()
	name, ok := s.byID[id]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	return s.Remove(name)
}

// Start 开始调度.
func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.Jobs())).Msg("scheduler started")
	s.cron.Start()
}

// StopJobs 暂停所有任务，Start 可恢复.
func (s *Scheduler) StopJobs() error {
	return s.cron.StopJobs()
}

// JobsWaitingInQueue 等待执行的任务数.
func (s *Scheduler) JobsWaitingInQueue() int {
	return s.cron.JobsWaitingInQueue()
}

// Shutdown 停止调度并等待运行中的任务结束.
func (s *Scheduler) Shutdown() error {
	return s.cron.Shutdown()
}
