package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"needle/internal/config"
	"needle/internal/logging"
	"needle/internal/services"
)

// Task is one periodic loop run by the Manager.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Manager runs the periodic rss, download and search loops.
type Manager struct {
	logger *slog.Logger
	retry  time.Duration
	tasks  []Task
	now    func() time.Time

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	status  map[string]*TaskStatus
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock replaces the wall clock used for status timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager builds the loops configured in cfg over s. Loops with a zero
// interval are disabled.
func NewManager(cfg *config.Config, s *Services, logger *slog.Logger, opts ...ManagerOption) *Manager {
	rss := NewRSSSync(s, logger)
	searcher := NewSearcher(s, logger)
	tasks := []Task{
		{
			Name:     "rss",
			Interval: seconds(cfg.Workflow.RSSSyncInterval),
			Run: func(ctx context.Context) error {
				_, err := rss.Run(ctx)
				return err
			},
		},
		{
			Name:     "downloads",
			Interval: seconds(cfg.Workflow.DownloadPollInterval),
			Run: func(ctx context.Context) error {
				_, err := s.Monitor.Poll(ctx)
				return err
			},
		},
		{
			Name:     "search",
			Interval: seconds(cfg.Workflow.SearchInterval),
			Run: func(ctx context.Context) error {
				_, err := searcher.Run(ctx)
				return err
			},
		},
	}
	return NewManagerWithTasks(tasks, seconds(cfg.Workflow.ErrorRetryInterval), logger, opts...)
}

// NewManagerWithTasks constructs a manager over explicit tasks. retry is the
// first delay after a transient failure.
func NewManagerWithTasks(tasks []Task, retry time.Duration, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		logger: logging.NewComponentLogger(logger, "workflow"),
		retry:  retry,
		now:    func() time.Time { return time.Now().UTC() },
		status: make(map[string]*TaskStatus),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, task := range tasks {
		if task.Interval <= 0 || task.Run == nil {
			m.logger.Info("loop disabled", logging.String("loop", task.Name))
			continue
		}
		m.tasks = append(m.tasks, task)
		m.status[task.Name] = &TaskStatus{Name: task.Name, Interval: task.Interval}
	}
	return m
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Start begins running every enabled loop in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.tasks) == 0 {
		m.mu.Unlock()
		return errors.New("workflow loops not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(len(m.tasks))
	m.mu.Unlock()

	for _, task := range m.tasks {
		go m.runLoop(runCtx, task)
	}
	return nil
}

// Stop terminates the loops and waits for in-flight runs to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// RunTask runs the named loop once, outside its schedule.
func (m *Manager) RunTask(ctx context.Context, name string) error {
	for _, task := range m.tasks {
		if task.Name == name {
			return m.runOnce(ctx, task)
		}
	}
	return fmt.Errorf("unknown or disabled loop %q", name)
}

func (m *Manager) runLoop(ctx context.Context, task Task) {
	defer m.wg.Done()
	failures := 0
	for {
		err := m.runOnce(ctx, task)
		if ctx.Err() != nil {
			return
		}
		delay := task.Interval
		switch {
		case err == nil:
			failures = 0
		case services.IsTransient(err):
			failures++
			delay = backoff(m.retry, failures, task.Interval)
		default:
			failures = 0
		}
		m.setNextRun(task.Name, m.now().Add(delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (m *Manager) runOnce(ctx context.Context, task Task) error {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	ctx = services.WithStage(ctx, task.Name)
	logger := logging.WithContext(ctx, m.logger)

	started := m.now()
	logger.Debug("loop run started")
	err := task.Run(ctx)
	m.record(task.Name, started, err)
	if err == nil || errors.Is(err, context.Canceled) {
		if err == nil {
			logger.Debug("loop run finished", logging.Duration("elapsed", m.now().Sub(started)))
		}
		return err
	}

	if services.IsTransient(err) {
		logging.WarnWithContext(logger, "loop run failed", "loop_failed_transient",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the loop retries with backoff"),
		)
		return err
	}
	logging.ErrorWithContext(logger, "loop run failed", "loop_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check indexer, download client and library configuration"),
	)
	return err
}

// backoff doubles base for each consecutive failure, capped at limit.
func backoff(base time.Duration, failures int, limit time.Duration) time.Duration {
	if base <= 0 || base >= limit {
		return limit
	}
	delay := base
	for range failures - 1 {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	return delay
}
