package followup

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

// Kind identifies a follow-up task.
type Kind string

const (
	KindReminder     Kind = "reminder"
	KindNoConversion Kind = "no_conversion"
	KindDay6         Kind = "day6"
	KindDay7         Kind = "day7"
)

// Timer is the subset of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// TimerFunc starts a timer that calls fn once after d.
type TimerFunc func(d time.Duration, fn func()) Timer

// AfterFunc is the production TimerFunc.
func AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Handle identifies a scheduled task. The zero Handle refers to nothing.
type Handle struct {
	ID     string
	UserID string
	Kind   Kind
}

// IsZero reports whether h refers to no task.
func (h Handle) IsZero() bool {
	return h.ID == ""
}

// TimerInfo describes a pending task.
type TimerInfo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Kind        Kind      `json:"kind"`
	ScheduledAt time.Time `json:"scheduled_at"`
	FireAt      time.Time `json:"fire_at"`
}

type task struct {
	info  TimerInfo
	timer Timer
}

// Scheduler runs one-shot delayed actions that can be cancelled until they fire.
type Scheduler struct {
	mu       sync.Mutex
	tasks    map[string]*task
	newTimer TimerFunc
	now      func() time.Time
	stopped  bool
	logger   *logging.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTimerFunc swaps the timer implementation.
func WithTimerFunc(fn TimerFunc) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.newTimer = fn
		}
	}
}

// WithClock swaps the clock used for TimerInfo timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func NewScheduler(logger *logging.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Scheduler{
		tasks:    make(map[string]*task),
		newTimer: AfterFunc,
		now:      time.Now,
		logger:   logger.Named("followup"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule runs action once after delay unless cancelled first.
// After Stop it returns the zero Handle and schedules nothing.
func (s *Scheduler) Schedule(userID string, kind Kind, delay time.Duration, action func()) Handle {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Warn("followup: schedule after stop ignored", "user_id", userID, "kind", kind)
		return Handle{}
	}
	now := s.now()
	h := Handle{ID: uuid.NewString(), UserID: userID, Kind: kind}
	t := &task{info: TimerInfo{
		ID:          h.ID,
		UserID:      userID,
		Kind:        kind,
		ScheduledAt: now,
		FireAt:      now.Add(delay),
	}}
	s.tasks[h.ID] = t
	s.mu.Unlock()

	// The timer may fire before it is recorded; fire only consults the task map.
	timer := s.newTimer(delay, func() { s.fire(h, action) })
	s.mu.Lock()
	t.timer = timer
	s.mu.Unlock()

	s.logger.Debug("followup: scheduled", "id", h.ID, "user_id", userID, "kind", kind, "delay", delay.String())
	return h
}

func (s *Scheduler) fire(h Handle, action func()) {
	s.mu.Lock()
	_, ok := s.tasks[h.ID]
	delete(s.tasks, h.ID)
	s.mu.Unlock()
	if !ok {
		// cancelled between the timer firing and this callback
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("followup: task panicked", "id", h.ID, "user_id", h.UserID, "kind", h.Kind, "panic", r)
		}
	}()
	action()
}

// Cancel prevents a pending task from firing. It reports false when the task
// already fired, was cancelled, or never existed. A running task is not interrupted.
func (s *Scheduler) Cancel(h Handle) bool {
	if h.IsZero() {
		return false
	}
	s.mu.Lock()
	t, ok := s.tasks[h.ID]
	delete(s.tasks, h.ID)
	var timer Timer
	if ok {
		timer = t.timer
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	if timer != nil {
		timer.Stop()
	}
	s.logger.Debug("followup: cancelled", "id", h.ID, "user_id", h.UserID, "kind", h.Kind)
	return true
}

// Pending reports whether h is still waiting to fire.
func (s *Scheduler) Pending(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[h.ID]
	return ok
}

// ListActive returns pending tasks ordered by fire time.
func (s *Scheduler) ListActive() []TimerInfo {
	s.mu.Lock()
	out := make([]TimerInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.info)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// Stop cancels every pending task and refuses new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = make(map[string]*task)
	s.stopped = true
	timers := make([]Timer, 0, len(tasks))
	for _, t := range tasks {
		if t.timer != nil {
			timers = append(timers, t.timer)
		}
	}
	s.mu.Unlock()

	for _, timer := range timers {
		timer.Stop()
	}
	s.logger.Info("followup: scheduler stopped", "cancelled", len(tasks))
}
