// Package engagement keeps per-conversation follow-up timers: an inactivity
// reminder that is reset on every user turn, and a two-stage loyalty
// sequence (check-in, then gift) that a newer sequence supersedes.
package engagement

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"lunabot/internal/catalog"
	"lunabot/internal/metrics"
)

const (
	DefaultInactivityDelay = 30 * time.Minute
	DefaultCheckInDelay    = 6 * time.Hour
	DefaultGiftDelay       = 24 * time.Hour
)

// Outlet delivers scheduler output through the normal rendering path.
type Outlet interface {
	RenderText(ctx context.Context, chatID, text string)
}

// Config holds the dependencies of a Scheduler.
type Config struct {
	Clock  clockwork.Clock // default real clock
	Rand   catalog.Intn    // default math/rand/v2
	Outlet Outlet
	Cards  *catalog.Catalog
	Logger *slog.Logger

	InactivityDelay time.Duration
	CheckInDelay    time.Duration
	GiftDelay       time.Duration
}

// Pending reports which timers are armed for a conversation.
type Pending struct {
	Reminder bool
	CheckIn  bool
	Gift     bool
}

// Any reports whether any timer is armed.
func (p Pending) Any() bool { return p.Reminder || p.CheckIn || p.Gift }

// epoch identifies one loyalty sequence.
type epoch struct {
	seq uint64
	at  time.Time
}

type state struct {
	mu sync.Mutex

	reminder    clockwork.Timer
	reminderGen uint64

	loyalty epoch
	checkIn clockwork.Timer
	gift    clockwork.Timer

	// evicted is set once the state is removed from the scheduler map.
	evicted bool
}

func (st *state) idle() bool {
	return st.reminder == nil && st.checkIn == nil && st.gift == nil
}

// Scheduler owns the engagement state of every conversation.
// Lock order is Scheduler.mu before state.mu.
type Scheduler struct {
	clock  clockwork.Clock
	rand   catalog.Intn
	outlet Outlet
	cards  *catalog.Catalog
	logger *slog.Logger

	inactivityDelay time.Duration
	checkInDelay    time.Duration
	giftDelay       time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	states  map[string]*state
	stopped bool

	seq atomic.Uint64
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// NewScheduler creates a scheduler. Timers fire on the configured clock.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Rand == nil {
		cfg.Rand = globalRand{}
	}
	if cfg.Cards == nil {
		cfg.Cards = catalog.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.InactivityDelay <= 0 {
		cfg.InactivityDelay = DefaultInactivityDelay
	}
	if cfg.CheckInDelay <= 0 {
		cfg.CheckInDelay = DefaultCheckInDelay
	}
	if cfg.GiftDelay <= 0 {
		cfg.GiftDelay = DefaultGiftDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:           cfg.Clock,
		rand:            cfg.Rand,
		outlet:          cfg.Outlet,
		cards:           cfg.Cards,
		logger:          cfg.Logger,
		inactivityDelay: cfg.InactivityDelay,
		checkInDelay:    cfg.CheckInDelay,
		giftDelay:       cfg.GiftDelay,
		ctx:             ctx,
		cancel:          cancel,
		states:          make(map[string]*state),
	}
}

// acquire returns the locked state for chatID, creating it if needed.
// It returns nil once the scheduler is stopped.
func (s *Scheduler) acquire(chatID string) *state {
	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return nil
		}
		st, ok := s.states[chatID]
		if !ok {
			st = &state{}
			s.states[chatID] = st
			metrics.Conversations.Inc()
		}
		s.mu.Unlock()

		st.mu.Lock()
		if !st.evicted {
			return st
		}
		// Lost a race with eviction; a fresh state will be created.
		st.mu.Unlock()
	}
}

// evictIfIdle drops the state of chatID when it has no armed timer.
func (s *Scheduler) evictIfIdle(chatID string, st *state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.evicted || !st.idle() || s.states[chatID] != st {
		return
	}
	st.evicted = true
	delete(s.states, chatID)
	metrics.Conversations.Dec()
}

// stopTimer cancels t and reports whether a handle was cleared.
func stopTimer(t clockwork.Timer) bool {
	if t == nil {
		return false
	}
	t.Stop()
	metrics.PendingTimers.Dec()
	return true
}

// Touch records a user turn: any pending reminder is cancelled and a new
// one is armed for the inactivity delay.
func (s *Scheduler) Touch(chatID string) {
	st := s.acquire(chatID)
	if st == nil {
		return
	}
	defer st.mu.Unlock()

	stopTimer(st.reminder)
	st.reminderGen++
	gen := st.reminderGen
	st.reminder = s.clock.AfterFunc(s.inactivityDelay, func() {
		s.fireReminder(chatID, st, gen)
	})
	metrics.PendingTimers.Inc()
}

func (s *Scheduler) fireReminder(chatID string, st *state, gen uint64) {
	st.mu.Lock()
	if st.reminderGen != gen || st.reminder == nil {
		st.mu.Unlock()
		return
	}
	st.reminder = nil
	metrics.PendingTimers.Dec()
	idle := st.idle()
	st.mu.Unlock()

	if idle {
		s.evictIfIdle(chatID, st)
	}

	s.logger.Info("sending inactivity reminder", "chat_id", chatID)
	metrics.RemindersSent.Inc()
	s.deliver(chatID, reminderText)
}

// StartLoyalty begins a new loyalty sequence for chatID. Timers of any
// earlier sequence are cancelled and their epoch invalidated.
func (s *Scheduler) StartLoyalty(chatID string) {
	st := s.acquire(chatID)
	if st == nil {
		return
	}
	defer st.mu.Unlock()

	e := epoch{seq: s.seq.Add(1), at: s.clock.Now()}
	stopTimer(st.checkIn)
	stopTimer(st.gift)
	st.loyalty = e

	st.checkIn = s.clock.AfterFunc(s.checkInDelay, func() {
		s.fireLoyalty(chatID, st, e, false)
	})
	st.gift = s.clock.AfterFunc(s.giftDelay, func() {
		s.fireLoyalty(chatID, st, e, true)
	})
	metrics.PendingTimers.Add(2)

	s.logger.Info("loyalty sequence started",
		"chat_id", chatID,
		"epoch", e.seq,
		"check_in_at", e.at.Add(s.checkInDelay),
		"gift_at", e.at.Add(s.giftDelay),
	)
}

func (s *Scheduler) fireLoyalty(chatID string, st *state, e epoch, gift bool) {
	st.mu.Lock()
	if st.loyalty != e {
		st.mu.Unlock()
		metrics.StaleTimers.Inc()
		s.logger.Debug("stale loyalty timer skipped", "chat_id", chatID, "epoch", e.seq)
		return
	}
	handle := &st.checkIn
	if gift {
		handle = &st.gift
	}
	if *handle == nil {
		st.mu.Unlock()
		return
	}
	*handle = nil
	metrics.PendingTimers.Dec()
	idle := st.idle()
	st.mu.Unlock()

	if idle {
		s.evictIfIdle(chatID, st)
	}

	if !gift {
		s.logger.Info("sending loyalty check-in", "chat_id", chatID, "epoch", e.seq)
		metrics.CheckInsSent.Inc()
		s.deliver(chatID, checkInText)
		return
	}

	payload := giftPayload(s.rand, s.cards)
	s.logger.Info("sending loyalty gift", "chat_id", chatID, "epoch", e.seq)
	metrics.GiftsSent.Inc()
	s.deliver(chatID, payload)
}

func (s *Scheduler) deliver(chatID, text string) {
	if s.outlet == nil {
		s.logger.Warn("no outlet configured, dropping engagement message", "chat_id", chatID)
		return
	}
	s.outlet.RenderText(s.ctx, chatID, text)
}

// Pending reports the armed timers for chatID.
func (s *Scheduler) Pending(chatID string) Pending {
	s.mu.Lock()
	st, ok := s.states[chatID]
	s.mu.Unlock()
	if !ok {
		return Pending{}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return Pending{
		Reminder: st.reminder != nil,
		CheckIn:  st.checkIn != nil,
		Gift:     st.gift != nil,
	}
}

// Conversations returns the number of conversations with engagement state.
func (s *Scheduler) Conversations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Stop cancels every pending timer. Later calls to Touch and StartLoyalty
// are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true

	var cancelled int
	for chatID, st := range s.states {
		st.mu.Lock()
		for _, t := range []*clockwork.Timer{&st.reminder, &st.checkIn, &st.gift} {
			if stopTimer(*t) {
				cancelled++
			}
			*t = nil
		}
		st.evicted = true
		st.mu.Unlock()
		delete(s.states, chatID)
		metrics.Conversations.Dec()
	}
	s.cancel()
	s.logger.Info("engagement scheduler stopped", "cancelled_timers", cancelled)
}
