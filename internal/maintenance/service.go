// Package maintenance owns the recurring maintenance schedule chain: it
// generates schedules from equipment priority, advances them on completion
// or skip, and repairs duplicate active schedules.
//
// Every mutation of a schedule chain happens inside one database
// transaction while holding the in-process lock for the affected
// (equipment, maintenance type) pairs.
package maintenance

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/store"
)

type Service struct {
	db           *sql.DB
	logger       *slog.Logger
	clock        clock.Clock
	locks        *keyLock
	upcomingDays int
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithUpcomingDays sets how far ahead the dashboard counts upcoming work.
func WithUpcomingDays(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.upcomingDays = n
		}
	}
}

func New(db *sql.DB, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		db:           db,
		logger:       logger.With("component", "maintenance"),
		clock:        clock.New(nil, nil),
		locks:        newKeyLock(),
		upcomingDays: 7,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current calendar date in the facility's zone.
func (s *Service) Today() time.Time {
	return s.clock.Today()
}

// txStores binds every store used by a schedule mutation to one transaction.
type txStores struct {
	equipment *store.EquipmentStore
	schedules *store.ScheduleStore
	history   *store.HistoryStore
}

func (s *Service) inTx(fn func(st txStores) error) error {
	return store.RunInTx(s.db, func(tx *sql.Tx) error {
		return fn(txStores{
			equipment: store.NewEquipmentStore(tx),
			schedules: store.NewScheduleStore(tx),
			history:   store.NewHistoryStore(tx),
		})
	})
}
