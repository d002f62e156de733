// Package service holds the survey use cases. Every entry point takes the
// calling survey.Actor, routes permission decisions through internal/policy,
// and returns survey domain errors or infrastructure errors.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-survey/internal/metrics"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

// StatsCache is an optional read-through cache for statistics. Get reports
// the generation it looked under; Set must store under that same generation
// so totals read before an Invalidate are never served after it.
type StatsCache interface {
	Get(ctx context.Context, q survey.StatsQuery) (st *survey.Stats, gen string, err error)
	Set(ctx context.Context, gen string, q survey.StatsQuery, s survey.Stats) error
	Invalidate(ctx context.Context) error
}

type Service struct {
	store         survey.Store
	notifier      survey.Notifier
	cache         StatsCache
	log           *zap.Logger
	now           func() time.Time
	notifyTimeout time.Duration
	hashCost      int
}

type Option func(*Service)

func WithNotifier(n survey.Notifier) Option { return func(s *Service) { s.notifier = n } }
func WithStatsCache(c StatsCache) Option    { return func(s *Service) { s.cache = c } }
func WithLogger(l *zap.Logger) Option       { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithNotifyTimeout bounds each notifier call.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) { s.notifyTimeout = d }
}

func New(store survey.Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		log:           zap.NewNop(),
		now:           time.Now,
		notifyTimeout: 5 * time.Second,
		hashCost:      12,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// notify runs after the triggering write has committed. It never fails the caller.
func (s *Service) notify(ctx context.Context, n survey.Notification) error {
	if s.notifier == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	err := s.notifier.Notify(ctx, n)
	metrics.Notifications.WithLabelValues(string(n.Kind), metrics.Result(err)).Inc()
	if err != nil {
		s.log.Warn("notify failed",
			zap.String("kind", string(n.Kind)),
			zap.Int64("assignment_id", n.AssignmentID),
			zap.Int64("group_id", n.GroupID),
			zap.Error(err))
	}
	return err
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("stats cache invalidate failed", zap.Error(err))
	}
}
