package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-survey/internal/metrics"
	"github.com/mind-engage/mindengage-survey/internal/policy"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

// Statistics reports totals for the scope and, when a period is given,
// per-bucket figures. Buckets without explicit dates cover the trailing
// survey.DefaultLookback.
func (s *Service) Statistics(ctx context.Context, a survey.Actor, q survey.StatsQuery) (survey.Stats, error) {
	if !policy.CanViewStatistics(a) {
		return survey.Stats{}, survey.PermissionDeniedf("role %q cannot view statistics", a.Role)
	}
	if err := q.Validate(); err != nil {
		return survey.Stats{}, err
	}
	cached, gen, ok := s.cachedStats(ctx, q)
	if ok {
		return cached, nil
	}

	total, completed, err := s.store.ResponseTotals(ctx, q.StatsScope, q.From, q.To)
	if err != nil {
		return survey.Stats{}, err
	}
	st := survey.Stats{Total: total, Completed: completed, CompletionRate: survey.CompletionRate(completed, total)}

	if q.Period != "" {
		from, to := q.From, q.To
		if from == nil && to == nil {
			now := s.now().UTC()
			start := now.Add(-survey.DefaultLookback)
			from, to = &start, &now
		}
		pts, err := s.store.ResponsePoints(ctx, q.StatsScope, from, to)
		if err != nil {
			return survey.Stats{}, err
		}
		st.Buckets = survey.BucketPoints(pts, q.Period)
	}

	if gen != "" {
		if err := s.cache.Set(ctx, gen, q, st); err != nil {
			s.log.Warn("stats cache set failed", zap.Error(err))
		}
	}
	return st, nil
}

// cachedStats returns the generation to store a fresh result under, or ""
// when there is no usable cache.
func (s *Service) cachedStats(ctx context.Context, q survey.StatsQuery) (survey.Stats, string, bool) {
	if s.cache == nil {
		return survey.Stats{}, "", false
	}
	st, gen, err := s.cache.Get(ctx, q)
	switch {
	case err != nil:
		metrics.StatsCache.WithLabelValues("error").Inc()
		s.log.Warn("stats cache get failed", zap.Error(err))
		return survey.Stats{}, "", false
	case st == nil:
		metrics.StatsCache.WithLabelValues("miss").Inc()
		return survey.Stats{}, gen, false
	}
	metrics.StatsCache.WithLabelValues("hit").Inc()
	return *st, gen, true
}

// StudentProgress reports completion over the assignments matching q.
// Mentors receive the figures without the student id.
func (s *Service) StudentProgress(ctx context.Context, a survey.Actor, studentID int64, q survey.ProgressQuery) (survey.Progress, error) {
	if !policy.CanViewProgress(a, studentID) {
		return survey.Progress{}, survey.PermissionDeniedf("cannot view progress of student %d", studentID)
	}
	if _, err := s.store.GetUser(ctx, studentID); err != nil {
		return survey.Progress{}, err
	}
	rows, err := s.store.ProgressRows(ctx, studentID, q)
	if err != nil {
		return survey.Progress{}, err
	}
	return policy.AnonymizeProgress(a, survey.BuildProgress(studentID, rows)), nil
}
