package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/karlseguin/ccache/v3"
	"golang.org/x/sync/singleflight"

	"temporada/internal/core"
	applog "temporada/internal/log"
	"temporada/internal/report"
	"temporada/internal/storage"
)

type ReportSource interface {
	ListReservations(ctx context.Context, f storage.ReservationFilter) ([]core.Reservation, error)
}

// ReportService serves the trailing twelve-month report from a cache.
// Concurrent misses share one computation.
type ReportService struct {
	source ReportSource
	policy report.Policy
	ttl    time.Duration
	cache  *ccache.Cache[report.Report]
	group  singleflight.Group
	gen    atomic.Uint64
	now    func() time.Time
	logger *applog.Logger
}

func NewReportService(source ReportSource, policy report.Policy, ttl time.Duration, logger *applog.Logger) *ReportService {
	if logger == nil {
		logger = applog.Discard()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ReportService{
		source: source,
		policy: policy,
		ttl:    ttl,
		cache:  ccache.New(ccache.Configure[report.Report]().MaxSize(64)),
		now:    time.Now,
		logger: logger.WithComponent(applog.ComponentReport),
	}
}

func (s *ReportService) Policy() report.Policy { return s.policy }

// Invalidate drops cached reports. A computation already in flight stores
// its result under the previous generation, where no reader looks.
func (s *ReportService) Invalidate() {
	s.gen.Add(1)
	s.cache.Clear()
}

// Monthly returns the report for the twelve months ending this month.
func (s *ReportService) Monthly(ctx context.Context) (report.Report, error) {
	now := s.now()
	key := fmt.Sprintf("%04d-%02d/%d", now.Year(), int(now.Month()), s.gen.Load())

	if item := s.cache.Get(key); item != nil && !item.Expired() {
		return item.Value(), nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		start := time.Now()
		from, to := report.Window(now)
		rs, err := s.source.ListReservations(ctx, storage.ReservationFilter{From: from, To: to})
		if err != nil {
			return report.Report{}, fmt.Errorf("load reservations: %w", err)
		}
		rep := report.Monthly(rs, now, s.policy)
		s.cache.Set(key, rep, s.ttl)
		s.logger.DebugContext(ctx, "Report computed",
			"reservations", len(rs),
			applog.FieldDuration, time.Since(start).Milliseconds())
		return rep, nil
	})
	if err != nil {
		return report.Report{}, err
	}
	return v.(report.Report), nil
}
