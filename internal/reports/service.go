package reports

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tillpoint/tillpoint/internal/invoices"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// Source reads invoices for a time window.
type Source interface {
	InvoicesBetween(ctx context.Context, from, to time.Time) ([]invoices.Invoice, error)
}

// Service builds sales reports over the invoice collection.
type Service struct {
	source    Source
	cache     *Cache
	group     singleflight.Group
	loc       *time.Location
	storeName string
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs Service. Days are cut at midnight in loc.
func NewService(source Source, cache *Cache, loc *time.Location, storeName string, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, cache: cache, loc: loc, storeName: storeName, logger: logger, now: time.Now}
}

// Location returns the zone reports are cut in.
func (s *Service) Location() *time.Location { return s.loc }

// Daily reports one calendar day. Concurrent requests for the same day share
// a single load.
func (s *Service) Daily(ctx context.Context, date time.Time) (Daily, error) {
	day := date.In(s.loc)
	label := day.Format(shared.DateLayout)
	key, err := s.cache.BuildKey(ctx, "reports", "daily", label)
	if err != nil {
		s.logger.Warn("report cache version unavailable", slog.Any("error", err))
		return s.loadDaily(ctx, day)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		var d Daily
		err := s.cache.FetchJSON(ctx, key, &d, func(ctx context.Context) (any, error) {
			return s.loadDaily(ctx, day)
		})
		return d, err
	})
	if err != nil {
		return Daily{}, err
	}
	return v.(Daily), nil
}

func (s *Service) loadDaily(ctx context.Context, day time.Time) (Daily, error) {
	from, to := shared.DayBounds(day)
	invs, err := s.source.InvoicesBetween(ctx, from, to)
	if err != nil {
		return Daily{}, err
	}
	return aggregate(day.Format(shared.DateLayout), invs), nil
}

// Summary reports every day in [from, to] with a grand total.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	start, _ := shared.DayBounds(from.In(s.loc))
	end, _ := shared.DayBounds(to.In(s.loc))
	if end.Before(start) {
		return Summary{}, ErrInvalidRange
	}
	days := make([]time.Time, 0)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
		if len(days) > MaxSummaryDays {
			return Summary{}, ErrRangeTooLarge
		}
	}

	series := make([]Daily, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, d := range days {
		g.Go(func() error {
			daily, err := s.Daily(gctx, d)
			if err != nil {
				return err
			}
			series[i] = daily
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return Summary{
		From:   start.Format(shared.DateLayout),
		To:     end.Format(shared.DateLayout),
		Days:   series,
		Totals: total(series),
	}, nil
}

// ZReport closes the day: expected drawer cash is the cash sales total, and
// variance is counted minus expected.
func (s *Service) ZReport(ctx context.Context, date time.Time, countedCash float64) (ZReport, error) {
	if countedCash < 0 {
		return ZReport{}, ErrNegativeCount
	}
	d, err := s.Daily(ctx, date)
	if err != nil {
		return ZReport{}, err
	}
	expected := round2(d.CashReceived - d.ChangeGiven)
	return ZReport{
		Daily:        d,
		StoreName:    s.storeName,
		ExpectedCash: expected,
		CountedCash:  round2(countedCash),
		Variance:     round2(countedCash - expected),
		GeneratedAt:  s.now().In(s.loc),
	}, nil
}

// CheckoutCompleted drops cached figures so the sale shows up immediately.
func (s *Service) CheckoutCompleted(ctx context.Context, inv invoices.Invoice) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump report cache", slog.String("invoice", inv.Number), slog.Any("error", err))
	}
}
