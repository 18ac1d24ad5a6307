package service

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/you/go-flight-aggregator/internal/providers"
)

type Route struct {
	Origin      string
	Destination string
	Date        time.Time
}

type SearchService struct {
	providers     []providers.FlightProvider
	searchTimeout time.Duration
	log           *zap.Logger
	tracer        trace.Tracer
}

func NewSearchService(prov []providers.FlightProvider, timeout time.Duration, log *zap.Logger) *SearchService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SearchService{
		providers:     prov,
		searchTimeout: timeout,
		log:           log.Named("search"),
		tracer:        otel.Tracer("go-flight-aggregator/service"),
	}
}

// ProviderNames lists the registered providers in registration order.
func (s *SearchService) ProviderNames() []string {
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}

// SearchOneWay returns the cheapest segment any provider offers for one route.
func (s *SearchService) SearchOneWay(ctx context.Context, origin, destination string, date time.Time) (providers.FlightSegment, bool) {
	res := s.SearchRoutes(ctx, []Route{{Origin: origin, Destination: destination, Date: date}})
	if res[0] == nil {
		return providers.FlightSegment{}, false
	}
	return *res[0], true
}

// SearchRoutes searches every route concurrently. The result is aligned with
// routes; a nil entry means no provider had a usable segment for that route.
func (s *SearchService) SearchRoutes(ctx context.Context, routes []Route) []*providers.FlightSegment {
	out := make([]*providers.FlightSegment, len(routes))
	s.SearchRoutesStream(ctx, routes, func(i int, seg *providers.FlightSegment) {
		out[i] = seg
	})
	return out
}

// SearchRoutesStream is SearchRoutes with results delivered through fn as
// each route finishes. fn is called exactly once per route, from multiple
// goroutines, and every call has returned by the time SearchRoutesStream does.
func (s *SearchService) SearchRoutesStream(ctx context.Context, routes []Route, fn func(i int, seg *providers.FlightSegment)) {
	if len(routes) == 0 {
		return
	}
	if s.searchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.searchTimeout)
		defer cancel()
	}

	batchID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "SearchRoutes", trace.WithAttributes(
		attribute.String("batch.id", batchID),
		attribute.Int("batch.routes", len(routes)),
	))
	defer span.End()

	log := s.log.With(zap.String("batch_id", batchID))
	start := time.Now()

	var g errgroup.Group
	var found atomic.Int32
	for i, r := range routes {
		g.Go(func() error {
			seg, ok := s.searchRoute(ctx, r, log)
			if !ok {
				fn(i, nil)
				return nil
			}
			found.Add(1)
			fn(i, &seg)
			return nil
		})
	}
	_ = g.Wait()

	log.Info("batch finished",
		zap.Int("routes", len(routes)),
		zap.Int32("found", found.Load()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("cancelled", ctx.Err() != nil))
}

// searchRoute asks every provider concurrently and keeps the cheapest
// answer; ties go to the provider registered first.
func (s *SearchService) searchRoute(ctx context.Context, r Route, log *zap.Logger) (providers.FlightSegment, bool) {
	origin := strings.ToUpper(strings.TrimSpace(r.Origin))
	dest := strings.ToUpper(strings.TrimSpace(r.Destination))

	ctx, span := s.tracer.Start(ctx, "searchRoute", trace.WithAttributes(
		attribute.String("route.origin", origin),
		attribute.String("route.destination", dest),
		attribute.String("route.date", r.Date.Format("2006-01-02")),
	))
	defer span.End()

	results := make([]*providers.FlightSegment, len(s.providers))
	var g errgroup.Group
	for i, p := range s.providers {
		g.Go(func() error {
			if seg, ok := providers.SelectCheapest(ctx, p, origin, dest, r.Date, log); ok {
				results[i] = &seg
			}
			return nil
		})
	}
	_ = g.Wait()

	var best *providers.FlightSegment
	for _, seg := range results {
		if seg != nil && (best == nil || seg.Price() < best.Price()) {
			best = seg
		}
	}
	span.SetAttributes(attribute.Bool("route.found", best != nil))
	if best == nil {
		return providers.FlightSegment{}, false
	}
	return *best, true
}
