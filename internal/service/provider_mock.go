package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/you/go-flight-aggregator/internal/providers"
)

// ProviderMock is a scripted FlightProvider for tests. Routes whose origin is
// in failFor never succeed; with hang set they block until ctx is done.
type ProviderMock struct {
	name            string
	segments        []providers.FlightSegment
	delay           time.Duration
	errorOutMessage *string
	failFor         map[string]bool
	hang            bool
	callCount       *int32
}

func (p ProviderMock) Name() string {
	return p.name
}

func (p ProviderMock) Search(ctx context.Context, q providers.Query) ([]providers.FlightSegment, error) {
	if p.callCount != nil {
		atomic.AddInt32(p.callCount, 1)
	}
	if p.failFor[q.Origin] {
		if p.hang {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, &providers.ProviderError{Provider: p.name, Kind: providers.KindUnavailable, Err: errors.New("scripted failure")}
	}
	if p.errorOutMessage != nil {
		return nil, errors.New(p.Name() + ": " + *p.errorOutMessage)
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	var out []providers.FlightSegment
	for _, s := range p.segments {
		if s.FromAirport() == q.Origin && s.ToAirport() == q.Destination {
			out = append(out, s)
		}
	}
	return out, nil
}

func (p ProviderMock) Normalize([]byte) []providers.FlightSegment { return nil }
