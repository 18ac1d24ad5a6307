package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/you/go-flight-aggregator/internal/retry"
)

// Query is a single-route search. ReturnDate is nil for one-way searches.
type Query struct {
	Origin      string
	Destination string
	Date        time.Time
	ReturnDate  *time.Time
}

type FlightProvider interface {
	Name() string
	// Search queries the upstream and returns normalized segments. An empty
	// result with a nil error means the upstream found nothing.
	Search(ctx context.Context, q Query) ([]FlightSegment, error)
	// Normalize maps a raw upstream payload onto segments, skipping records
	// it cannot map.
	Normalize(raw []byte) []FlightSegment
}

// Cheapest returns the lowest priced segment; ties go to the earliest one.
func Cheapest(segs []FlightSegment) (FlightSegment, bool) {
	if len(segs) == 0 {
		return FlightSegment{}, false
	}
	best := segs[0]
	for _, s := range segs[1:] {
		if s.Price() < best.Price() {
			best = s
		}
	}
	return best, true
}

// SelectCheapest runs a one-way search on p and returns its cheapest segment.
// Every failure is logged and reported as no result.
func SelectCheapest(ctx context.Context, p FlightProvider, origin, destination string, date time.Time, log *zap.Logger) (FlightSegment, bool) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(
		zap.String("provider", p.Name()),
		zap.String("origin", origin),
		zap.String("destination", destination),
		zap.String("date", date.Format(dateLayout)))

	segs, err := p.Search(ctx, Query{Origin: origin, Destination: destination, Date: date})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			log.Info("search cancelled", zap.Error(err))
		case errors.Is(err, ErrNoCredential):
			log.Warn("search skipped, no credential", zap.Error(err))
		default:
			log.Warn("search failed", zap.String("kind", string(KindOf(err))), zap.Error(err))
		}
		return FlightSegment{}, false
	}
	seg, ok := Cheapest(segs)
	if !ok {
		log.Info("no flights found")
	}
	return seg, ok
}

// fetch performs req and returns the body of a 2xx response. Failures come
// back as *ProviderError; rejections are wrapped with retry.Permanent so a
// retry loop stops on them.
func fetch(client *http.Client, req *http.Request, provider ProviderName) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ProviderError{Provider: string(provider), Kind: KindUnavailable, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: string(provider), Kind: KindUnavailable, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 300 {
		snippet := body
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		pe := &ProviderError{
			Provider:   string(provider),
			Kind:       statusKind(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s: %s", resp.Status, snippet),
		}
		if pe.Kind == KindRejected {
			return nil, retry.Permanent(pe)
		}
		return nil, pe
	}
	return body, nil
}

// finishSearch maps what retry.Do returned onto the adapter's error surface.
func finishSearch(err error, provider ProviderName) error {
	if errors.Is(err, retry.ErrExhausted) {
		return &ProviderError{Provider: string(provider), Kind: KindUnavailable, Err: err}
	}
	return err
}
