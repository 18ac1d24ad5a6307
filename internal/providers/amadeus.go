package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/you/go-flight-aggregator/internal/config"
	"github.com/you/go-flight-aggregator/internal/retry"
)

type Amadeus struct {
	host       string
	searchPath string
	currency   string
	client     *http.Client
	tokens     *TokenManager
	hasCreds   bool
	retry      retry.Policy
	prices     PricePolicy
	log        *zap.Logger
}

func NewAmadeus(cfg *config.Config, opts Options, log *zap.Logger) *Amadeus {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("amadeus")
	host := strings.TrimRight(cfg.AmadeusURL, "/")
	hasCreds := cfg.AmadeusClientId != "" && cfg.AmadeusClientSecret != ""
	if !hasCreds {
		log.Error("amadeus client credentials are not configured, searches will return nothing")
	}
	client := newHTTPClient(opts.Pool)
	rp := opts.Retry
	rp.Logger = log
	return &Amadeus{
		host:       host,
		searchPath: "/v2/shopping/flight-offers",
		currency:   cfg.AmadeusCurrency,
		client:     client,
		tokens:     NewTokenManager(host+"/v1/security/oauth2/token", cfg.AmadeusClientId, cfg.AmadeusClientSecret, client, log),
		hasCreds:   hasCreds,
		retry:      rp,
		prices:     opts.Prices,
		log:        log,
	}
}

func (a *Amadeus) Name() string { return string(ProviderAmadeus) }

func (a *Amadeus) Close() { a.client.CloseIdleConnections() }

func (a *Amadeus) Search(ctx context.Context, q Query) ([]FlightSegment, error) {
	if !a.hasCreds {
		return nil, &ProviderError{Provider: a.Name(), Kind: KindNoCredential, Err: errors.New("amadeus credentials missing")}
	}
	tok, ok := a.tokens.Token(ctx)
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, &ProviderError{Provider: a.Name(), Kind: KindNoCredential, Err: errors.New("no access token")}
	}

	params := url.Values{}
	params.Set("originLocationCode", q.Origin)
	params.Set("destinationLocationCode", q.Destination)
	params.Set("departureDate", q.Date.Format(dateLayout))
	params.Set("adults", "1")
	params.Set("max", "5")
	if q.ReturnDate != nil {
		params.Set("returnDate", q.ReturnDate.Format(dateLayout))
	}
	if a.currency != "" {
		params.Set("currencyCode", a.currency)
	}
	u := a.host + a.searchPath + "?" + params.Encode()

	body, err := retry.Do(ctx, a.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("Accept", "application/json")
		b, err := fetch(a.client, req, ProviderAmadeus)
		var pe *ProviderError
		if errors.As(err, &pe) && pe.StatusCode == http.StatusUnauthorized {
			a.tokens.Invalidate(tok)
		}
		return b, err
	})
	if err != nil {
		return nil, finishSearch(err, ProviderAmadeus)
	}
	return a.Normalize(body), nil
}

type amadeusPoint struct {
	IataCode string `json:"iataCode"`
	At       string `json:"at"`
}

type amadeusOffer struct {
	Price struct {
		Total      string `json:"total"`
		GrandTotal string `json:"grandTotal"`
	} `json:"price"`
	Itineraries []struct {
		Segments []struct {
			Departure   amadeusPoint `json:"departure"`
			Arrival     amadeusPoint `json:"arrival"`
			CarrierCode string       `json:"carrierCode"`
			Number      string       `json:"number"`
		} `json:"segments"`
	} `json:"itineraries"`
}

func (a *Amadeus) Normalize(raw []byte) []FlightSegment {
	var payload struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		a.log.Error("undecodable response", zap.Error(err))
		return nil
	}

	var out []FlightSegment
	for i, rec := range payload.Data {
		segs, err := a.normalizeOffer(rec)
		if err != nil {
			a.log.Warn("skipping malformed offer", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, segs...)
	}
	if len(out) == 0 && len(payload.Data) > 0 {
		a.log.Warn("no usable offers in response", zap.Int("offers", len(payload.Data)))
	}
	return out
}

// normalizeOffer turns each itinerary of an offer into one segment. The offer
// price is split evenly across itineraries, the remainder staying on the
// outbound leg.
func (a *Amadeus) normalizeOffer(rec json.RawMessage) ([]FlightSegment, error) {
	malformed := func(err error) error {
		return &ProviderError{Provider: a.Name(), Kind: KindMalformed, Err: err}
	}

	var o amadeusOffer
	if err := json.Unmarshal(rec, &o); err != nil {
		return nil, malformed(err)
	}
	if len(o.Itineraries) == 0 {
		return nil, malformed(errors.New("offer has no itineraries"))
	}

	rawTotal := o.Price.GrandTotal
	if rawTotal == "" {
		rawTotal = o.Price.Total
	}
	total, err := parseAmount(rawTotal)
	if err != nil {
		return nil, malformed(err)
	}
	n := len(o.Itineraries)
	share := total / n
	if total > 0 && share == 0 {
		return nil, malformed(fmt.Errorf("price %d cannot be split across %d itineraries", total, n))
	}

	segs := make([]FlightSegment, 0, n)
	for i, it := range o.Itineraries {
		if len(it.Segments) == 0 {
			return nil, malformed(fmt.Errorf("itinerary %d has no segments", i))
		}
		first := it.Segments[0]
		last := it.Segments[len(it.Segments)-1]

		date, depClock, err := parseLocal(first.Departure.At)
		if err != nil {
			return nil, malformed(fmt.Errorf("itinerary %d departure: %w", i, err))
		}

		legPrice := share
		if i == 0 {
			legPrice = total - share*(n-1)
		}
		price, fallback := a.prices.Resolve(legPrice)

		seg, err := NewFlightSegment(SegmentParams{
			FromAirport:     first.Departure.IataCode,
			ToAirport:       last.Arrival.IataCode,
			Price:           price,
			PriceIsFallback: fallback,
			Provider:        ProviderAmadeus,
			Date:            date,
			FlightNumber:    first.CarrierCode + first.Number,
			DepartureTime:   depClock,
			ArrivalTime:     clockOf(last.Arrival.At),
		})
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, nil
}
