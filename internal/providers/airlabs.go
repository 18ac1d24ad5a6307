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

// AirLabs searches the AirLabs schedule API for domestic Peach flights.
type AirLabs struct {
	host   string
	path   string
	apiKey string
	client *http.Client
	retry  retry.Policy
	prices PricePolicy
	log    *zap.Logger
}

func NewAirLabs(cfg *config.Config, opts Options, log *zap.Logger) *AirLabs {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("airlabs")
	if cfg.AirLabsAPIKey == "" {
		log.Error("airlabs api key is not configured, searches will return nothing")
	}
	rp := opts.Retry
	rp.Logger = log
	return &AirLabs{
		host:   strings.TrimRight(cfg.AirLabsBaseURL, "/"),
		path:   "/flights",
		apiKey: cfg.AirLabsAPIKey,
		client: newHTTPClient(opts.Pool),
		retry:  rp,
		prices: opts.Prices,
		log:    log,
	}
}

func (a *AirLabs) Name() string { return string(ProviderPeach) }

// Close releases the adapter's idle connections.
func (a *AirLabs) Close() { a.client.CloseIdleConnections() }

// Search looks up the outbound leg and, when q.ReturnDate is set, the reverse leg.
func (a *AirLabs) Search(ctx context.Context, q Query) ([]FlightSegment, error) {
	if a.apiKey == "" {
		return nil, &ProviderError{Provider: a.Name(), Kind: KindNoCredential, Err: errors.New("airlabs api key missing")}
	}

	out, err := a.searchLeg(ctx, q.Origin, q.Destination, q.Date.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	if q.ReturnDate != nil {
		back, err := a.searchLeg(ctx, q.Destination, q.Origin, q.ReturnDate.Format(dateLayout))
		if err != nil {
			return nil, err
		}
		out = append(out, back...)
	}
	return out, nil
}

func (a *AirLabs) searchLeg(ctx context.Context, origin, destination, date string) ([]FlightSegment, error) {
	params := url.Values{}
	params.Set("api_key", a.apiKey)
	params.Set("dep_iata", origin)
	params.Set("arr_iata", destination)
	params.Set("date", date)
	u := a.host + a.path + "?" + params.Encode()

	a.log.Debug("searching",
		zap.String("origin", origin),
		zap.String("destination", destination),
		zap.String("date", date))

	body, err := retry.Do(ctx, a.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		b, err := fetch(a.client, req, ProviderPeach)
		if err != nil {
			return nil, err
		}
		if msg, ok := airlabsError(b); ok {
			return nil, retry.Permanent(&ProviderError{Provider: a.Name(), Kind: KindRejected, Err: errors.New(msg)})
		}
		return b, nil
	})
	if err != nil {
		return nil, finishSearch(err, ProviderPeach)
	}
	return a.Normalize(body), nil
}

// airlabsError reports the error object AirLabs returns with a 200 status.
func airlabsError(body []byte) (string, bool) {
	var env struct {
		Error *struct {
			Message string     `json:"message"`
			Code    flexString `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return "", false
	}
	return fmt.Sprintf("%s: %s", env.Error.Code, env.Error.Message), true
}

type airlabsFlight struct {
	DepIata      string     `json:"dep_iata"`
	ArrIata      string     `json:"arr_iata"`
	DepTime      string     `json:"dep_time"`
	ArrTime      string     `json:"arr_time"`
	AirlineIata  string     `json:"airline_iata"`
	FlightIata   string     `json:"flight_iata"`
	FlightNumber flexString `json:"flight_number"`
	Price        flexPrice  `json:"price"`
}

func (a *AirLabs) Normalize(raw []byte) []FlightSegment {
	var env struct {
		Response []json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		a.log.Error("undecodable response", zap.Error(err))
		return nil
	}

	out := make([]FlightSegment, 0, len(env.Response))
	for i, rec := range env.Response {
		seg, err := a.normalizeFlight(rec)
		if err != nil {
			a.log.Warn("skipping malformed record", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, seg)
	}
	if len(out) == 0 && len(env.Response) > 0 {
		a.log.Warn("no usable records in response", zap.Int("records", len(env.Response)))
	}
	return out
}

func (a *AirLabs) normalizeFlight(rec json.RawMessage) (FlightSegment, error) {
	var f airlabsFlight
	if err := json.Unmarshal(rec, &f); err != nil {
		return FlightSegment{}, &ProviderError{Provider: a.Name(), Kind: KindMalformed, Err: err}
	}
	date, depClock, err := parseLocal(f.DepTime)
	if err != nil {
		return FlightSegment{}, &ProviderError{Provider: a.Name(), Kind: KindMalformed, Err: fmt.Errorf("dep_time: %w", err)}
	}

	number := f.FlightIata
	if number == "" && f.FlightNumber != "" {
		number = f.AirlineIata + string(f.FlightNumber)
	}

	price, fallback := a.prices.Resolve(int(f.Price))
	return NewFlightSegment(SegmentParams{
		FromAirport:     f.DepIata,
		ToAirport:       f.ArrIata,
		Price:           price,
		PriceIsFallback: fallback,
		Provider:        ProviderPeach,
		Date:            date,
		FlightNumber:    number,
		DepartureTime:   depClock,
		ArrivalTime:     clockOf(f.ArrTime),
	})
}
