package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type ProviderName string

const (
	ProviderPeach   ProviderName = "Peach"
	ProviderAmadeus ProviderName = "Amadeus"
)

const dateLayout = "2006-01-02"

var validate = validator.New(validator.WithRequiredStructEnabled())

// SegmentParams is the unvalidated input to NewFlightSegment.
type SegmentParams struct {
	FromAirport     string       `validate:"required,len=3,alpha,uppercase"`
	ToAirport       string       `validate:"required,len=3,alpha,uppercase,nefield=FromAirport"`
	Price           int          `validate:"gt=0"`
	PriceIsFallback bool
	Provider        ProviderName `validate:"required"`
	Date            time.Time    `validate:"required"`
	FlightNumber    string
	DepartureTime   string `validate:"omitempty,datetime=15:04"`
	ArrivalTime     string `validate:"omitempty,datetime=15:04"`
}

// FlightSegment is one directional flight leg. The zero value is not a valid
// segment; build one with NewFlightSegment.
type FlightSegment struct {
	from          string
	to            string
	price         int
	fallbackPrice bool
	provider      ProviderName
	date          time.Time
	flightNumber  string
	departure     string
	arrival       string
}

func NewFlightSegment(p SegmentParams) (FlightSegment, error) {
	p.FromAirport = strings.ToUpper(strings.TrimSpace(p.FromAirport))
	p.ToAirport = strings.ToUpper(strings.TrimSpace(p.ToAirport))
	p.FlightNumber = strings.TrimSpace(p.FlightNumber)

	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			err = fmt.Errorf("invalid segment: %s", strings.Join(fields, ", "))
		}
		return FlightSegment{}, &ProviderError{Provider: string(p.Provider), Kind: KindMalformed, Err: err}
	}

	y, m, d := p.Date.Date()
	return FlightSegment{
		from:          p.FromAirport,
		to:            p.ToAirport,
		price:         p.Price,
		fallbackPrice: p.PriceIsFallback,
		provider:      p.Provider,
		date:          time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		flightNumber:  p.FlightNumber,
		departure:     p.DepartureTime,
		arrival:       p.ArrivalTime,
	}, nil
}

func (s FlightSegment) FromAirport() string    { return s.from }
func (s FlightSegment) ToAirport() string      { return s.to }
func (s FlightSegment) Price() int             { return s.price }
func (s FlightSegment) Provider() ProviderName { return s.provider }
func (s FlightSegment) Date() time.Time        { return s.date }
func (s FlightSegment) FlightNumber() string   { return s.flightNumber }

// PriceIsFallback reports whether Price is the configured placeholder rather
// than an upstream fare.
func (s FlightSegment) PriceIsFallback() bool { return s.fallbackPrice }

// DepartureTime returns the local HH:MM departure time, if known.
func (s FlightSegment) DepartureTime() (string, bool) { return s.departure, s.departure != "" }

// ArrivalTime returns the local HH:MM arrival time, if known.
func (s FlightSegment) ArrivalTime() (string, bool) { return s.arrival, s.arrival != "" }

func (s FlightSegment) String() string {
	return fmt.Sprintf("%s %s->%s %s %d", s.provider, s.from, s.to, s.date.Format(dateLayout), s.price)
}

type segmentJSON struct {
	FromAirport     string `json:"from_airport"`
	ToAirport       string `json:"to_airport"`
	Price           int    `json:"price"`
	PriceIsFallback bool   `json:"price_is_fallback"`
	Provider        string `json:"provider"`
	Date            string `json:"date"`
	FlightNumber    string `json:"flight_number"`
	DepartureTime   string `json:"departure_time,omitempty"`
	ArrivalTime     string `json:"arrival_time,omitempty"`
}

func (s FlightSegment) MarshalJSON() ([]byte, error) {
	return json.Marshal(segmentJSON{
		FromAirport:     s.from,
		ToAirport:       s.to,
		Price:           s.price,
		PriceIsFallback: s.fallbackPrice,
		Provider:        string(s.provider),
		Date:            s.date.Format(dateLayout),
		FlightNumber:    s.flightNumber,
		DepartureTime:   s.departure,
		ArrivalTime:     s.arrival,
	})
}
