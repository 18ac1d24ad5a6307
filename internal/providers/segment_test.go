package providers

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validParams() SegmentParams {
	return SegmentParams{
		FromAirport:   "kix",
		ToAirport:     "NRT",
		Price:         12000,
		Provider:      ProviderPeach,
		Date:          time.Date(2024, 6, 1, 15, 4, 0, 0, time.UTC),
		FlightNumber:  " MM101 ",
		DepartureTime: "08:30",
	}
}

func TestNewFlightSegment(t *testing.T) {
	seg, err := NewFlightSegment(validParams())
	require.NoError(t, err)
	require.Equal(t, "KIX", seg.FromAirport())
	require.Equal(t, "NRT", seg.ToAirport())
	require.Equal(t, 12000, seg.Price())
	require.False(t, seg.PriceIsFallback())
	require.Equal(t, ProviderPeach, seg.Provider())
	require.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), seg.Date())
	require.Equal(t, "MM101", seg.FlightNumber())

	dep, ok := seg.DepartureTime()
	require.True(t, ok)
	require.Equal(t, "08:30", dep)
	_, ok = seg.ArrivalTime()
	require.False(t, ok)
}

func TestNewFlightSegment_Rejects(t *testing.T) {
	cases := map[string]func(p *SegmentParams){
		"zero price":        func(p *SegmentParams) { p.Price = 0 },
		"negative price":    func(p *SegmentParams) { p.Price = -5 },
		"empty origin":      func(p *SegmentParams) { p.FromAirport = "" },
		"empty destination": func(p *SegmentParams) { p.ToAirport = "" },
		"same airports":     func(p *SegmentParams) { p.ToAirport = "KIX" },
		"long code":         func(p *SegmentParams) { p.FromAirport = "KIXX" },
		"digits in code":    func(p *SegmentParams) { p.ToAirport = "N1T" },
		"zero date":         func(p *SegmentParams) { p.Date = time.Time{} },
		"no provider":       func(p *SegmentParams) { p.Provider = "" },
		"bad clock":         func(p *SegmentParams) { p.ArrivalTime = "25:61" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := validParams()
			mutate(&p)
			_, err := NewFlightSegment(p)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestFlightSegment_MarshalJSON(t *testing.T) {
	p := validParams()
	p.Price = 90000
	p.PriceIsFallback = true
	seg, err := NewFlightSegment(p)
	require.NoError(t, err)

	b, err := json.Marshal(seg)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"from_airport": "KIX",
		"to_airport": "NRT",
		"price": 90000,
		"price_is_fallback": true,
		"provider": "Peach",
		"date": "2024-06-01",
		"flight_number": "MM101",
		"departure_time": "08:30"
	}`, string(b))
}

func TestPricePolicy_Resolve(t *testing.T) {
	p := PricePolicy{Fallback: 75000}

	price, fb := p.Resolve(12000)
	require.Equal(t, 12000, price)
	require.False(t, fb)

	price, fb = p.Resolve(0)
	require.Equal(t, 75000, price)
	require.True(t, fb)

	price, fb = p.Resolve(-1)
	require.Equal(t, 75000, price)
	require.True(t, fb)

	price, fb = PricePolicy{}.Resolve(0)
	require.Equal(t, DefaultFallbackPrice, price)
	require.True(t, fb)
}

func TestParseLocal(t *testing.T) {
	d, clock, err := parseLocal("2024-06-01 08:30")
	require.NoError(t, err)
	require.Equal(t, "08:30", clock)
	require.Equal(t, 2024, d.Year())

	_, clock, err = parseLocal("2024-06-01T21:05:00")
	require.NoError(t, err)
	require.Equal(t, "21:05", clock)

	d, clock, err = parseLocal("2024-06-01 xx:yy")
	require.NoError(t, err)
	require.Empty(t, clock)
	require.Equal(t, time.June, d.Month())

	_, _, err = parseLocal("")
	require.Error(t, err)
	_, _, err = parseLocal("yesterday")
	require.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	v, err := parseAmount("64999.60")
	require.NoError(t, err)
	require.Equal(t, 65000, v)

	v, err = parseAmount(" ")
	require.NoError(t, err)
	require.Zero(t, v)

	for _, s := range []string{"abc", "NaN", "+Inf", "1e30", "-1e30", "2147483648"} {
		_, err := parseAmount(s)
		require.Error(t, err, s)
	}
}
