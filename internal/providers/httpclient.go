package providers

import (
	"net"
	"net/http"
	"time"

	"github.com/you/go-flight-aggregator/internal/config"
	"github.com/you/go-flight-aggregator/internal/retry"
)

// PoolConfig bounds the connection pool each adapter owns.
type PoolConfig struct {
	Timeout      time.Duration
	MaxConns     int
	MaxIdleConns int
}

// Options are the knobs shared by every adapter.
type Options struct {
	Pool   PoolConfig
	Retry  retry.Policy
	Prices PricePolicy
}

// OptionsFromConfig maps the process configuration onto adapter options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Pool: PoolConfig{
			Timeout:      cfg.HTTPTimeout,
			MaxConns:     cfg.HTTPMaxConns,
			MaxIdleConns: cfg.HTTPMaxIdleConns,
		},
		Retry: retry.Policy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
		},
		Prices: PricePolicy{Fallback: cfg.FallbackPrice},
	}
}

func newHTTPClient(pc PoolConfig) *http.Client {
	if pc.Timeout <= 0 {
		pc.Timeout = 10 * time.Second
	}
	if pc.MaxConns <= 0 {
		pc.MaxConns = 100
	}
	if pc.MaxIdleConns <= 0 {
		pc.MaxIdleConns = 20
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   pc.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxConnsPerHost:       pc.MaxConns,
		MaxIdleConns:          pc.MaxIdleConns,
		MaxIdleConnsPerHost:   pc.MaxIdleConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   pc.Timeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Timeout: pc.Timeout, Transport: tr}
}
