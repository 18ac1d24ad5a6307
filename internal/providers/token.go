package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type TokenState int

const (
	TokenUnset TokenState = iota
	TokenValid
	TokenExpired
)

func (s TokenState) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	default:
		return "unset"
	}
}

// expiry is brought forward by this much so a token is never sent at the
// edge of its lifetime. Tokens without expires_in live until rejected.
const tokenSkew = 10 * time.Second

// TokenManager caches an OAuth2 client-credentials bearer token. Concurrent
// callers that find no valid token share one exchange.
type TokenManager struct {
	url    string
	id     string
	secret string
	client *http.Client
	log    *zap.Logger
	now    func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	state   TokenState
	tok     string
	expires time.Time
}

func NewTokenManager(tokenURL, clientID, clientSecret string, client *http.Client, log *zap.Logger) *TokenManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenManager{
		url:    tokenURL,
		id:     clientID,
		secret: clientSecret,
		client: client,
		log:    log,
		now:    time.Now,
	}
}

func (m *TokenManager) State() TokenState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	return m.state
}

func (m *TokenManager) expireLocked() {
	if m.state == TokenValid && !m.expires.IsZero() && !m.now().Before(m.expires.Add(-tokenSkew)) {
		m.state = TokenExpired
		m.tok = ""
	}
}

// Token returns a usable bearer token. ok is false when none could be
// obtained; the failure has already been logged.
func (m *TokenManager) Token(ctx context.Context) (string, bool) {
	m.mu.Lock()
	m.expireLocked()
	if m.state == TokenValid {
		tok := m.tok
		m.mu.Unlock()
		return tok, true
	}
	m.mu.Unlock()

	ch := m.group.DoChan("token", func() (any, error) {
		// one caller giving up must not fail the exchange for the others
		fctx := context.WithoutCancel(ctx)
		tok, err := m.exchange(fctx)
		if err != nil {
			m.reset()
		}
		return tok, err
	})

	select {
	case <-ctx.Done():
		return "", false
	case res := <-ch:
		if res.Err != nil {
			return "", false
		}
		return res.Val.(string), true
	}
}

// reset returns the manager to TokenUnset after a failed exchange. A token
// cached by a concurrent exchange is kept.
func (m *TokenManager) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != TokenValid {
		m.state = TokenUnset
		m.tok = ""
		m.expires = time.Time{}
	}
}

// Invalidate drops tok if it is still the cached token, forcing the next
// Token call to fetch a new one.
func (m *TokenManager) Invalidate(tok string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == TokenValid && m.tok == tok {
		m.state = TokenExpired
		m.tok = ""
		m.log.Info("access token rejected upstream, cleared")
	}
}

func (m *TokenManager) exchange(ctx context.Context) (string, error) {
	// a concurrent exchange may have finished between the caller's check and DoChan
	m.mu.Lock()
	m.expireLocked()
	if m.state == TokenValid {
		tok := m.tok
		m.mu.Unlock()
		return tok, nil
	}
	m.mu.Unlock()

	if m.id == "" || m.secret == "" {
		err := errors.New("client credentials missing")
		m.log.Error("token exchange skipped", zap.Error(err))
		return "", err
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", m.id)
	data.Set("client_secret", m.secret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, strings.NewReader(data.Encode()))
	if err != nil {
		m.log.Error("token request build failed", zap.Error(err))
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		m.log.Error("token request failed", zap.Error(err))
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("token endpoint: %s", resp.Status)
		m.log.Error("token request rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
			zap.Error(err))
		return "", err
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		m.log.Error("token response undecodable", zap.Error(err))
		return "", err
	}
	if tr.AccessToken == "" {
		err := errors.New("token response has no access_token")
		m.log.Error("token response empty", zap.Error(err))
		return "", err
	}

	m.mu.Lock()
	m.state = TokenValid
	m.tok = tr.AccessToken
	m.expires = time.Time{}
	if tr.ExpiresIn > 0 {
		m.expires = m.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	m.mu.Unlock()

	m.log.Info("access token acquired", zap.Int("expires_in", tr.ExpiresIn))
	return tr.AccessToken, nil
}
