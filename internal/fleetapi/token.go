package fleetapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/richxcame/fleet-performance/pkg/httpclient"
)

const (
	tokenScope         = "fleet-integration:api"
	defaultTokenTTL    = 600 * time.Second
	tokenRefreshMargin = 30 * time.Second
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// tokenSource fetches and caches OAuth client-credentials tokens
type tokenSource struct {
	http         *httpclient.Client
	tokenURL     string
	clientID     string
	clientSecret string
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newTokenSource(http *httpclient.Client, tokenURL, clientID, clientSecret string) *tokenSource {
	return &tokenSource{
		http:         http,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

// Token returns a cached token, refreshing it shortly before expiry
func (s *tokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expiresAt.Add(-tokenRefreshMargin)) {
		return s.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", tokenScope)

	credentials := base64.StdEncoding.EncodeToString([]byte(s.clientID + ":" + s.clientSecret))
	body, err := s.http.PostForm(ctx, s.tokenURL, form, map[string]string{
		"Authorization": "Basic " + credentials,
	})
	if err != nil {
		return "", fmt.Errorf("request access token: %w", err)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode access token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", errors.New("token endpoint returned no access token")
	}

	ttl := defaultTokenTTL
	if resp.ExpiresIn > 0 {
		ttl = time.Duration(resp.ExpiresIn) * time.Second
	}
	s.token = resp.AccessToken
	s.expiresAt = s.now().Add(ttl)
	return s.token, nil
}

// Invalidate forgets the cached token
func (s *tokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}
