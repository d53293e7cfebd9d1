package kbauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/kbase/orcidlink/pkg/cache"
	"github.com/kbase/orcidlink/pkg/errors"
)

const (
	tokenEndpoint = "/api/V2/token"
	meEndpoint    = "/api/V2/me"

	// maxResponseBodySize is the maximum size for reading response bodies (1 MB)
	maxResponseBodySize = 1 << 20

	// Auth service application error codes that mean the presented
	// credential is unusable, as opposed to the service misbehaving.
	appCodeInvalidToken = 10020
	appCodeTokenExpired = 10011
)

// Cache key prefixes keep token-info and account-info entries for the same
// credential distinct.
const (
	cacheKindToken   = "token:"
	cacheKindAccount = "me:"
)

// Client talks to the KBase auth service. It satisfies Verifier.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.TokenCache
	defaultTTL time.Duration
}

var _ Verifier = (*Client)(nil)

// NewClient creates an auth service client. The cache is shared process-wide
// and injected by the caller; defaultTTL caps how long verified identities
// are served from it.
func NewClient(baseURL string, timeout time.Duration, tokenCache *cache.TokenCache, defaultTTL time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      tokenCache,
		defaultTTL: defaultTTL,
	}
}

// authError is the error envelope returned by the auth service.
type authError struct {
	HTTPCode   int    `json:"httpcode"`
	HTTPStatus string `json:"httpstatus"`
	AppCode    int    `json:"appcode"`
	AppError   string `json:"apperror"`
	Message    string `json:"message"`
	CallID     string `json:"callid"`
}

type authErrorEnvelope struct {
	Error *authError `json:"error"`
}

// GetTokenInfo verifies a bearer credential, consulting the cache first.
func (c *Client) GetTokenInfo(ctx context.Context, token string) (*TokenInfo, error) {
	if token == "" {
		return nil, errors.NewAuthorizationRequiredError("authorization required", nil)
	}

	if cached, ok := c.cache.Get(cacheKindToken + token); ok {
		return cached.(*TokenInfo), nil
	}

	var info TokenInfo
	if err := c.get(ctx, tokenEndpoint, token, &info); err != nil {
		return nil, err
	}

	c.cache.Put(cacheKindToken+token, &info, c.ttlFor(info.CacheFor))
	return &info, nil
}

// GetMe returns the account record for the credential's owner, consulting
// the cache first.
func (c *Client) GetMe(ctx context.Context, token string) (*AccountInfo, error) {
	if token == "" {
		return nil, errors.NewAuthorizationRequiredError("authorization required", nil)
	}

	if cached, ok := c.cache.Get(cacheKindAccount + token); ok {
		return cached.(*AccountInfo), nil
	}

	var account AccountInfo
	if err := c.get(ctx, meEndpoint, token, &account); err != nil {
		return nil, err
	}

	c.cache.Put(cacheKindAccount+token, &account, c.defaultTTL)
	return &account, nil
}

// ttlFor computes the cache TTL as the smaller of the configured default and
// the upstream-provided cache hint (milliseconds).
func (c *Client) ttlFor(cacheForMillis int64) time.Duration {
	ttl := c.defaultTTL
	if hint := time.Duration(cacheForMillis) * time.Millisecond; hint > 0 && hint < ttl {
		ttl = hint
	}
	return ttl
}

// get issues a GET to the auth service with the credential as the
// authorization header and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, endpoint, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return errors.NewInternalError("failed to create auth service request", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewUpstreamError("error connecting to auth service", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return errors.NewUpstreamError("error reading auth service response", err)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errors.NewUpstreamContentTypeError(
			fmt.Sprintf("auth service returned unexpected content type %q", resp.Header.Get("Content-Type")))
	}

	if resp.StatusCode != http.StatusOK {
		return c.translateError(body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewUpstreamJSONError("auth service returned undecodable JSON", err)
	}
	return nil
}

// translateError maps the auth service error envelope onto the service
// taxonomy. Invalid and expired tokens surface as authorization-required;
// anything else passes the upstream message through as an upstream error.
func (c *Client) translateError(body []byte) error {
	var envelope authErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return errors.NewUpstreamJSONError("auth service returned undecodable JSON error", err)
	}
	if envelope.Error == nil {
		return errors.NewUpstreamJSONError("auth service error response missing error field", nil)
	}

	switch envelope.Error.AppCode {
	case appCodeInvalidToken, appCodeTokenExpired:
		return errors.NewAuthorizationRequiredError(envelope.Error.AppError, nil)
	default:
		return errors.NewUpstreamError(envelope.Error.Message, nil)
	}
}
