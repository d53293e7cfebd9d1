package orcid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/kbase/orcidlink/pkg/errors"
)

const (
	// maxResponseBodySize is the maximum size for reading response bodies (1 MB)
	maxResponseBodySize = 1 << 20

	// defaultScope is the ORCID scope requested for every link.
	defaultScope = "/read-limited openid /activities/update"
)

// OAuth error codes from the fixed RFC 6749 vocabulary that indicate the
// grant holder is not (or no longer) authorized, as opposed to a
// request-shape problem on our side.
var notAuthorizedOAuthErrors = map[string]bool{
	"invalid_grant":       true,
	"unauthorized_client": true,
}

// oAuthError represents an OAuth 2.0 error response as defined in RFC 6749 Section 5.2.
type oAuthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (e *oAuthError) String() string {
	if e.ErrorDescription != "" {
		return fmt.Sprintf("OAuth error %q: %s", e.Error, e.ErrorDescription)
	}
	return fmt.Sprintf("OAuth error %q", e.Error)
}

// Config holds the settings for the ORCID OAuth client.
type Config struct {
	// OAuthBaseURL is the base of the ORCID OAuth API, e.g. https://orcid.org/oauth
	OAuthBaseURL string
	ClientID     string
	ClientSecret string
	// RedirectURI is the fixed continuation URL registered with ORCID.
	RedirectURI string
	// Timeout is the fixed per-call request timeout.
	Timeout time.Duration
}

// Client performs the three external OAuth operations against ORCID.
type Client struct {
	cfg        Config
	httpClient *http.Client
	oauthCfg   *oauth2.Config
}

var _ ExchangeClient = (*Client)(nil)

// NewClient creates an ORCID OAuth client from the given configuration.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		oauthCfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{defaultScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.OAuthBaseURL + "/authorize",
				TokenURL: cfg.OAuthBaseURL + "/token",
			},
		},
	}
}

// AuthCodeURL returns the ORCID consent URL for a linking session. The
// session id rides in the state parameter so the continuation leg can find
// the session again. Unless skipPrompt is set, ORCID is asked to show the
// login prompt even for a browser already signed in.
func (c *Client) AuthCodeURL(sessionID string, skipPrompt bool) string {
	var opts []oauth2.AuthCodeOption
	if !skipPrompt {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "login"))
	}
	return c.oauthCfg.AuthCodeURL(sessionID, opts...)
}

// ExchangeCode swaps an authorization code for a token set.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)
	return c.postToken(ctx, form)
}

// Refresh obtains a fresh token set using a stored refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.postToken(ctx, form)
}

// Revoke invalidates an access token at ORCID. A non-2xx response is an
// error; callers decide whether it blocks their primary operation.
func (c *Client) Revoke(ctx context.Context, accessToken string) error {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("token", accessToken)

	resp, err := c.post(ctx, c.cfg.OAuthBaseURL+"/revoke", form)
	if err != nil {
		return errors.NewUpstreamError("error connecting to ORCID for token revocation", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewUpstreamError(
			fmt.Sprintf("ORCID token revocation failed with status %d", resp.StatusCode), nil)
	}
	return nil
}

// postToken issues a form-encoded POST to the token endpoint and parses the
// success or error response shape.
func (c *Client) postToken(ctx context.Context, form url.Values) (*TokenSet, error) {
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	resp, err := c.post(ctx, c.cfg.OAuthBaseURL+"/token", form)
	if err != nil {
		return nil, errors.NewUpstreamError("error connecting to ORCID", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, errors.NewUpstreamError("error reading ORCID response", err)
	}

	// Distinguish "ORCID is down" from "ORCID changed its response shape":
	// wrong content type, an empty body, and undecodable JSON each get their
	// own error kind.
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, errors.NewUpstreamContentTypeError(
			fmt.Sprintf("ORCID returned unexpected content type %q", resp.Header.Get("Content-Type")))
	}
	if len(body) == 0 {
		return nil, errors.NewUpstreamJSONError("ORCID returned an empty response body", nil)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, translateOAuthError(body)
	}

	var tokens TokenSet
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, errors.NewUpstreamJSONError("ORCID returned undecodable JSON", err)
	}
	if tokens.AccessToken == "" {
		return nil, errors.NewUpstreamJSONError("ORCID returned an empty access_token", nil)
	}
	return &tokens, nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

// translateOAuthError maps the RFC 6749 error vocabulary onto the service
// taxonomy: invalid_grant and unauthorized_client mean the user's grant is
// bad (not authorized); everything else is an upstream error.
func translateOAuthError(body []byte) error {
	var oauthErr oAuthError
	if err := json.Unmarshal(body, &oauthErr); err != nil {
		return errors.NewUpstreamJSONError("ORCID returned undecodable JSON error", err)
	}
	if oauthErr.Error == "" {
		return errors.NewUpstreamJSONError("ORCID error response missing error field", nil)
	}

	if notAuthorizedOAuthErrors[oauthErr.Error] {
		return errors.NewNotAuthorizedError(oauthErr.String())
	}
	return errors.NewUpstreamError(oauthErr.String(), nil)
}
