package authrequest

import (
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/tendant/simple-authagent/pkg/flowerr"
)

// Config contains the parameters for building an authorization request
type Config struct {
	// ClientID is the OAuth2 client identifier
	ClientID string
	// AuthorizationURL is the provider's authorization endpoint
	AuthorizationURL string
	// RedirectURI is where the provider sends the user agent after authorization
	RedirectURI string
	// Scopes requested from the provider
	Scopes []string
	// ExtraParams are additional query parameters added to the authorization URL
	ExtraParams map[string]string
}

// Request represents one authorization attempt. It is immutable after New
// and safe for concurrent reads.
type Request struct {
	oauth    oauth2.Config
	redirect *url.URL
	extra    map[string]string
	state    string
	verifier string
}

// New validates the config and creates a Request with a fresh state
// parameter and PKCE code verifier.
func New(cfg Config) (*Request, error) {
	if cfg.ClientID == "" {
		return nil, flowerr.New(flowerr.ErrCodeInvalidRequest, "client id is required")
	}
	authURL, err := url.Parse(cfg.AuthorizationURL)
	if err != nil || !authURL.IsAbs() {
		return nil, flowerr.Newf(flowerr.ErrCodeInvalidRequest, "authorization url is not absolute: %q", cfg.AuthorizationURL)
	}
	redirect, err := url.Parse(cfg.RedirectURI)
	if err != nil || redirect.Scheme == "" {
		return nil, flowerr.Newf(flowerr.ErrCodeInvalidRequest, "redirect uri is invalid: %q", cfg.RedirectURI)
	}

	extra := make(map[string]string, len(cfg.ExtraParams))
	for k, v := range cfg.ExtraParams {
		extra[k] = v
	}

	return &Request{
		oauth: oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL: cfg.AuthorizationURL,
			},
		},
		redirect: redirect,
		extra:    extra,
		state:    uuid.NewString(),
		verifier: oauth2.GenerateVerifier(),
	}, nil
}

// AuthorizationURL builds the full authorization URL including state,
// S256 PKCE challenge, and any extra parameters.
func (r *Request) AuthorizationURL() (*url.URL, error) {
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(r.verifier)}
	for k, v := range r.extra {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	u, err := url.Parse(r.oauth.AuthCodeURL(r.state, opts...))
	if err != nil {
		return nil, flowerr.Wrap(err, flowerr.ErrCodeInternal, "failed to build authorization url")
	}
	return u, nil
}

// RedirectURI returns a copy of the parsed redirect URI
func (r *Request) RedirectURI() *url.URL {
	u := *r.redirect
	return &u
}

// RedirectScheme returns the scheme of the redirect URI
func (r *Request) RedirectScheme() string {
	return r.redirect.Scheme
}

// State returns the state parameter bound to this request
func (r *Request) State() string {
	return r.state
}

// Verifier returns the PKCE code verifier bound to this request
func (r *Request) Verifier() string {
	return r.verifier
}

// Callback holds the parameters extracted from a validated redirect
type Callback struct {
	// Code is the authorization code returned by the provider
	Code string
	// State is the echoed state parameter
	State string
	// Raw is the full redirect URL as received
	Raw *url.URL
}

// ValidateCallback checks a redirect URL against this request: the state
// must match and the provider must not have returned an error response.
func (r *Request) ValidateCallback(u *url.URL) (*Callback, error) {
	if u == nil {
		return nil, flowerr.New(flowerr.ErrCodeInvalidRequest, "redirect url is nil")
	}
	q := u.Query()

	if errCode := q.Get("error"); errCode != "" {
		err := flowerr.Newf(flowerr.ErrCodeProviderError, "authorization server returned error: %s", errCode)
		if desc := q.Get("error_description"); desc != "" {
			err.WithDetail("error_description", desc)
		}
		return nil, err
	}

	state := q.Get("state")
	if state != r.state {
		return nil, flowerr.New(flowerr.ErrCodeStateMismatch, "state parameter does not match request")
	}

	code := q.Get("code")
	if code == "" {
		return nil, flowerr.New(flowerr.ErrCodeProviderError, "authorization response is missing code")
	}

	return &Callback{
		Code:  code,
		State: state,
		Raw:   u,
	}, nil
}
