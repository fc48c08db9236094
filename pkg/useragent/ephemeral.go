package useragent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-authagent/pkg/flowerr"
)

const redirectResponsePage = `<!DOCTYPE html>
<html>
<head><title>Authorization Complete</title></head>
<body>
  <p>Authorization complete. You may close this window and return to the application.</p>
</body>
</html>`

// shutdownTimeout bounds how long the redirect listener may take to drain
const shutdownTimeout = 3 * time.Second

// EphemeralAgent is the self-contained user-agent mechanism: it binds a
// loopback HTTP listener on the redirect URI, opens the system browser at
// the authorization URL, and reports the captured redirect (or failure)
// through a single completion callback. Only loopback http redirect URIs
// are supported.
type EphemeralAgent struct {
	opener Opener

	mu       sync.Mutex
	srv      *http.Server
	done     bool
	complete CompletionFunc
}

// NewEphemeralAgent creates an agent using the given opener, or
// SystemOpener when nil.
func NewEphemeralAgent(opener Opener) *EphemeralAgent {
	if opener == nil {
		opener = SystemOpener{}
	}
	return &EphemeralAgent{opener: opener}
}

// Launch implements Agent. The listener is bound before the browser opens
// so the redirect can never race the agent's readiness.
func (a *EphemeralAgent) Launch(authorizationURL, redirectURI *url.URL, complete CompletionFunc) error {
	if authorizationURL == nil {
		return fmt.Errorf("authorization url is nil")
	}
	if complete == nil {
		return fmt.Errorf("completion callback is required")
	}
	if redirectURI == nil || !IsLoopback(redirectURI) {
		return fmt.Errorf("redirect uri is not a loopback http url: %v", redirectURI)
	}

	addr := listenAddr(redirectURI)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return flowerr.Wrapf(err, flowerr.ErrCodeListenFailed, "cannot listen on %s", addr)
	}

	path := redirectURI.EscapedPath()
	if path == "" {
		path = "/"
	}
	r := chi.NewRouter()
	r.Get(path, a.handleRedirect(redirectURI))

	srv := &http.Server{Handler: r}
	a.mu.Lock()
	a.srv = srv
	a.done = false
	a.complete = complete
	a.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("redirect listener stopped unexpectedly", "addr", addr, "error", err)
		}
	}()

	if err := a.opener.OpenURL(authorizationURL.String()); err != nil {
		// If a redirect somehow arrived already, the completion won and the
		// launch counts as successful.
		if !a.suppress() {
			return nil
		}
		go shutdownServer(srv)
		return fmt.Errorf("failed to open browser: %w", err)
	}

	slog.Debug("ephemeral session launched", "listen", addr, "path", path)
	return nil
}

// Cancel implements Agent
func (a *EphemeralAgent) Cancel(completion func()) {
	a.mu.Lock()
	a.done = true
	a.complete = nil
	srv := a.srv
	a.srv = nil
	a.mu.Unlock()

	if srv != nil {
		shutdownServer(srv)
	}
	if completion != nil {
		completion()
	}
}

func (a *EphemeralAgent) handleRedirect(redirectURI *url.URL) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := *redirectURI
		u.RawQuery = r.URL.RawQuery
		render.Status(r, http.StatusOK)
		render.HTML(w, r, redirectResponsePage)
		a.finish(&u, nil)
	}
}

// finish delivers the outcome exactly once and tears the listener down
func (a *EphemeralAgent) finish(redirect *url.URL, err error) {
	a.mu.Lock()
	if a.done {
		a.mu.Unlock()
		return
	}
	a.done = true
	complete := a.complete
	a.complete = nil
	srv := a.srv
	a.srv = nil
	a.mu.Unlock()

	if srv != nil {
		go shutdownServer(srv)
	}
	if complete != nil {
		complete(redirect, err)
	}
}

// suppress marks the agent done without delivering. Reports whether this
// call was the one that ended the pending completion.
func (a *EphemeralAgent) suppress() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return false
	}
	a.done = true
	a.complete = nil
	a.srv = nil
	return true
}

func shutdownServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		srv.Close()
	}
}

// IsLoopback reports whether u is an http URL addressing the loopback
// interface.
func IsLoopback(u *url.URL) bool {
	if u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func listenAddr(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = "80"
	}
	return net.JoinHostPort(u.Hostname(), port)
}
