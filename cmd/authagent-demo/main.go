package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tendant/simple-authagent/pkg/agentflow"
	"github.com/tendant/simple-authagent/pkg/authrequest"
	"github.com/tendant/simple-authagent/pkg/useragent"
)

type DemoConfig struct {
	IdpPort      uint16 `env:"DEMO_IDP_PORT" env-default:"4001"`
	CallbackPort uint16 `env:"DEMO_CALLBACK_PORT" env-default:"4002"`
	ClientID     string `env:"DEMO_CLIENT_ID" env-default:"demo-client"`
	Scopes       string `env:"DEMO_SCOPES" env-default:"openid,profile"`
	// OpenBrowser opens the real system browser instead of the built-in
	// automatic user agent
	OpenBrowser bool `env:"DEMO_OPEN_BROWSER" env-default:"false"`
}

func main() {
	var config DemoConfig
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("failed to read config", "error", err)
		os.Exit(1)
	}

	idpAddr := fmt.Sprintf("127.0.0.1:%d", config.IdpPort)
	startFakeIdp(idpAddr)

	req, err := authrequest.New(authrequest.Config{
		ClientID:         config.ClientID,
		AuthorizationURL: fmt.Sprintf("http://%s/authorize", idpAddr),
		RedirectURI:      fmt.Sprintf("http://127.0.0.1:%d/callback", config.CallbackPort),
		Scopes:           strings.Split(config.Scopes, ","),
	})
	if err != nil {
		slog.Error("failed to build authorization request", "error", err)
		os.Exit(1)
	}

	var opener useragent.Opener = useragent.SystemOpener{}
	if !config.OpenBrowser {
		opener = autoUserAgent()
	}

	coordinator := agentflow.New(agentflow.WithOpener(opener))
	session := agentflow.NewChannelSession()

	slog.Info("presenting authorization flow", "client_id", config.ClientID, "idp", idpAddr)
	if !coordinator.Present(req, session) {
		outcome := <-session.Done()
		slog.Error("authorization agent could not be opened", "error", outcome.Err)
		os.Exit(1)
	}

	outcome := <-session.Done()
	if outcome.Err != nil {
		slog.Error("authorization flow failed", "error", outcome.Err)
		os.Exit(1)
	}

	callback, err := req.ValidateCallback(outcome.Redirect)
	if err != nil {
		slog.Error("redirect validation failed", "error", err)
		os.Exit(1)
	}

	slog.Info("authorization complete",
		"code", callback.Code,
		"state", callback.State,
		"redirect", callback.Raw.String())
	slog.Info("next step would be token exchange", "verifier_length", len(req.Verifier()))
}

// startFakeIdp runs a minimal authorization endpoint that immediately
// approves every request and redirects back with a fresh code.
func startFakeIdp(addr string) {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/authorize", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		redirectURI := q.Get("redirect_uri")
		if redirectURI == "" {
			http.Error(w, "missing redirect_uri", http.StatusBadRequest)
			return
		}
		sep := "?"
		if strings.Contains(redirectURI, "?") {
			sep = "&"
		}
		location := fmt.Sprintf("%s%scode=%s&state=%s", redirectURI, sep, uuid.NewString(), q.Get("state"))
		http.Redirect(w, req, location, http.StatusFound)
	})

	go func() {
		if err := http.ListenAndServe(addr, r); err != nil {
			slog.Error("fake idp stopped", "error", err)
			os.Exit(1)
		}
	}()
}

// autoUserAgent simulates the user approving the request: it fetches the
// authorization URL and follows the provider's redirect back to the
// loopback listener.
func autoUserAgent() useragent.Opener {
	client := &http.Client{Timeout: 10 * time.Second}
	return useragent.OpenerFunc(func(url string) error {
		go func() {
			resp, err := client.Get(url)
			if err != nil {
				slog.Warn("automatic user agent failed", "error", err)
				return
			}
			resp.Body.Close()
		}()
		return nil
	})
}
