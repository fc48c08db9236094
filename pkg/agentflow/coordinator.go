package agentflow

import (
	"log/slog"
	"net/url"
	"sync"

	"github.com/tendant/simple-authagent/pkg/authrequest"
	"github.com/tendant/simple-authagent/pkg/flowerr"
	"github.com/tendant/simple-authagent/pkg/useragent"
)

// Coordinator owns the lifecycle of the single active authorization flow.
// Create one per presenting context; it outlives many sequential flows but
// never runs two at once.
type Coordinator struct {
	caps     useragent.Capabilities
	opener   useragent.Opener
	factory  useragent.SurfaceFactory
	newAgent func() useragent.Agent
	logger   *slog.Logger

	mu         sync.Mutex
	inProgress bool
	session    Session
	surface    useragent.Surface
	agent      useragent.Agent
	generation uint64
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithCapabilities overrides the mechanism capability probe
func WithCapabilities(caps useragent.Capabilities) Option {
	return func(c *Coordinator) {
		if caps != nil {
			c.caps = caps
		}
	}
}

// WithOpener overrides the last-resort system opener
func WithOpener(opener useragent.Opener) Option {
	return func(c *Coordinator) {
		if opener != nil {
			c.opener = opener
		}
	}
}

// WithSurfaceFactory overrides the process-wide surface factory binding for
// this Coordinator only
func WithSurfaceFactory(factory useragent.SurfaceFactory) Option {
	return func(c *Coordinator) {
		if factory != nil {
			c.factory = factory
		}
	}
}

// WithAgentFactory overrides how ephemeral session agents are constructed
func WithAgentFactory(newAgent func() useragent.Agent) Option {
	return func(c *Coordinator) {
		if newAgent != nil {
			c.newAgent = newAgent
		}
	}
}

// WithLogger sets the logger used for flow transitions
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Coordinator with default mechanisms: the platform
// capability probe, the system opener, and the process-wide surface
// factory binding.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		caps:   useragent.PlatformCapabilities{},
		opener: useragent.SystemOpener{},
		logger: slog.Default(),
	}
	c.newAgent = func() useragent.Agent {
		return useragent.NewEphemeralAgent(c.opener)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) surfaceFactory() useragent.SurfaceFactory {
	if c.factory != nil {
		return c.factory
	}
	return useragent.Factory()
}

// Present starts an authorization flow for req, delivering the terminal
// outcome to sess. It reports whether a user agent was launched: a false
// return means either the flow was rejected because another is already in
// progress (sess is never touched), or the agent could not be opened (sess
// already received the terminal failure, synchronously).
func (c *Coordinator) Present(req *authrequest.Request, sess Session) bool {
	if sess == nil {
		return false
	}

	c.mu.Lock()
	if c.inProgress {
		c.mu.Unlock()
		c.logger.Debug("authorization flow rejected, another is in progress")
		return false
	}
	if req == nil {
		c.mu.Unlock()
		sess.FailWithError(flowerr.AgentOpenFailed(flowerr.New(flowerr.ErrCodeInvalidRequest, "request is nil")))
		return false
	}
	authURL, err := req.AuthorizationURL()
	if err != nil {
		c.mu.Unlock()
		sess.FailWithError(flowerr.AgentOpenFailed(err))
		return false
	}

	c.inProgress = true
	c.session = sess
	c.generation++
	gen := c.generation
	redirectURI := req.RedirectURI()

	switch {
	case c.caps.SupportsEphemeralSession(redirectURI):
		return c.presentEphemeral(gen, authURL, redirectURI)
	case c.caps.SupportsSurfacePresentation():
		return c.presentSurface(gen, authURL)
	default:
		return c.presentSystemOpen(gen, authURL)
	}
}

// presentEphemeral launches the self-contained session mechanism. Called
// with the mutex held; releases it.
func (c *Coordinator) presentEphemeral(gen uint64, authURL, redirectURI *url.URL) bool {
	agent := c.newAgent()
	c.agent = agent
	c.mu.Unlock()

	err := agent.Launch(authURL, redirectURI, func(redirect *url.URL, agentErr error) {
		if redirect != nil {
			c.resolveFlow(gen, redirect, nil)
			return
		}
		c.resolveFlow(gen, nil, flowerr.UserCanceled(agentErr))
	})
	if err != nil {
		if s := c.takeSession(gen); s != nil {
			s.FailWithError(flowerr.AgentOpenFailed(err))
			return false
		}
		// The completion already resolved the flow; the launch stands.
		return true
	}
	c.logger.Debug("authorization flow presenting", "mechanism", "ephemeral")
	return true
}

// presentSurface shows a visible surface. Called with the mutex held;
// releases it.
func (c *Coordinator) presentSurface(gen uint64, authURL *url.URL) bool {
	surface := c.surfaceFactory().CreateSurface(authURL)
	c.surface = surface
	c.mu.Unlock()

	if err := surface.Open(authURL); err != nil {
		if s := c.takeSession(gen); s != nil {
			s.FailWithError(flowerr.AgentOpenFailed(err))
		}
		return false
	}
	c.logger.Debug("authorization flow presenting", "mechanism", "surface")
	return true
}

// presentSystemOpen falls back to the generic open-URL facility. Its
// synchronous result is the only signal; a redirect can still be forwarded
// through ResumeWithRedirect, but nothing else will ever call back. Called
// with the mutex held; releases it.
func (c *Coordinator) presentSystemOpen(gen uint64, authURL *url.URL) bool {
	c.mu.Unlock()

	if err := c.opener.OpenURL(authURL.String()); err != nil {
		if s := c.takeSession(gen); s != nil {
			s.FailWithError(flowerr.AgentOpenFailed(err))
		}
		return false
	}
	c.logger.Debug("authorization flow presenting", "mechanism", "system-open")
	return true
}

// ResumeWithRedirect routes a captured redirect URL to the active session.
// Hosts of surface-based flows call this when the external redirect reaches
// the application. It reports whether the redirect was consumed; while Idle
// it is a no-op.
func (c *Coordinator) ResumeWithRedirect(redirect *url.URL) bool {
	c.mu.Lock()
	if !c.inProgress {
		c.mu.Unlock()
		c.logger.Debug("redirect ignored, no flow in progress")
		return false
	}
	sess := c.session
	c.cleanUpLocked()
	c.mu.Unlock()

	sess.ResumeWithURL(redirect)
	return true
}

// SurfaceDidFinish handles the host's signal that a presented surface
// finished without ever producing a redirect. Signals from a surface other
// than the active one, or arriving while Idle, are stale artifacts of
// asynchronous teardown and are dropped.
func (c *Coordinator) SurfaceDidFinish(s useragent.Surface) {
	c.mu.Lock()
	if !c.inProgress || c.surface == nil || c.surface != s {
		active := c.inProgress
		c.mu.Unlock()
		c.logger.Debug("surface finish ignored", "active", active)
		return
	}
	sess := c.session
	c.cleanUpLocked()
	c.mu.Unlock()

	sess.FailWithError(flowerr.ProgramCanceled())
}

// Dismiss cancels the active flow, if any. Clean-up happens before the
// agent is torn down, so the session cannot receive a late delivery; no
// terminal outcome is reported for a dismissed flow. The completion
// callback, if non-nil, runs after dismissal resolves, or immediately when
// there is nothing to dismiss.
func (c *Coordinator) Dismiss(animated bool, completion func()) {
	c.mu.Lock()
	if !c.inProgress {
		c.mu.Unlock()
		if completion != nil {
			completion()
		}
		return
	}
	surface := c.surface
	agent := c.agent
	c.cleanUpLocked()
	c.mu.Unlock()

	switch {
	case surface != nil:
		surface.Dismiss(animated, completion)
	case agent != nil:
		agent.Cancel(completion)
	default:
		if completion != nil {
			completion()
		}
	}
}

// InProgress reports whether a flow is currently presenting
func (c *Coordinator) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inProgress
}

// resolveFlow delivers an asynchronous agent outcome for the flow
// identified by gen. Outcomes for superseded or already-resolved flows are
// dropped.
func (c *Coordinator) resolveFlow(gen uint64, redirect *url.URL, err error) {
	sess := c.takeSession(gen)
	if sess == nil {
		c.logger.Debug("agent completion ignored, flow already resolved")
		return
	}
	if err != nil {
		sess.FailWithError(err)
		return
	}
	sess.ResumeWithURL(redirect)
}

// takeSession ends the flow identified by gen and returns the session the
// terminal outcome belongs to, or nil when that flow was already resolved
// or superseded.
func (c *Coordinator) takeSession(gen uint64) Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inProgress || gen != c.generation {
		return nil
	}
	sess := c.session
	c.cleanUpLocked()
	return sess
}

// cleanUpLocked is the single transition back to Idle. Idempotent; callers
// must hold the mutex.
func (c *Coordinator) cleanUpLocked() {
	c.surface = nil
	c.agent = nil
	c.session = nil
	c.inProgress = false
}
