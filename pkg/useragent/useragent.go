package useragent

import "net/url"

// CompletionFunc is the single-shot completion signal from an agent
// mechanism. Exactly one of redirect or err is meaningful: a non-nil
// redirect is the captured callback URL; otherwise err explains why the
// agent finished without one. Implementations must invoke it at most once,
// and never before Launch has returned nil.
type CompletionFunc func(redirect *url.URL, err error)

// Agent is a self-contained user-agent mechanism. It owns its whole
// lifecycle: Launch starts the presentation and the result arrives solely
// through the completion callback. There is no separate dismissal signal.
type Agent interface {
	// Launch shows the authorization URL and arranges for the redirect to
	// be captured. A non-nil error means the agent could not be started at
	// all; in that case complete will never be invoked.
	Launch(authorizationURL, redirectURI *url.URL, complete CompletionFunc) error

	// Cancel tears the agent down. Any pending completion is suppressed.
	// The callback, if non-nil, runs after teardown finishes.
	Cancel(completion func())
}

// Surface is a visible, dismissable presentation of an authorization URL.
// The redirect result reaches the host through a channel outside this
// package; the surface itself only knows how to open and dismiss.
type Surface interface {
	// Open shows the surface over the authorization URL. A non-nil error
	// means nothing was presented.
	Open(authorizationURL *url.URL) error

	// Dismiss closes the surface. The callback, if non-nil, runs after
	// dismissal finishes, or immediately when there is nothing visible to
	// close.
	Dismiss(animated bool, completion func())
}

// SurfaceFactory produces a Surface for an authorization URL
type SurfaceFactory interface {
	CreateSurface(authorizationURL *url.URL) Surface
}
