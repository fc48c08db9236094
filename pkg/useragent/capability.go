package useragent

import "net/url"

// Capabilities answers which user-agent mechanisms the current environment
// supports. The coordinator consults it once per presented flow.
type Capabilities interface {
	// SupportsEphemeralSession reports whether a self-contained ephemeral
	// session can capture redirects to the given URI.
	SupportsEphemeralSession(redirectURI *url.URL) bool

	// SupportsSurfacePresentation reports whether a visible surface can be
	// presented.
	SupportsSurfacePresentation() bool
}

// PlatformCapabilities is the default probe: ephemeral sessions work for
// loopback http redirect URIs, and a surface can always be presented
// because the process-wide factory binding defaults lazily.
type PlatformCapabilities struct{}

// SupportsEphemeralSession implements Capabilities
func (PlatformCapabilities) SupportsEphemeralSession(redirectURI *url.URL) bool {
	return redirectURI != nil && IsLoopback(redirectURI)
}

// SupportsSurfacePresentation implements Capabilities
func (PlatformCapabilities) SupportsSurfacePresentation() bool {
	return true
}
