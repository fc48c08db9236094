package useragent

import (
	"fmt"
	"net/url"
)

// BrowserSurfaceFactory produces surfaces that open the authorization URL
// in the system browser. It is the default process-wide factory.
type BrowserSurfaceFactory struct {
	opener Opener
}

// NewBrowserSurfaceFactory creates a factory using the given opener, or
// SystemOpener when nil.
func NewBrowserSurfaceFactory(opener Opener) *BrowserSurfaceFactory {
	if opener == nil {
		opener = SystemOpener{}
	}
	return &BrowserSurfaceFactory{opener: opener}
}

// CreateSurface implements SurfaceFactory
func (f *BrowserSurfaceFactory) CreateSurface(authorizationURL *url.URL) Surface {
	return &BrowserSurface{opener: f.opener}
}

// BrowserSurface presents an authorization URL in the system browser. The
// browser window is not under this process's control, so Dismiss has
// nothing visible to close and runs its callback immediately.
type BrowserSurface struct {
	opener Opener
}

// Open implements Surface
func (s *BrowserSurface) Open(authorizationURL *url.URL) error {
	if authorizationURL == nil {
		return fmt.Errorf("authorization url is nil")
	}
	return s.opener.OpenURL(authorizationURL.String())
}

// Dismiss implements Surface
func (s *BrowserSurface) Dismiss(animated bool, completion func()) {
	if completion != nil {
		completion()
	}
}
