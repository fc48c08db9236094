// Package authrequest constructs OAuth2 authorization requests.
//
// A Request owns the state parameter and PKCE verifier for one authorization
// attempt and knows how to build the authorization URL and validate the
// redirect that eventually comes back. Token exchange is out of scope; the
// verifier is exposed so a downstream exchanger can use it.
package authrequest
