// Package useragent provides the mechanisms that show an authorization URL
// to the user and report the outcome.
//
// Three mechanisms are available, selected at present time by a capability
// probe:
//
//   - EphemeralAgent: a self-contained mechanism that binds a loopback HTTP
//     listener on the redirect URI, opens the system browser, and reports its
//     outcome through a single completion callback.
//   - Surface: a visible, dismissable presentation produced by the
//     process-wide SurfaceFactory binding. The redirect reaches the host out
//     of band; the surface only reports when it finished without one.
//   - Opener: the last-resort system open-URL facility with no completion
//     channel at all.
//
// The SurfaceFactory binding is process-wide and replaceable via SetFactory;
// a default browser-backed factory is created lazily on first use.
package useragent
