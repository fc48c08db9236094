// Package agentflow coordinates a single in-flight authorization flow.
//
// The Coordinator hands a constructed authorization request to an external
// user agent, waits for that agent to redirect back, be dismissed, or fail
// to launch, and reports exactly one terminal outcome to the flow's Session.
//
// # State machine
//
// A Coordinator is either Idle or Presenting. At most one flow is active at
// a time: Present rejects overlapping attempts without touching the new
// session. Every path back to Idle runs through a single clean-up
// transition, which clears the active session and surface references so a
// flow can never receive a second delivery.
//
// # Mechanism selection
//
// At present time the Coordinator picks one of three mechanisms, probed
// through useragent.Capabilities:
//
//  1. an ephemeral session (useragent.Agent), preferred when the redirect
//     URI can be captured in-process;
//  2. a visible surface from the surface factory, whose redirect reaches the
//     host out of band (the host forwards it via ResumeWithRedirect) and
//     whose dismissal arrives via SurfaceDidFinish;
//  3. the system open-URL facility, whose synchronous result is the only
//     signal there is.
//
// # Basic Usage
//
//	req, err := authrequest.New(authrequest.Config{
//		ClientID:         "my-client",
//		AuthorizationURL: "https://idp.example.com/authorize",
//		RedirectURI:      "http://127.0.0.1:8571/callback",
//		Scopes:           []string{"openid"},
//	})
//	if err != nil {
//		return err
//	}
//
//	coordinator := agentflow.New()
//	session := agentflow.NewChannelSession()
//	if !coordinator.Present(req, session) {
//		// session already received the terminal failure
//	}
//	outcome := <-session.Done()
//
// # Concurrency
//
// All state transitions are serialized behind one mutex per Coordinator.
// Completion signals arriving after clean-up re-validate state and flow
// identity before acting, so stale callbacks from a torn-down agent are
// silently dropped. Terminal deliveries run outside the mutex; a session
// callback may start the next flow immediately.
package agentflow
