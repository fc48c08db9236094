package agentflow

import (
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/tendant/simple-authagent/pkg/authrequest"
	"github.com/tendant/simple-authagent/pkg/flowerr"
	"github.com/tendant/simple-authagent/pkg/useragent"
)

// Mock implementations for testing

type spySession struct {
	mu      sync.Mutex
	resumed []*url.URL
	failed  []error
}

func (s *spySession) ResumeWithURL(redirect *url.URL) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumed = append(s.resumed, redirect)
}

func (s *spySession) FailWithError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, err)
}

func (s *spySession) deliveries() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resumed), len(s.failed)
}

type fakeCaps struct {
	ephemeral bool
	surface   bool
}

func (f fakeCaps) SupportsEphemeralSession(redirectURI *url.URL) bool {
	return f.ephemeral
}

func (f fakeCaps) SupportsSurfacePresentation() bool {
	return f.surface
}

type fakeSurface struct {
	openErr      error
	opened       []*url.URL
	dismissed    bool
	deferDismiss bool
	pending      func()
}

func (s *fakeSurface) Open(authorizationURL *url.URL) error {
	s.opened = append(s.opened, authorizationURL)
	return s.openErr
}

func (s *fakeSurface) Dismiss(animated bool, completion func()) {
	s.dismissed = true
	if s.deferDismiss {
		s.pending = completion
		return
	}
	if completion != nil {
		completion()
	}
}

type fakeSurfaceFactory struct {
	next    *fakeSurface
	created []*fakeSurface
}

func (f *fakeSurfaceFactory) CreateSurface(authorizationURL *url.URL) useragent.Surface {
	s := f.next
	if s == nil {
		s = &fakeSurface{}
	}
	f.next = nil
	f.created = append(f.created, s)
	return s
}

type fakeAgent struct {
	launchErr error
	complete  useragent.CompletionFunc
	canceled  bool
}

func (a *fakeAgent) Launch(authorizationURL, redirectURI *url.URL, complete useragent.CompletionFunc) error {
	if a.launchErr != nil {
		return a.launchErr
	}
	a.complete = complete
	return nil
}

func (a *fakeAgent) Cancel(completion func()) {
	a.canceled = true
	if completion != nil {
		completion()
	}
}

type fakeOpener struct {
	err    error
	opened []string
}

func (o *fakeOpener) OpenURL(url string) error {
	o.opened = append(o.opened, url)
	return o.err
}

func newTestRequest(t *testing.T) *authrequest.Request {
	t.Helper()
	req, err := authrequest.New(authrequest.Config{
		ClientID:         "test-client",
		AuthorizationURL: "https://idp.example.com/authorize",
		RedirectURI:      "http://127.0.0.1:8571/callback",
		Scopes:           []string{"openid"},
	})
	if err != nil {
		t.Fatalf("authrequest.New() failed: %v", err)
	}
	return req
}

func newEphemeralCoordinator(agent *fakeAgent) *Coordinator {
	return New(
		WithCapabilities(fakeCaps{ephemeral: true}),
		WithAgentFactory(func() useragent.Agent { return agent }),
	)
}

func newSurfaceCoordinator(factory *fakeSurfaceFactory) *Coordinator {
	return New(
		WithCapabilities(fakeCaps{surface: true}),
		WithSurfaceFactory(factory),
	)
}

func TestPresentRejectsOverlap(t *testing.T) {
	agent := &fakeAgent{}
	c := newEphemeralCoordinator(agent)

	sessionA := &spySession{}
	if !c.Present(newTestRequest(t), sessionA) {
		t.Fatal("first Present() should succeed")
	}

	sessionB := &spySession{}
	if c.Present(newTestRequest(t), sessionB) {
		t.Error("overlapping Present() should be rejected")
	}
	if r, f := sessionB.deliveries(); r != 0 || f != 0 {
		t.Errorf("rejected session must never be touched: resumed=%d failed=%d", r, f)
	}

	// The pre-existing flow is unaffected and still resolvable.
	redirect, _ := url.Parse("http://127.0.0.1:8571/callback?code=abc")
	agent.complete(redirect, nil)
	if r, f := sessionA.deliveries(); r != 1 || f != 0 {
		t.Errorf("original flow should still resolve: resumed=%d failed=%d", r, f)
	}
}

func TestRedirectDeliversExactlyOnce(t *testing.T) {
	agent := &fakeAgent{}
	c := newEphemeralCoordinator(agent)
	session := &spySession{}

	if !c.Present(newTestRequest(t), session) {
		t.Fatal("Present() should succeed")
	}

	redirect, _ := url.Parse("https://app/cb?code=123")
	agent.complete(redirect, nil)

	if r, f := session.deliveries(); r != 1 || f != 0 {
		t.Fatalf("expected single resume: resumed=%d failed=%d", r, f)
	}
	if got := session.resumed[0].String(); got != "https://app/cb?code=123" {
		t.Errorf("resumed with %q, want %q", got, "https://app/cb?code=123")
	}
	if c.InProgress() {
		t.Error("coordinator should be idle after delivery")
	}

	// A duplicate completion from the agent is dropped.
	agent.complete(redirect, nil)
	if r, f := session.deliveries(); r != 1 || f != 0 {
		t.Errorf("duplicate completion must be ignored: resumed=%d failed=%d", r, f)
	}

	// A subsequent flow is accepted.
	next := &fakeAgent{}
	c.newAgent = func() useragent.Agent { return next }
	sessionB := &spySession{}
	if !c.Present(newTestRequest(t), sessionB) {
		t.Error("Present() after delivery should succeed")
	}
}

func TestAgentErrorDeliversUserCanceled(t *testing.T) {
	agent := &fakeAgent{}
	c := newEphemeralCoordinator(agent)
	session := &spySession{}

	if !c.Present(newTestRequest(t), session) {
		t.Fatal("Present() should succeed")
	}

	underlying := errors.New("window closed")
	agent.complete(nil, underlying)

	if r, f := session.deliveries(); r != 0 || f != 1 {
		t.Fatalf("expected single failure: resumed=%d failed=%d", r, f)
	}
	if !flowerr.IsCode(session.failed[0], flowerr.ErrCodeUserCanceled) {
		t.Errorf("expected USER_CANCELED, got %v", session.failed[0])
	}
	if !errors.Is(session.failed[0], underlying) {
		t.Error("underlying agent error should be wrapped")
	}
}

func TestAgentOpenFailure(t *testing.T) {
	agent := &fakeAgent{launchErr: errors.New("no browser")}
	c := newEphemeralCoordinator(agent)
	session := &spySession{}

	if c.Present(newTestRequest(t), session) {
		t.Error("Present() should report launch failure")
	}
	if c.InProgress() {
		t.Error("coordinator should be idle immediately after a failed launch")
	}
	if r, f := session.deliveries(); r != 0 || f != 1 {
		t.Fatalf("expected single synchronous failure: resumed=%d failed=%d", r, f)
	}
	if !flowerr.IsCode(session.failed[0], flowerr.ErrCodeAgentOpen) {
		t.Errorf("expected AGENT_OPEN_ERROR, got %v", session.failed[0])
	}
}

func TestSurfaceFinishDeliversProgramCanceled(t *testing.T) {
	factory := &fakeSurfaceFactory{}
	c := newSurfaceCoordinator(factory)
	session := &spySession{}

	if !c.Present(newTestRequest(t), session) {
		t.Fatal("Present() should succeed")
	}
	surface := factory.created[0]
	if len(surface.opened) != 1 {
		t.Fatalf("surface should have been opened once, got %d", len(surface.opened))
	}

	c.SurfaceDidFinish(surface)

	if r, f := session.deliveries(); r != 0 || f != 1 {
		t.Fatalf("expected single failure: resumed=%d failed=%d", r, f)
	}
	if !flowerr.IsCode(session.failed[0], flowerr.ErrCodeProgramCanceled) {
		t.Errorf("expected PROGRAM_CANCELED, got %v", session.failed[0])
	}
	if c.InProgress() {
		t.Error("coordinator should be idle after surface finish")
	}
}

func TestStaleSurfaceFinishIgnored(t *testing.T) {
	factory := &fakeSurfaceFactory{}
	c := newSurfaceCoordinator(factory)

	sessionA := &spySession{}
	if !c.Present(newTestRequest(t), sessionA) {
		t.Fatal("Present() should succeed")
	}
	stale := factory.created[0]
	c.SurfaceDidFinish(stale)

	sessionB := &spySession{}
	if !c.Present(newTestRequest(t), sessionB) {
		t.Fatal("second Present() should succeed")
	}

	// The stale handle from the torn-down flow must not disturb the new one.
	c.SurfaceDidFinish(stale)

	if r, f := sessionB.deliveries(); r != 0 || f != 0 {
		t.Errorf("stale surface finish must not touch the active session: resumed=%d failed=%d", r, f)
	}
	if !c.InProgress() {
		t.Error("active flow should survive a stale surface finish")
	}
}

func TestSurfaceFinishWhileIdleIsNoop(t *testing.T) {
	factory := &fakeSurfaceFactory{}
	c := newSurfaceCoordinator(factory)

	c.SurfaceDidFinish(&fakeSurface{})

	if c.InProgress() {
		t.Error("coordinator should stay idle")
	}
}

func TestSurfaceOpenFailure(t *testing.T) {
	factory := &fakeSurfaceFactory{next: &fakeSurface{openErr: errors.New("display unavailable")}}
	c := newSurfaceCoordinator(factory)
	session := &spySession{}

	if c.Present(newTestRequest(t), session) {
		t.Error("Present() should report open failure")
	}
	if r, f := session.deliveries(); r != 0 || f != 1 {
		t.Fatalf("expected single failure: resumed=%d failed=%d", r, f)
	}
	if !flowerr.IsCode(session.failed[0], flowerr.ErrCodeAgentOpen) {
		t.Errorf("expected AGENT_OPEN_ERROR, got %v", session.failed[0])
	}
}

func TestDismissWhileIdle(t *testing.T) {
	c := newSurfaceCoordinator(&fakeSurfaceFactory{})

	invoked := false
	c.Dismiss(true, func() { invoked = true })
	if !invoked {
		t.Error("completion should run even when idle")
	}

	// No completion callback is fine too.
	c.Dismiss(false, nil)
}

func TestDismissWhilePresenting(t *testing.T) {
	factory := &fakeSurfaceFactory{next: &fakeSurface{deferDismiss: true}}
	c := newSurfaceCoordinator(factory)
	session := &spySession{}

	if !c.Present(newTestRequest(t), session) {
		t.Fatal("Present() should succeed")
	}
	surface := factory.created[0]

	invoked := false
	c.Dismiss(true, func() { invoked = true })

	if c.InProgress() {
		t.Error("coordinator should transition to idle before the surface dismissal resolves")
	}
	if !surface.dismissed {
		t.Error("surface should have been asked to dismiss")
	}
	if invoked {
		t.Error("completion should not run before dismissal resolves")
	}

	surface.pending()
	if !invoked {
		t.Error("completion should run after dismissal resolves")
	}

	if r, f := session.deliveries(); r != 0 || f != 0 {
		t.Errorf("dismissed flow must not deliver: resumed=%d failed=%d", r, f)
	}

	// A late finish signal from the dismissed surface is dropped.
	c.SurfaceDidFinish(surface)
	if r, f := session.deliveries(); r != 0 || f != 0 {
		t.Errorf("late surface finish must be ignored: resumed=%d failed=%d", r, f)
	}
}

func TestDismissCancelsEphemeralAgent(t *testing.T) {
	agent := &fakeAgent{}
	c := newEphemeralCoordinator(agent)
	session := &spySession{}

	if !c.Present(newTestRequest(t), session) {
		t.Fatal("Present() should succeed")
	}

	invoked := false
	c.Dismiss(false, func() { invoked = true })

	if !agent.canceled {
		t.Error("agent should have been canceled")
	}
	if !invoked {
		t.Error("completion should run after cancel resolves")
	}
	if r, f := session.deliveries(); r != 0 || f != 0 {
		t.Errorf("dismissed flow must not deliver: resumed=%d failed=%d", r, f)
	}
}

func TestStaleAgentCompletionIgnored(t *testing.T) {
	first := &fakeAgent{}
	c := newEphemeralCoordinator(first)

	sessionA := &spySession{}
	if !c.Present(newTestRequest(t), sessionA) {
		t.Fatal("Present() should succeed")
	}
	c.Dismiss(false, nil)

	second := &fakeAgent{}
	c.newAgent = func() useragent.Agent { return second }
	sessionB := &spySession{}
	if !c.Present(newTestRequest(t), sessionB) {
		t.Fatal("second Present() should succeed")
	}

	// The first flow's completion fires late; the generation check drops it.
	redirect, _ := url.Parse("http://127.0.0.1:8571/callback?code=stale")
	first.complete(redirect, nil)

	if r, f := sessionA.deliveries(); r != 0 || f != 0 {
		t.Errorf("dismissed session must not be delivered: resumed=%d failed=%d", r, f)
	}
	if r, f := sessionB.deliveries(); r != 0 || f != 0 {
		t.Errorf("active session must not see a stale completion: resumed=%d failed=%d", r, f)
	}
	if !c.InProgress() {
		t.Error("active flow should survive a stale completion")
	}
}

func TestSystemOpenMechanism(t *testing.T) {
	opener := &fakeOpener{}
	c := New(
		WithCapabilities(fakeCaps{}),
		WithOpener(opener),
	)
	session := &spySession{}

	if !c.Present(newTestRequest(t), session) {
		t.Fatal("Present() should report the synchronous open result")
	}
	if len(opener.opened) != 1 {
		t.Fatalf("opener should have been invoked once, got %d", len(opener.opened))
	}

	// Delivery is out of band; the host may still forward the redirect.
	redirect, _ := url.Parse("http://127.0.0.1:8571/callback?code=xyz")
	if !c.ResumeWithRedirect(redirect) {
		t.Error("forwarded redirect should be consumed")
	}
	if r, f := session.deliveries(); r != 1 || f != 0 {
		t.Errorf("expected single resume: resumed=%d failed=%d", r, f)
	}
}

func TestSystemOpenFailure(t *testing.T) {
	opener := &fakeOpener{err: errors.New("no handler registered")}
	c := New(
		WithCapabilities(fakeCaps{}),
		WithOpener(opener),
	)
	session := &spySession{}

	if c.Present(newTestRequest(t), session) {
		t.Error("Present() should report open failure")
	}
	if c.InProgress() {
		t.Error("coordinator should be idle after a failed open")
	}
	if r, f := session.deliveries(); r != 0 || f != 1 {
		t.Fatalf("expected single failure: resumed=%d failed=%d", r, f)
	}
	if !flowerr.IsCode(session.failed[0], flowerr.ErrCodeAgentOpen) {
		t.Errorf("expected AGENT_OPEN_ERROR, got %v", session.failed[0])
	}
}

func TestResumeWhileIdleIsNoop(t *testing.T) {
	c := newSurfaceCoordinator(&fakeSurfaceFactory{})

	redirect, _ := url.Parse("http://127.0.0.1:8571/callback?code=abc")
	if c.ResumeWithRedirect(redirect) {
		t.Error("redirect while idle must not be consumed")
	}
}

// reentrantSession starts the next flow from inside its terminal callback
type reentrantSession struct {
	spySession
	next func()
}

func (s *reentrantSession) FailWithError(err error) {
	s.spySession.FailWithError(err)
	s.next()
}

func TestDeliveryAllowsReentrantPresent(t *testing.T) {
	factory := &fakeSurfaceFactory{}
	c := newSurfaceCoordinator(factory)

	sessionB := &spySession{}
	sessionA := &reentrantSession{}
	sessionA.next = func() {
		if !c.Present(newTestRequest(t), sessionB) {
			t.Error("Present() from inside a terminal callback should succeed")
		}
	}

	if !c.Present(newTestRequest(t), sessionA) {
		t.Fatal("Present() should succeed")
	}
	c.SurfaceDidFinish(factory.created[0])

	if !c.InProgress() {
		t.Error("re-entrant flow should be presenting")
	}
}
