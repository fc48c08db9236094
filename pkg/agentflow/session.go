package agentflow

import (
	"net/url"
	"sync"
)

// Session represents one pending flow's result expectation. The Coordinator
// invokes exactly one of the two entry points, exactly once, for every
// accepted Present call.
type Session interface {
	// ResumeWithURL delivers the captured redirect URL
	ResumeWithURL(redirect *url.URL)

	// FailWithError delivers a terminal *flowerr.Error
	FailWithError(err error)
}

// Outcome is the terminal result of a flow as seen by a ChannelSession.
// Exactly one of Redirect or Err is set.
type Outcome struct {
	Redirect *url.URL
	Err      error
}

// ChannelSession is a Session that delivers its terminal outcome on a
// channel, for callers that prefer to block rather than register callbacks.
type ChannelSession struct {
	once sync.Once
	ch   chan Outcome
}

// NewChannelSession creates a ChannelSession
func NewChannelSession() *ChannelSession {
	return &ChannelSession{ch: make(chan Outcome, 1)}
}

// ResumeWithURL implements Session
func (s *ChannelSession) ResumeWithURL(redirect *url.URL) {
	s.once.Do(func() {
		s.ch <- Outcome{Redirect: redirect}
	})
}

// FailWithError implements Session
func (s *ChannelSession) FailWithError(err error) {
	s.once.Do(func() {
		s.ch <- Outcome{Err: err}
	})
}

// Done returns the channel the terminal outcome arrives on
func (s *ChannelSession) Done() <-chan Outcome {
	return s.ch
}
