package client

import "sync"

// Session holds the bearer token and the auth recovery hook. Several
// in-flight requests can all come back 401 when a token expires; the hook
// fires exactly once per token so the frontend runs its logout flow a
// single time instead of once per rejected call.
type Session struct {
	mu       sync.Mutex
	token    string
	signaled bool

	// OnAuthExpired is called (from the goroutine that saw the first
	// rejection) when the server stops accepting the current token. May be
	// nil.
	OnAuthExpired func()
}

// NewSession returns an empty, unauthenticated session.
func NewSession() *Session {
	return &Session{}
}

// Token returns the current bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetToken installs a fresh token and re-arms the recovery hook.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.signaled = false
}

// Clear drops the token without firing the hook; the user chose to leave.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.signaled = false
}

// reportExpired marks the current token rejected and fires OnAuthExpired if
// this is the first rejection since the token was installed.
func (s *Session) reportExpired() {
	s.mu.Lock()
	if s.signaled {
		s.mu.Unlock()
		return
	}
	s.signaled = true
	s.token = ""
	hook := s.OnAuthExpired
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
}
