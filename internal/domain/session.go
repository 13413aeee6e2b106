package domain

// Session is the authenticated identity observed by the core. It is owned by
// the external identity provider; the server only verifies tokens and carries
// the resulting identity through request context.
type Session struct {
	UID   string
	Email string
}

// Authenticated reports whether the session carries a usable identity.
func (s *Session) Authenticated() bool {
	return s != nil && s.UID != ""
}
