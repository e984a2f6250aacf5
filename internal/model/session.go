package model

// SessionNamespace is the fixed key the persisted session is stored under.
const SessionNamespace = "auth-storage"

// Session is the in-memory authentication state.
type Session struct {
	User            *User
	Token           string
	IsAuthenticated bool
	IsLoading       bool
}

// Persisted returns the durable subset of the session.
func (s Session) Persisted() PersistedSession {
	var u *User
	if s.User != nil {
		c := *s.User
		u = &c
	}
	return PersistedSession{Token: s.Token, User: u, IsAuthenticated: s.IsAuthenticated}
}

// PersistedSession is exactly what survives a restart; transient flags never persist.
type PersistedSession struct {
	Token           string `json:"token,omitempty"`
	User            *User  `json:"user,omitempty"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// Consistent reports whether the record satisfies the authentication invariant.
func (p PersistedSession) Consistent() bool {
	if !p.IsAuthenticated {
		return true
	}
	return p.Token != "" && p.User != nil
}

// Credentials are the login input.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up input.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Credentials returns the login input matching the registration.
func (r Registration) Credentials() Credentials {
	return Credentials{Email: r.Email, Password: r.Password}
}

// AddCardRequest attaches a catalog card to the current user's collection.
type AddCardRequest struct {
	CardID    int64     `json:"cardId"`
	Condition Condition `json:"condition,omitempty"`
}

// CreateTradeRequest creates a trade offer.
type CreateTradeRequest struct {
	OfferingCards  []int64 `json:"offeringCards"`
	ReceivingCards []int64 `json:"receivingCards"`
	Description    string  `json:"description,omitempty"`
}
