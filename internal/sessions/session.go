package sessions

import (
	"time"

	"github.com/kentsikayet/portal/internal/claims"
)

// Session is the durable login state for one browser. Its persisted fields
// mirror the keys the portal keeps per browser: token, tokenExpiry and userName.
type Session struct {
	ID          string    `bson:"_id" json:"id"`
	Token       string    `bson:"token" json:"token"`
	Expiry      time.Time `bson:"tokenExpiry" json:"tokenExpiry"`
	DisplayName string    `bson:"userName" json:"userName"`
}

// Claims decodes the session token. A malformed token yields empty claims.
func (s *Session) Claims() claims.Claims {
	if s == nil {
		return claims.Claims{}
	}
	c, _ := claims.Decode(s.Token)
	return c
}

// Deadline is the earlier of the stored expiry and the token's own exp claim.
func (s *Session) Deadline() time.Time {
	d := s.Expiry
	if exp := s.Claims().ExpiresAt; !exp.IsZero() && (d.IsZero() || exp.Before(d)) {
		d = exp
	}
	return d
}

// Reason explains why a session ended.
type Reason string

const (
	ReasonUser     Reason = "user"
	ReasonExpired  Reason = "expired"
	ReasonRejected Reason = "rejected"
)
