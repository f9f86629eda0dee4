// Package tokens issues and verifies the devapi's HS256 bearer tokens. Claim
// names follow the complaint API: identity and role use the long URI keys.
package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kentsikayet/portal/internal/claims"
	"github.com/kentsikayet/portal/internal/devapi"
)

const (
	claimNameID = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	claimName   = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	claimRole   = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

// Issuer signs and verifies tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a signed access token for a.
func (i *Issuer) Issue(a *devapi.Account) (string, error) {
	now := i.now()
	mc := jwt.MapClaims{
		claimNameID: strconv.Itoa(a.ID),
		claimName:   a.FullName(),
		claimRole:   a.Role,
		"email":     a.Email,
		"iat":       now.Unix(),
		"exp":       now.Add(i.ttl).Unix(),
	}
	if a.DepartmentID != 0 {
		mc["departmentId"] = a.DepartmentID
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(i.secret)
}

// Verify checks the signature and expiry of raw and returns the caller.
func (i *Issuer) Verify(raw string) (devapi.Caller, error) {
	var mc jwt.MapClaims
	_, err := jwt.ParseWithClaims(raw, &mc, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return devapi.Caller{}, err
	}
	c := claims.Normalize(mc)
	id, err := strconv.Atoi(c.Subject)
	if err != nil {
		return devapi.Caller{}, fmt.Errorf("subject %q: %w", c.Subject, err)
	}
	roles := c.Roles.Sorted()
	if len(roles) == 0 {
		return devapi.Caller{}, errors.New("token carries no role")
	}
	caller := devapi.Caller{ID: id, Role: roles[0]}
	if d, ok := mc["departmentId"].(float64); ok {
		caller.DepartmentID = int(d)
	}
	return caller, nil
}
