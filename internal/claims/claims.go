// Package claims decodes the payload of a bearer token into a normalised
// claims record. Signatures are not verified; the portal only needs the
// payload to decide who is logged in and which screens they may open. The
// complaint API remains the authority on every call it receives.
package claims

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned for tokens that are not three segments of base64url JSON.
var ErrMalformed = errors.New("malformed token")

// RoleSet is the normalised set of roles granted by a token.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from the given role names, ignoring blanks.
func NewRoleSet(roles ...string) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" {
			s[r] = struct{}{}
		}
	}
	return s
}

// Has reports whether role is in the set.
func (s RoleSet) Has(role string) bool {
	_, ok := s[role]
	return ok
}

// Sorted returns the roles in lexical order.
func (s RoleSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Claims is the decoded view of a token payload. It is recomputed on demand
// and never persisted.
type Claims struct {
	Subject   string
	Name      string
	Roles     RoleSet
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// HasRole reports whether the token grants role.
func (c Claims) HasRole(role string) bool { return c.Roles.Has(role) }

// Expired reports whether the token's own exp claim lies at or before now.
// Tokens without an exp claim never expire by claim.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Empty reports whether nothing could be decoded.
func (c Claims) Empty() bool {
	return c.Subject == "" && c.Name == "" && len(c.Roles) == 0 && c.ExpiresAt.IsZero()
}

type field int

const (
	fieldSubject field = iota
	fieldRoles
	fieldName
	fieldExpiry
)

// aliases lists, per semantic field, every payload key the complaint API has
// used for it. Earlier keys win for scalar fields; role values are merged.
var aliases = []struct {
	field field
	keys  []string
}{
	{fieldSubject, []string{
		"sub",
		"nameid",
		"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier",
		"userId",
		"id",
	}},
	{fieldRoles, []string{
		"role",
		"roles",
		"http://schemas.microsoft.com/ws/2008/06/identity/claims/role",
	}},
	{fieldName, []string{
		"name",
		"unique_name",
		"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name",
		"given_name",
		"email",
	}},
	{fieldExpiry, []string{"exp"}},
}

var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode returns the claims carried by raw. Malformed input yields an empty
// Claims and an error wrapping ErrMalformed; it never panics.
func Decode(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, fmt.Errorf("%w: empty token", ErrMalformed)
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("%w: %d segments", ErrMalformed, len(parts))
	}
	payload, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: payload encoding: %v", ErrMalformed, err)
	}
	var m jwt.MapClaims
	if err := json.Unmarshal(payload, &m); err != nil || m == nil {
		return Claims{}, fmt.Errorf("%w: payload is not a JSON object", ErrMalformed)
	}
	return Normalize(m), nil
}

// Normalize maps a raw payload onto Claims using the alias table.
func Normalize(m map[string]interface{}) Claims {
	var c Claims
	var roles []string
	for _, row := range aliases {
		for _, k := range row.keys {
			v, ok := m[k]
			if !ok || v == nil {
				continue
			}
			switch row.field {
			case fieldSubject:
				if c.Subject == "" {
					c.Subject = scalarString(v)
				}
			case fieldName:
				if c.Name == "" {
					c.Name = scalarString(v)
				}
			case fieldRoles:
				roles = append(roles, roleValues(v)...)
			case fieldExpiry:
				if c.ExpiresAt.IsZero() {
					c.ExpiresAt = epochSeconds(v)
				}
			}
		}
	}
	c.Roles = NewRoleSet(roles...)
	return c
}

// roleValues accepts a single role or a list of roles.
func roleValues(v interface{}) []string {
	switch vv := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s := scalarString(x); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	default:
		if s := scalarString(v); s != "" {
			return []string{s}
		}
	}
	return nil
}

func scalarString(v interface{}) string {
	switch vv := v.(type) {
	case string:
		return strings.TrimSpace(vv)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case json.Number:
		return vv.String()
	case bool:
		return strconv.FormatBool(vv)
	}
	return ""
}

func epochSeconds(v interface{}) time.Time {
	var secs float64
	switch vv := v.(type) {
	case float64:
		secs = vv
	case json.Number:
		f, err := vv.Float64()
		if err != nil {
			return time.Time{}
		}
		secs = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(vv), 64)
		if err != nil {
			return time.Time{}
		}
		secs = f
	default:
		return time.Time{}
	}
	if secs <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(secs), 0)
}
