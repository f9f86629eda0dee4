// Package devapi is a local stand-in for the municipal complaint REST API,
// used for development and end-to-end tests of the portal.
package devapi

import (
	"time"

	"github.com/kentsikayet/portal/internal/api"
	"github.com/kentsikayet/portal/internal/complaints"
)

// Role names issued in tokens.
const (
	RoleAdmin      = "Admin"
	RoleDepartment = "DepartmentAdmin"
	RoleCitizen    = "User"
)

// Complaint is the stored form of a complaint record.
type Complaint struct {
	complaints.Record `bson:",inline"`
	OwnerID           int       `json:"ownerId" bson:"ownerId"`
	VerifiedBy        []int     `json:"-" bson:"verifiedBy,omitempty"`
	CreatedAt         time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Account is a stored user with its password hash.
type Account struct {
	ID           int       `json:"id" bson:"id"`
	Name         string    `json:"name" bson:"name"`
	Surname      string    `json:"surname" bson:"surname"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	Role         string    `json:"role" bson:"role"`
	DepartmentID int       `json:"departmentId,omitempty" bson:"departmentId,omitempty"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// User returns the account as exposed on the wire.
func (a *Account) User() api.User {
	return api.User{
		ID:           a.ID,
		Name:         a.Name,
		Surname:      a.Surname,
		Email:        a.Email,
		Role:         a.Role,
		DepartmentID: a.DepartmentID,
	}
}

// FullName is the display name placed in tokens.
func (a *Account) FullName() string {
	if a.Surname == "" {
		return a.Name
	}
	return a.Name + " " + a.Surname
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID           int
	Role         string
	DepartmentID int
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// Manages reports whether the caller may triage complaints of department.
func (c Caller) Manages(department int) bool {
	return c.IsAdmin() || (c.Role == RoleDepartment && department != 0 && c.DepartmentID == department)
}
