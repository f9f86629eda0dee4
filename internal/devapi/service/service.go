// Package service holds the devapi's business rules: accounts and email
// verification, complaint ownership and triage permissions, and the admin
// directory.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/kentsikayet/portal/internal/api"
	"github.com/kentsikayet/portal/internal/complaints"
	"github.com/kentsikayet/portal/internal/devapi"
	"github.com/kentsikayet/portal/internal/devapi/repository"
	"github.com/kentsikayet/portal/internal/devapi/tokens"
	"github.com/kentsikayet/portal/pkg/logger"
)

var log = logger.For("devapi")

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("already exists")
	ErrInvalidCredentials = errors.New("E-posta veya şifre hatalı.")
	ErrInvalidCode        = errors.New("Doğrulama kodu geçersiz veya süresi dolmuş.")
)

// ValidationError is returned for a request the API refuses to store.
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

const codeTTL = 10 * time.Minute

type pendingCode struct {
	code     string
	expires  time.Time
	verified bool
}

// Store groups the collections the service persists to.
type Store struct {
	Complaints  repository.Collection[devapi.Complaint]
	Accounts    repository.Collection[devapi.Account]
	Departments repository.Collection[api.Department]
	Types       repository.Collection[api.ComplaintType]
	Solutions   repository.Collection[api.Solution]
}

func complaintID(v *devapi.Complaint) *int { return &v.ID }
func accountID(v *devapi.Account) *int { return &v.ID }
func departmentID(v *api.Department) *int { return &v.ID }
func typeID(v *api.ComplaintType) *int { return &v.ID }
func solutionID(v *api.Solution) *int { return &v.ID }

// NewMemoryStore returns a Store kept in process memory.
func NewMemoryStore() Store {
	return Store{
		Complaints:  repository.NewMemory(complaintID),
		Accounts:    repository.NewMemory(accountID),
		Departments: repository.NewMemory(departmentID),
		Types:       repository.NewMemory(typeID),
		Solutions:   repository.NewMemory(solutionID),
	}
}

// NewMongoStore returns a Store backed by collections of db.
func NewMongoStore(ctx context.Context, db *mongo.Database) (Store, error) {
	counters := db.Collection("counters")
	var s Store
	var err error
	if s.Complaints, err = repository.NewMongo(ctx, db.Collection("complaints"), counters, complaintID); err != nil {
		return s, err
	}
	if s.Accounts, err = repository.NewMongo(ctx, db.Collection("accounts"), counters, accountID); err != nil {
		return s, err
	}
	if s.Departments, err = repository.NewMongo(ctx, db.Collection("departments"), counters, departmentID); err != nil {
		return s, err
	}
	if s.Types, err = repository.NewMongo(ctx, db.Collection("complaint_types"), counters, typeID); err != nil {
		return s, err
	}
	if s.Solutions, err = repository.NewMongo(ctx, db.Collection("complaint_solutions"), counters, solutionID); err != nil {
		return s, err
	}
	return s, nil
}

// Service implements the complaint API.
type Service struct {
	store  Store
	issuer *tokens.Issuer
	now    func() time.Time

	mu    sync.Mutex
	codes map[string]*pendingCode
}

func New(store Store, issuer *tokens.Issuer) *Service {
	return &Service{store: store, issuer: issuer, now: time.Now, codes: map[string]*pendingCode{}}
}

// Issuer returns the token issuer, used by the handler to authenticate callers.
func (s *Service) Issuer() *tokens.Issuer { return s.issuer }

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Service) accountByEmail(ctx context.Context, email string) (*devapi.Account, error) {
	list, err := s.store.Accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	email = normEmail(email)
	for _, a := range list {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, nil
}

// Login verifies credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	a, err := s.accountByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if a == nil || bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return s.issuer.Issue(a)
}

// EmailRegistered reports whether an account uses email.
func (s *Service) EmailRegistered(ctx context.Context, email string) (bool, error) {
	a, err := s.accountByEmail(ctx, email)
	return a != nil, err
}

// SendCode generates a six digit verification code for email. There is no
// mail transport; the code is logged and returned.
func (s *Service) SendCode(ctx context.Context, email string) (string, error) {
	email = normEmail(email)
	if email == "" {
		return "", &ValidationError{"E-posta zorunludur."}
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())
	s.mu.Lock()
	s.codes[email] = &pendingCode{code: code, expires: s.now().Add(codeTTL)}
	s.mu.Unlock()
	log.Infof("verification code for %s: %s", email, code)
	return code, nil
}

// VerifyCode marks email as verified when code matches.
func (s *Service) VerifyCode(email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.codes[normEmail(email)]
	if !ok || p.code != strings.TrimSpace(code) || !s.now().Before(p.expires) {
		return ErrInvalidCode
	}
	p.verified = true
	return nil
}

// Register creates a citizen account for a verified email.
func (s *Service) Register(ctx context.Context, r api.Registration) (*devapi.Account, error) {
	email := normEmail(r.Email)
	s.mu.Lock()
	p, ok := s.codes[email]
	valid := ok && p.verified && p.code == strings.TrimSpace(r.Code) && s.now().Before(p.expires)
	s.mu.Unlock()
	if !valid {
		return nil, ErrInvalidCode
	}
	exists, err := s.EmailRegistered(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrConflict
	}
	a, err := s.createAccount(ctx, api.User{Name: r.Name, Surname: r.Surname, Email: email, Role: devapi.RoleCitizen, Password: r.Password})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	delete(s.codes, email)
	s.mu.Unlock()
	return a, nil
}

func (s *Service) createAccount(ctx context.Context, u api.User) (*devapi.Account, error) {
	hash, err := hashPassword(u.Password)
	if err != nil {
		return nil, err
	}
	a := &devapi.Account{
		Name:         strings.TrimSpace(u.Name),
		Surname:      strings.TrimSpace(u.Surname),
		Email:        normEmail(u.Email),
		PasswordHash: hash,
		Role:         u.Role,
		DepartmentID: u.DepartmentID,
		CreatedAt:    s.now(),
	}
	if err := s.store.Accounts.Insert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func hashPassword(pw string) (string, error) {
	if len(pw) < 6 {
		return "", &ValidationError{"Şifre en az 6 karakter olmalıdır."}
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// Complaints lists the complaints in scope for caller: "all" for everyone,
// "mine" for the caller's own, "department" for the caller's department.
func (s *Service) Complaints(ctx context.Context, caller devapi.Caller, scope api.Scope) ([]complaints.Record, error) {
	if scope == api.ScopeDepartment && !caller.IsAdmin() && caller.Role != devapi.RoleDepartment {
		return nil, ErrForbidden
	}
	list, err := s.store.Complaints.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []complaints.Record{}
	for _, c := range list {
		switch scope {
		case api.ScopeMine:
			if c.OwnerID != caller.ID {
				continue
			}
		case api.ScopeDepartment:
			if !caller.IsAdmin() && c.DepartmentID != caller.DepartmentID {
				continue
			}
		}
		out = append(out, c.Record)
	}
	return out, nil
}

func (s *Service) departmentFor(ctx context.Context, kind string) int {
	list, err := s.store.Types.List(ctx)
	if err != nil {
		return 0
	}
	for _, t := range list {
		if t.Name == kind {
			return t.DepartmentID
		}
	}
	return 0
}

func validate(r complaints.Record) error {
	d := complaints.DraftFrom(r)
	if err := d.Validate(); err != nil {
		return &ValidationError{err.Error()}
	}
	return nil
}

// CreateComplaint stores a new complaint owned by caller.
func (s *Service) CreateComplaint(ctx context.Context, caller devapi.Caller, r complaints.Record) (complaints.Record, error) {
	if err := validate(r); err != nil {
		return r, err
	}
	now := s.now()
	c := &devapi.Complaint{Record: r, OwnerID: caller.ID, CreatedAt: now, UpdatedAt: now}
	c.Status = complaints.UnderReview
	c.VerificationCount = 0
	if c.DepartmentID == 0 {
		c.DepartmentID = s.departmentFor(ctx, c.Type)
	}
	if err := s.store.Complaints.Insert(ctx, c); err != nil {
		return r, err
	}
	return c.Record, nil
}

// UpdateComplaint replaces a complaint. Owners may edit their own complaint's
// text; only the responsible department or an admin may change its status.
func (s *Service) UpdateComplaint(ctx context.Context, caller devapi.Caller, r complaints.Record) (complaints.Record, error) {
	c, err := s.store.Complaints.Get(ctx, r.ID)
	if err != nil {
		return r, notFound(err)
	}
	manager := caller.Manages(c.DepartmentID)
	if !manager && (c.OwnerID != caller.ID || r.Status != c.Status) {
		return r, ErrForbidden
	}
	if !r.Status.Valid() {
		return r, &ValidationError{"Durum geçersiz."}
	}
	if err := validate(r); err != nil {
		return r, err
	}
	r.VerificationCount = c.VerificationCount
	if !caller.IsAdmin() {
		r.DepartmentID = c.DepartmentID
	}
	c.Record = r
	c.UpdatedAt = s.now()
	if err := s.store.Complaints.Replace(ctx, c); err != nil {
		return r, notFound(err)
	}
	return c.Record, nil
}

// DeleteComplaint removes a complaint and its solutions.
func (s *Service) DeleteComplaint(ctx context.Context, caller devapi.Caller, id int) error {
	c, err := s.store.Complaints.Get(ctx, id)
	if err != nil {
		return notFound(err)
	}
	if c.OwnerID != caller.ID && !caller.Manages(c.DepartmentID) {
		return ErrForbidden
	}
	if err := s.store.Complaints.Delete(ctx, id); err != nil {
		return notFound(err)
	}
	sols, err := s.store.Solutions.List(ctx)
	if err != nil {
		return err
	}
	for _, sol := range sols {
		if sol.ComplaintID == id {
			if err := s.store.Solutions.Delete(ctx, sol.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}
	}
	return nil
}

// VerifyComplaint counts the caller as a witness of someone else's complaint.
// Each caller counts once.
func (s *Service) VerifyComplaint(ctx context.Context, caller devapi.Caller, id int) (complaints.Record, error) {
	c, err := s.store.Complaints.Get(ctx, id)
	if err != nil {
		return complaints.Record{}, notFound(err)
	}
	if c.OwnerID == caller.ID {
		return c.Record, ErrForbidden
	}
	for _, v := range c.VerifiedBy {
		if v == caller.ID {
			return c.Record, nil
		}
	}
	c.VerifiedBy = append(c.VerifiedBy, caller.ID)
	c.VerificationCount = len(c.VerifiedBy)
	if err := s.store.Complaints.Replace(ctx, c); err != nil {
		return c.Record, notFound(err)
	}
	return c.Record, nil
}

// Count returns one of the aggregate counters.
func (s *Service) Count(ctx context.Context, counter api.Counter) (int, error) {
	switch counter {
	case api.CountUsers, api.CountComplaints, api.CountResolvedComplaints, api.CountPendingComplaints:
	default:
		return 0, ErrNotFound
	}
	if counter == api.CountUsers {
		list, err := s.store.Accounts.List(ctx)
		return len(list), err
	}
	list, err := s.store.Complaints.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range list {
		switch counter {
		case api.CountComplaints:
			n++
		case api.CountResolvedComplaints:
			if c.Status == complaints.Resolved {
				n++
			}
		case api.CountPendingComplaints:
			if c.Status == complaints.UnderReview {
				n++
			}
		}
	}
	return n, nil
}

// AddSolution links a solution to a complaint the caller manages.
func (s *Service) AddSolution(ctx context.Context, caller devapi.Caller, sol api.Solution) (api.Solution, error) {
	c, err := s.store.Complaints.Get(ctx, sol.ComplaintID)
	if err != nil {
		return sol, notFound(err)
	}
	if !caller.Manages(c.DepartmentID) {
		return sol, ErrForbidden
	}
	if strings.TrimSpace(sol.Description) == "" {
		return sol, &ValidationError{"Çözüm açıklaması zorunludur."}
	}
	if err := s.store.Solutions.Insert(ctx, &sol); err != nil {
		return sol, err
	}
	return sol, nil
}

// Solutions lists the solutions linked to a complaint.
func (s *Service) Solutions(ctx context.Context, complaintID int) ([]api.Solution, error) {
	list, err := s.store.Solutions.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []api.Solution{}
	for _, sol := range list {
		if sol.ComplaintID == complaintID {
			out = append(out, *sol)
		}
	}
	return out, nil
}
