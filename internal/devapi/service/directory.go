package service

import (
	"context"
	"strings"

	"github.com/kentsikayet/portal/internal/api"
	"github.com/kentsikayet/portal/internal/devapi"
)

// Users lists every account.
func (s *Service) Users(ctx context.Context) ([]api.User, error) {
	list, err := s.store.Accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]api.User, 0, len(list))
	for _, a := range list {
		out = append(out, a.User())
	}
	return out, nil
}

func validRole(r string) bool {
	return r == devapi.RoleAdmin || r == devapi.RoleDepartment || r == devapi.RoleCitizen
}

// CreateUser adds an account with any role.
func (s *Service) CreateUser(ctx context.Context, u api.User) (api.User, error) {
	if !validRole(u.Role) {
		return u, &ValidationError{"Rol geçersiz."}
	}
	exists, err := s.EmailRegistered(ctx, u.Email)
	if err != nil {
		return u, err
	}
	if exists {
		return u, ErrConflict
	}
	a, err := s.createAccount(ctx, u)
	if err != nil {
		return u, err
	}
	return a.User(), nil
}

// UpdateUser changes an account's profile, role and department. A non-empty
// password replaces the stored one.
func (s *Service) UpdateUser(ctx context.Context, id int, u api.User) (api.User, error) {
	a, err := s.store.Accounts.Get(ctx, id)
	if err != nil {
		return u, notFound(err)
	}
	if !validRole(u.Role) {
		return u, &ValidationError{"Rol geçersiz."}
	}
	if email := normEmail(u.Email); email != a.Email {
		other, err := s.accountByEmail(ctx, email)
		if err != nil {
			return u, err
		}
		if other != nil {
			return u, ErrConflict
		}
		a.Email = email
	}
	a.Name = strings.TrimSpace(u.Name)
	a.Surname = strings.TrimSpace(u.Surname)
	a.Role = u.Role
	a.DepartmentID = u.DepartmentID
	if u.Password != "" {
		fresh, err := hashPassword(u.Password)
		if err != nil {
			return u, err
		}
		a.PasswordHash = fresh
	}
	if err := s.store.Accounts.Replace(ctx, a); err != nil {
		return u, notFound(err)
	}
	return a.User(), nil
}

// DeleteUser removes an account.
func (s *Service) DeleteUser(ctx context.Context, id int) error {
	return notFound(s.store.Accounts.Delete(ctx, id))
}

// Departments lists every department.
func (s *Service) Departments(ctx context.Context) ([]api.Department, error) {
	list, err := s.store.Departments.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]api.Department, 0, len(list))
	for _, d := range list {
		out = append(out, *d)
	}
	return out, nil
}

func (s *Service) CreateDepartment(ctx context.Context, d api.Department) (api.Department, error) {
	if strings.TrimSpace(d.Name) == "" {
		return d, &ValidationError{"Birim adı zorunludur."}
	}
	err := s.store.Departments.Insert(ctx, &d)
	return d, err
}

func (s *Service) UpdateDepartment(ctx context.Context, id int, d api.Department) (api.Department, error) {
	if strings.TrimSpace(d.Name) == "" {
		return d, &ValidationError{"Birim adı zorunludur."}
	}
	d.ID = id
	return d, notFound(s.store.Departments.Replace(ctx, &d))
}

// DeleteDepartment removes a department that no complaint type refers to.
func (s *Service) DeleteDepartment(ctx context.Context, id int) error {
	types, err := s.store.Types.List(ctx)
	if err != nil {
		return err
	}
	for _, t := range types {
		if t.DepartmentID == id {
			return &ValidationError{"Bu birime bağlı şikayet türleri var."}
		}
	}
	return notFound(s.store.Departments.Delete(ctx, id))
}

// Types lists every complaint type.
func (s *Service) Types(ctx context.Context) ([]api.ComplaintType, error) {
	list, err := s.store.Types.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]api.ComplaintType, 0, len(list))
	for _, t := range list {
		out = append(out, *t)
	}
	return out, nil
}

func (s *Service) checkType(ctx context.Context, t api.ComplaintType) error {
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{"Şikayet türü adı zorunludur."}
	}
	if _, err := s.store.Departments.Get(ctx, t.DepartmentID); err != nil {
		return &ValidationError{"Birim bulunamadı."}
	}
	return nil
}

func (s *Service) CreateType(ctx context.Context, t api.ComplaintType) (api.ComplaintType, error) {
	if err := s.checkType(ctx, t); err != nil {
		return t, err
	}
	err := s.store.Types.Insert(ctx, &t)
	return t, err
}

func (s *Service) UpdateType(ctx context.Context, id int, t api.ComplaintType) (api.ComplaintType, error) {
	if err := s.checkType(ctx, t); err != nil {
		return t, err
	}
	t.ID = id
	return t, notFound(s.store.Types.Replace(ctx, &t))
}

func (s *Service) DeleteType(ctx context.Context, id int) error {
	return notFound(s.store.Types.Delete(ctx, id))
}

// Seed creates an admin account and a starter directory when no account
// exists yet. It reports whether anything was created.
func (s *Service) Seed(ctx context.Context, adminEmail, adminPassword string) (bool, error) {
	users, err := s.store.Accounts.List(ctx)
	if err != nil {
		return false, err
	}
	if len(users) > 0 {
		return false, nil
	}
	if _, err := s.createAccount(ctx, api.User{Name: "Sistem", Surname: "Yöneticisi", Email: adminEmail, Role: devapi.RoleAdmin, Password: adminPassword}); err != nil {
		return false, err
	}
	for _, seed := range []struct {
		department string
		types      []string
	}{
		{"Temizlik İşleri", []string{"Çöp"}},
		{"Elektrik İşleri", []string{"Elektrik"}},
		{"Su ve Kanalizasyon", []string{"Su"}},
		{"Fen İşleri", []string{"Yol", "Park"}},
	} {
		d := api.Department{Name: seed.department}
		if err := s.store.Departments.Insert(ctx, &d); err != nil {
			return false, err
		}
		for _, name := range seed.types {
			if err := s.store.Types.Insert(ctx, &api.ComplaintType{Name: name, DepartmentID: d.ID}); err != nil {
				return false, err
			}
		}
	}
	log.Infof("seeded admin account %s and starter directory", adminEmail)
	return true, nil
}
